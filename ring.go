// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ring is a memory mapped perf ring buffer: the metadata page shared with
// the kernel, followed by the data region the kernel writes records into.
//
// The kernel is the only writer of meta.Data_head, and the ring's owner is
// the only writer of meta.Data_tail. Records between the two cursors are
// readable; bytes behind the tail may be overwritten by the kernel at any
// time.
type ring struct {
	mapping []byte // full mmap region, nil for rings over plain memory
	meta    *unix.PerfEventMmapPage
	data    []byte

	err error // sticky framing error, see ErrCorruptedRing
}

// newRing maps the ring buffer for fd: the metadata page, then npages
// pages of data. npages must be a power of two.
func newRing(fd int, npages int) (*ring, error) {
	pgSize := unix.Getpagesize()
	size := (1 + npages) * pgSize
	mapping, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&mapping[0]))
	dataOffset := uintptr(meta.Data_offset)
	if dataOffset == 0 {
		// Pre-4.1 kernels do not fill Data_offset. The data region
		// always follows the metadata page.
		dataOffset = uintptr(pgSize)
	}
	return &ring{
		mapping: mapping,
		meta:    meta,
		data:    mapping[dataOffset:],
	}, nil
}

func (r *ring) destroy() error {
	if r.mapping == nil {
		return nil
	}
	err := unix.Munmap(r.mapping)
	r.mapping, r.meta, r.data = nil, nil, nil
	return os.NewSyscallError("munmap", err)
}

// fail marks the ring unusable and records why.
func (r *ring) fail(err error) (RecordHeader, byteBuffer, bool, error) {
	r.err = err
	return RecordHeader{}, byteBuffer{}, false, err
}

// next returns a bounded view of the payload of the next readable record,
// together with its parsed header. It does not advance the tail: the
// caller must release the record once it is done with the view, and must
// not touch the view afterwards.
//
// If no complete record is readable, next returns found == false. If the
// framing is broken, next returns an error and the ring refuses further
// reads.
func (r *ring) next() (hdr RecordHeader, view byteBuffer, found bool, err error) {
	if r.err != nil {
		return RecordHeader{}, byteBuffer{}, false, r.err
	}
	// The head load pairs with the kernel's store-release after it
	// finishes writing a record: everything below head is fully written.
	head := atomic.LoadUint64(&r.meta.Data_head)
	tail := atomic.LoadUint64(&r.meta.Data_tail)
	avail := head - tail
	if avail == 0 {
		return RecordHeader{}, byteBuffer{}, false, nil
	}
	size := uint64(len(r.data))
	if avail > size {
		return r.fail(ErrCorruptedRing)
	}
	start := tail % size
	end := head % size
	if start < end {
		view = makeByteBuffer(r.data[start:end], nil)
	} else {
		view = makeByteBuffer(r.data[start:], r.data[:end])
	}
	var buf [8]byte
	if !view.copyTo(buf[:]) {
		return r.fail(ErrCorruptedRing)
	}
	hdr = RecordHeader{
		Type: RecordType(hostEndian.Uint32(buf[0:4])),
		Misc: hostEndian.Uint16(buf[4:6]),
		Size: hostEndian.Uint16(buf[6:8]),
	}
	if int(hdr.Size) < recordHeaderSize {
		return r.fail(ErrCorruptedRing)
	}
	if uint64(hdr.Size) > avail {
		return r.fail(ErrCorruptedRing)
	}
	view.truncate(int(hdr.Size) - recordHeaderSize)
	return hdr, view, true, nil
}

// release hands the n bytes of the oldest readable record back to the
// kernel. The atomic add has store-release semantics, so the reads that
// decoded the record cannot sink below it, and the kernel never
// overwrites bytes still being read. Each readable byte is released
// exactly once; views into released bytes must not be used again.
func (r *ring) release(n uint64) {
	atomic.AddUint64(&r.meta.Data_tail, n)
}

// Capability bits in the metadata page.
const (
	capUserRdpmc     = 1 << 2
	capUserTime      = 1 << 3
	capUserTimeZero  = 1 << 4
	capUserTimeShort = 1 << 5
)

// UserCount is a counter value read from the memory mapped metadata page,
// without a system call.
type UserCount struct {
	// Value is the counter value. Valid only if ValueOK is set: counting
	// in user space needs hardware support, permission from the kernel,
	// and the event currently scheduled on the local CPU.
	Value   uint64
	ValueOK bool

	// Enabled and Running are the event's timings, possibly extrapolated
	// to the moment of the read using the CPU timestamp counter.
	Enabled time.Duration
	Running time.Duration
}

var errStaleMetaPage = errors.New("perf: userspace counter read did not stabilize")

// userReadRetries bounds the seqlock retry loop in userRead. The kernel
// updates the metadata page only at scheduling events, so more than a
// couple of retries means the page is not behaving like a seqlock at all.
const userReadRetries = 128

// userRead implements the seqlock protocol for the metadata page: snapshot
// the sequence counter, read the fields, re-check the counter, and retry
// if the kernel updated the page concurrently.
func (r *ring) userRead() (UserCount, error) {
	meta := r.meta
	for i := 0; i < userReadRetries; i++ {
		seq := atomic.LoadUint32(&meta.Lock)
		if seq&1 != 0 {
			// An update is in progress.
			continue
		}
		caps := atomic.LoadUint64(&meta.Capabilities)
		idx := atomic.LoadUint32(&meta.Index)
		offset := atomic.LoadInt64(&meta.Offset)
		enabled := atomic.LoadUint64(&meta.Time_enabled)
		running := atomic.LoadUint64(&meta.Time_running)

		var uc UserCount
		if hasRdpmc && caps&capUserRdpmc != 0 && idx != 0 {
			width := uint(meta.Pmc_width)
			pmc := int64(rdpmc(idx-1) << (64 - width))
			pmc >>= 64 - width
			uc.Value = uint64(offset + pmc)
			uc.ValueOK = true
		}
		if hasRdtsc && caps&capUserTime != 0 {
			// Extrapolate the timings from the timestamp counter,
			// the same way the kernel would have at this instant.
			cyc := rdtsc()
			quot := cyc >> meta.Time_shift
			rem := cyc & (uint64(1)<<meta.Time_shift - 1)
			delta := meta.Time_offset + quot*uint64(meta.Time_mult) +
				rem*uint64(meta.Time_mult)>>meta.Time_shift
			enabled += delta
			if idx != 0 {
				running += delta
			}
		}
		uc.Enabled = time.Duration(enabled)
		uc.Running = time.Duration(running)

		if atomic.LoadUint32(&meta.Lock) == seq {
			return uc, nil
		}
	}
	return UserCount{}, errStaleMetaPage
}

// ReadUserCount reads the event's counter value and timings from the
// memory mapped metadata page, without entering the kernel. The event must
// have its ring mapped.
//
// ReadUserCount is not an atomic snapshot of (Value, Enabled, Running):
// the counter may advance between the register read and the timestamp
// read. Callers needing exact ratios should use ReadCount instead.
func (ev *Event) ReadUserCount() (UserCount, error) {
	if err := ev.ok(); err != nil {
		return UserCount{}, err
	}
	if ev.ring == nil {
		return UserCount{}, errNotMapped
	}
	return ev.ring.userRead()
}
