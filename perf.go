// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perf provides access to the Linux perf API. See man 2 perf_event_open.
//
// Counters are opened with Open and read with ReadCount or ReadGroupCount.
// Events that produce samples map a ring buffer with MapRing, then consume
// records with ReadRecord or ReadRawRecord.
package perf

import (
	"encoding/binary"
	"errors"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Special pid values for Open.
const (
	// CallingThread configures the event to measure the calling thread.
	CallingThread = 0

	// AllThreads configures the event to measure all threads on the
	// specified CPU.
	AllThreads = -1
)

// AnyCPU configures the specified process/thread to be measured on any CPU.
const AnyCPU = -1

var (
	// ErrTruncatedRecord means a record declared more payload than its
	// header-delimited size contains. The record is abandoned, but the
	// ring buffer framing is intact and subsequent reads may succeed.
	ErrTruncatedRecord = errors.New("perf: truncated record")

	// ErrMalformedRecord means a record decoded cleanly, but left
	// unconsumed bytes inside its header-delimited window. The record is
	// abandoned, but the ring buffer framing is intact.
	ErrMalformedRecord = errors.New("perf: malformed record")

	// ErrCorruptedRing means the ring buffer framing can no longer be
	// trusted: a record header declared a size smaller than itself, or a
	// size extending past the readable window. No further records can be
	// read from the ring.
	ErrCorruptedRing = errors.New("perf: corrupted ring buffer")

	errClosed    = errors.New("perf: event closed")
	errNotMapped = errors.New("perf: event ring not mapped")
)

// Supported reports whether the host kernel supports the perf API.
func Supported() bool {
	_, err := os.Stat("/proc/sys/kernel/perf_event_paranoid")
	return err == nil
}

// MaxOpenEvents returns an estimate of the number of events that can be
// opened simultaneously, based on RLIMIT_NOFILE.
//
// The kernel enforces other limits as well, which MaxOpenEvents does not
// account for.
func MaxOpenEvents() (int, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, os.NewSyscallError("getrlimit", err)
	}
	return int(rlimit.Cur), nil
}

// LockThread locks the calling goroutine to its current operating system
// thread, and returns the thread ID. Callers measuring the calling thread
// should use LockThread first, so the measured thread does not change at a
// scheduling point.
func LockThread() int {
	runtime.LockOSThread()
	return unix.Gettid()
}

// UnlockThread undoes the effect of LockThread.
func UnlockThread() {
	runtime.UnlockOSThread()
}

// hostEndian is the byte order records are encoded in. Records are
// produced by the local kernel, so decoding them on a machine with a
// different byte order is neither possible nor useful.
var hostEndian = func() binary.ByteOrder {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// marshalBitwiseUint64 packs the specified booleans into a uint64,
// LSB-first.
func marshalBitwiseUint64(fields []bool) uint64 {
	var res uint64
	for shift, set := range fields {
		if set {
			res |= 1 << uint(shift)
		}
	}
	return res
}
