// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"context"
	"io"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const recordHeaderSize = 8

// RecordType is the type of a record in the ring buffer.
type RecordType uint32

// Known record types.
const (
	RecordTypeMmap          RecordType = unix.PERF_RECORD_MMAP
	RecordTypeLost          RecordType = unix.PERF_RECORD_LOST
	RecordTypeComm          RecordType = unix.PERF_RECORD_COMM
	RecordTypeExit          RecordType = unix.PERF_RECORD_EXIT
	RecordTypeThrottle      RecordType = unix.PERF_RECORD_THROTTLE
	RecordTypeUnthrottle    RecordType = unix.PERF_RECORD_UNTHROTTLE
	RecordTypeFork          RecordType = unix.PERF_RECORD_FORK
	RecordTypeRead          RecordType = unix.PERF_RECORD_READ
	RecordTypeSample        RecordType = unix.PERF_RECORD_SAMPLE
	RecordTypeMmap2         RecordType = unix.PERF_RECORD_MMAP2
	RecordTypeAux           RecordType = unix.PERF_RECORD_AUX
	RecordTypeItraceStart   RecordType = unix.PERF_RECORD_ITRACE_START
	RecordTypeLostSamples   RecordType = unix.PERF_RECORD_LOST_SAMPLES
	RecordTypeSwitch        RecordType = unix.PERF_RECORD_SWITCH
	RecordTypeSwitchCPUWide RecordType = unix.PERF_RECORD_SWITCH_CPU_WIDE
	RecordTypeNamespaces    RecordType = unix.PERF_RECORD_NAMESPACES

	// Types defined by the kernel ABI, but absent from x/sys/unix.
	RecordTypeKsymbol       RecordType = 17
	RecordTypeBPFEvent      RecordType = 18
	RecordTypeCgroup        RecordType = 19
	RecordTypeTextPoke      RecordType = 20
	RecordTypeAuxOutputHWID RecordType = 21
)

func (rt RecordType) String() string {
	switch rt {
	case RecordTypeMmap:
		return "Mmap"
	case RecordTypeLost:
		return "Lost"
	case RecordTypeComm:
		return "Comm"
	case RecordTypeExit:
		return "Exit"
	case RecordTypeThrottle:
		return "Throttle"
	case RecordTypeUnthrottle:
		return "Unthrottle"
	case RecordTypeFork:
		return "Fork"
	case RecordTypeRead:
		return "Read"
	case RecordTypeSample:
		return "Sample"
	case RecordTypeMmap2:
		return "Mmap2"
	case RecordTypeAux:
		return "Aux"
	case RecordTypeItraceStart:
		return "ItraceStart"
	case RecordTypeLostSamples:
		return "LostSamples"
	case RecordTypeSwitch:
		return "Switch"
	case RecordTypeSwitchCPUWide:
		return "SwitchCPUWide"
	case RecordTypeNamespaces:
		return "Namespaces"
	case RecordTypeKsymbol:
		return "Ksymbol"
	case RecordTypeBPFEvent:
		return "BPFEvent"
	case RecordTypeCgroup:
		return "Cgroup"
	case RecordTypeTextPoke:
		return "TextPoke"
	case RecordTypeAuxOutputHWID:
		return "AuxOutputHWID"
	default:
		return "Unknown"
	}
}

// Bits in the Misc field of a record header.
const (
	miscCPUModeMask      = 7
	miscMmapData         = 1 << 13
	miscCommExec         = 1 << 13
	miscSwitchOut        = 1 << 13
	miscExactIP          = 1 << 14
	miscSwitchOutPreempt = 1 << 14
)

// CPUMode is the CPU privilege mode a record was produced in.
type CPUMode uint8

// Known CPU modes.
const (
	UnknownMode CPUMode = iota
	KernelMode
	UserMode
	HypervisorMode
	GuestKernelMode
	GuestUserMode
)

// RecordHeader is the header common to all records.
type RecordHeader struct {
	Type RecordType
	Misc uint16
	Size uint16
}

// Header returns rh, so that types which embed a RecordHeader
// automatically implement a part of the Record interface.
func (rh RecordHeader) Header() RecordHeader { return rh }

func (rh *RecordHeader) setHeader(h RecordHeader) { *rh = h }

// CPUMode returns the CPU mode in use when the record was produced.
func (rh RecordHeader) CPUMode() CPUMode { return CPUMode(rh.Misc & miscCPUModeMask) }

// RecordID holds identifiers for the context a record was produced in.
// All records except Mmap and Sample carry a RecordID trailer if the
// event was configured with SampleIDAll; the fields present are the ones
// selected by the event's SampleFormat.
type RecordID struct {
	Pid        uint32
	Tid        uint32
	Time       uint64
	ID         uint64
	StreamID   uint64
	CPU        uint32
	Res        uint32
	Identifier uint64
}

func (id *RecordID) setRecordID(rid RecordID) { *id = rid }

type recordIDSetter interface {
	setRecordID(RecordID)
}

// Record is the interface implemented by all record types. The set of
// types is closed: records are produced by the kernel, and consumers
// cannot add to it.
type Record interface {
	// Header returns the record's header.
	Header() RecordHeader

	setHeader(RecordHeader)
	decode(f *fields)
}

// RawRecord is a raw, undecoded record read from the ring buffer. Data
// holds the payload of the record, excluding the header.
type RawRecord struct {
	Header RecordHeader
	Data   []byte
}

// Decode decodes the raw record into a typed Record, based on the
// configuration of the event that produced it.
func (raw *RawRecord) Decode(ev *Event) (Record, error) {
	return decodeRecord(ev.pcfg, raw.Header, makeByteBuffer(raw.Data, nil))
}

var newRecordFuncs = [...]func(pc parseConfig) Record{
	RecordTypeMmap:          func(pc parseConfig) Record { return &MmapRecord{} },
	RecordTypeLost:          func(pc parseConfig) Record { return &LostRecord{} },
	RecordTypeComm:          func(pc parseConfig) Record { return &CommRecord{} },
	RecordTypeExit:          func(pc parseConfig) Record { return &ExitRecord{} },
	RecordTypeThrottle:      func(pc parseConfig) Record { return &ThrottleRecord{} },
	RecordTypeUnthrottle:    func(pc parseConfig) Record { return &UnthrottleRecord{} },
	RecordTypeFork:          func(pc parseConfig) Record { return &ForkRecord{} },
	RecordTypeRead:          newReadRecord,
	RecordTypeSample:        newSampleRecord,
	RecordTypeMmap2:         func(pc parseConfig) Record { return &Mmap2Record{} },
	RecordTypeAux:           func(pc parseConfig) Record { return &AuxRecord{} },
	RecordTypeItraceStart:   func(pc parseConfig) Record { return &ItraceStartRecord{} },
	RecordTypeLostSamples:   func(pc parseConfig) Record { return &LostSamplesRecord{} },
	RecordTypeSwitch:        func(pc parseConfig) Record { return &SwitchRecord{} },
	RecordTypeSwitchCPUWide: func(pc parseConfig) Record { return &SwitchCPUWideRecord{} },
	RecordTypeNamespaces:    func(pc parseConfig) Record { return &NamespacesRecord{} },
	RecordTypeKsymbol:       func(pc parseConfig) Record { return &KsymbolRecord{} },
	RecordTypeBPFEvent:      func(pc parseConfig) Record { return &BPFEventRecord{} },
	RecordTypeCgroup:        func(pc parseConfig) Record { return &CgroupRecord{} },
	RecordTypeTextPoke:      func(pc parseConfig) Record { return &TextPokeRecord{} },
	RecordTypeAuxOutputHWID: func(pc parseConfig) Record { return &AuxOutputHWIDRecord{} },
}

// newReadRecord returns an empty Record of type ReadRecord or
// ReadGroupRecord, depending on whether the event it will be decoded
// against counts a group.
func newReadRecord(pc parseConfig) Record {
	if pc.countFormat.Group {
		return &ReadGroupRecord{}
	}
	return &ReadRecord{}
}

func newSampleRecord(pc parseConfig) Record {
	if pc.countFormat.Group {
		return &SampleGroupRecord{}
	}
	return &SampleRecord{}
}

// newRecord returns an empty Record of the given type, ready to be
// decoded into. Types this package does not know become UnknownRecord.
func newRecord(pc parseConfig, rt RecordType) Record {
	if int(rt) < len(newRecordFuncs) {
		if fn := newRecordFuncs[rt]; fn != nil {
			return fn(pc)
		}
	}
	return &UnknownRecord{}
}

// hasRecordIDTrailer reports whether records of type rt carry a RecordID
// trailer on events configured with SampleIDAll. Mmap records predate the
// trailer mechanism and never carry one. Sample records describe their
// context in the payload itself.
func hasRecordIDTrailer(rt RecordType) bool {
	return rt != RecordTypeMmap && rt != RecordTypeSample
}

// decodeRecord decodes the record with header hdr from the bounded view.
// The RecordID trailer, if the configuration implies one, is split off
// the end of the view before the payload is decoded, since variable
// length payload fields extend to the end of what remains.
func decodeRecord(pc parseConfig, hdr RecordHeader, view byteBuffer) (Record, error) {
	rec := newRecord(pc, hdr.Type)
	rec.setHeader(hdr)
	if pc.sampleIDAll && hasRecordIDTrailer(hdr.Type) {
		idSize := pc.recordIDSize()
		if idSize > view.length() {
			return nil, ErrTruncatedRecord
		}
		trailer := view
		trailer.skip(view.length() - idSize)
		view.truncate(view.length() - idSize)

		tf := fields{buf: &trailer, cfg: pc}
		var id RecordID
		tf.recordID(&id)
		if err := tf.done(); err != nil {
			return nil, err
		}
		if setter, ok := rec.(recordIDSetter); ok {
			setter.setRecordID(id)
		}
	}
	f := fields{buf: &view, cfg: pc}
	rec.decode(&f)
	return rec, f.done()
}

// ReadRecord reads and decodes a record from the ring buffer associated
// with ev, blocking until one is available.
//
// ReadRecord may be safely used concurrently with ReadCount.
//
// If the context expires before a record is available, ReadRecord returns
// the context error. If the measured process exits and the ring buffer is
// drained, ReadRecord returns io.EOF. A decoding failure abandons the
// record in question, but leaves the ring usable: the returned error
// wraps ErrTruncatedRecord or ErrMalformedRecord, and subsequent calls
// may succeed.
func (ev *Event) ReadRecord(ctx context.Context) (Record, error) {
	if err := ev.ok(); err != nil {
		return nil, err
	}
	if ev.ring == nil {
		return nil, errNotMapped
	}
	for {
		rec, found, err := ev.readRecordNonblock()
		if found || err != nil {
			return rec, err
		}
		hup, err := ev.waitRecord(ctx)
		if err != nil {
			return nil, err
		}
		if hup {
			// The measured process hung up. Drain what is left.
			rec, found, err := ev.readRecordNonblock()
			if found || err != nil {
				return rec, err
			}
			return nil, io.EOF
		}
	}
}

// ReadRawRecord reads a raw record from the ring buffer associated with
// ev, blocking until one is available. raw.Data is reused across calls if
// it has sufficient capacity, and is only valid until the next call.
func (ev *Event) ReadRawRecord(ctx context.Context, raw *RawRecord) error {
	if err := ev.ok(); err != nil {
		return err
	}
	if ev.ring == nil {
		return errNotMapped
	}
	for {
		found, err := ev.readRawRecordNonblock(raw)
		if found || err != nil {
			return err
		}
		hup, err := ev.waitRecord(ctx)
		if err != nil {
			return err
		}
		if hup {
			found, err := ev.readRawRecordNonblock(raw)
			if found || err != nil {
				return err
			}
			return io.EOF
		}
	}
}

// HasRecord reports whether a complete record is waiting in the ring
// buffer associated with ev.
func (ev *Event) HasRecord() bool {
	if ev.ring == nil {
		return false
	}
	_, _, found, _ := ev.ring.next()
	return found
}

// readRecordNonblock reads and decodes the oldest readable record, if
// any. The record's bytes are released back to the kernel exactly once,
// after the decoder is finished with the view, whether or not decoding
// succeeded.
func (ev *Event) readRecordNonblock() (rec Record, found bool, err error) {
	hdr, view, found, err := ev.ring.next()
	if err != nil || !found {
		return nil, false, err
	}
	defer ev.ring.release(uint64(hdr.Size))
	rec, err = decodeRecord(ev.pcfg, hdr, view)
	if err != nil {
		return nil, true, err
	}
	return rec, true, nil
}

func (ev *Event) readRawRecordNonblock(raw *RawRecord) (found bool, err error) {
	hdr, view, found, err := ev.ring.next()
	if err != nil || !found {
		return false, err
	}
	defer ev.ring.release(uint64(hdr.Size))
	raw.Header = hdr
	raw.Data = view.appendTo(raw.Data[:0])
	return true, nil
}

// waitRecord blocks until the ring buffer is ready for reading, the
// measured process hangs up, or the context expires. The wait happens on
// the event's poll goroutine, so that a context cancelation can interrupt
// it through the wakeup eventfd.
func (ev *Event) waitRecord(ctx context.Context) (hup bool, err error) {
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			<-ctx.Done()
			return false, ctx.Err()
		}
	}
	ev.pollreq <- pollreq{timeout: timeout}
	select {
	case <-ctx.Done():
		active := false
		err := ctx.Err()
		if err == context.Canceled {
			// Initiate active wakeup on ev.wakeupfd, so the ppoll
			// in the poll goroutine returns. A deadline expiry
			// needs no wakeup: the ppoll has its own timeout.
			val := uint64(1)
			buf := (*[8]byte)(unsafe.Pointer(&val))[:]
			unix.Write(ev.wakeupfd, buf)
			active = true
		}
		<-ev.pollresp
		if active {
			var buf [8]byte
			unix.Read(ev.wakeupfd, buf[:])
		}
		return false, err
	case resp := <-ev.pollresp:
		if resp.err != nil {
			return false, resp.err
		}
		if resp.hup {
			return true, nil
		}
		if !resp.perfready {
			// The ppoll timed out, which means the context
			// deadline also expired.
			<-ctx.Done()
			return false, ctx.Err()
		}
		return false, nil
	}
}

type pollreq struct {
	timeout time.Duration // zero means no timeout
}

type pollresp struct {
	perfready bool
	hup       bool
	err       error
}

// poll services ppoll requests for blocking reads. It runs on a separate
// goroutine for the lifetime of a mapped event, so ReadRecord callers can
// be interrupted by context cancelation while the thread sits in ppoll.
func (ev *Event) poll() {
	defer close(ev.pollresp)

	for req := range ev.pollreq {
		ev.pollresp <- ev.doPoll(req)
	}
}

// doPoll executes one ppoll over the event fd and the wakeup eventfd.
// An interrupted poll is retried transparently.
func (ev *Event) doPoll(req pollreq) pollresp {
	var systimeout *unix.Timespec
	if req.timeout > 0 {
		sec := req.timeout / time.Second
		nsec := req.timeout - sec*time.Second
		systimeout = &unix.Timespec{
			Sec:  int64(sec),
			Nsec: int64(nsec),
		}
	}
	pollfds := []unix.PollFd{
		{Fd: int32(ev.fd), Events: unix.POLLIN},
		{Fd: int32(ev.wakeupfd), Events: unix.POLLIN},
	}
again:
	_, err := unix.Ppoll(pollfds, systimeout, nil)
	if err == unix.EINTR {
		goto again
	}
	// If the ppoll failed, the returned revents are meaningless.
	if err != nil {
		return pollresp{err: os.NewSyscallError("ppoll", err)}
	}
	return pollresp{
		perfready: pollfds[0].Revents&unix.POLLIN != 0,
		hup:       pollfds[0].Revents&unix.POLLHUP != 0,
	}
}

// MmapRecord indicates that the measured process created an executable
// memory mapping. Mmap records never carry a RecordID trailer.
type MmapRecord struct {
	RecordHeader
	Pid      uint32
	Tid      uint32
	Addr     uint64
	Len      uint64
	Pgoff    uint64
	Filename string
}

func (mr *MmapRecord) decode(f *fields) {
	f.uint32(&mr.Pid)
	f.uint32(&mr.Tid)
	f.uint64(&mr.Addr)
	f.uint64(&mr.Len)
	f.uint64(&mr.Pgoff)
	f.string(&mr.Filename)
}

// Executable reports whether the mapping is executable.
func (mr *MmapRecord) Executable() bool { return mr.Misc&miscMmapData == 0 }

// Mmap2Record is like MmapRecord, with extra information about the
// backing of the mapping.
type Mmap2Record struct {
	RecordHeader
	Pid           uint32
	Tid           uint32
	Addr          uint64
	Len           uint64
	Pgoff         uint64
	Maj           uint32
	Min           uint32
	Ino           uint64
	InoGeneration uint64
	Prot          uint32
	Flags         uint32
	Filename      string
	RecordID
}

func (mr *Mmap2Record) decode(f *fields) {
	f.uint32(&mr.Pid)
	f.uint32(&mr.Tid)
	f.uint64(&mr.Addr)
	f.uint64(&mr.Len)
	f.uint64(&mr.Pgoff)
	f.uint32(&mr.Maj)
	f.uint32(&mr.Min)
	f.uint64(&mr.Ino)
	f.uint64(&mr.InoGeneration)
	f.uint32(&mr.Prot)
	f.uint32(&mr.Flags)
	f.string(&mr.Filename)
}

// Executable reports whether the mapping is executable.
func (mr *Mmap2Record) Executable() bool { return mr.Misc&miscMmapData == 0 }

// LostRecord indicates that the kernel dropped events because the ring
// buffer was full.
type LostRecord struct {
	RecordHeader
	ID   uint64
	Lost uint64
	RecordID
}

func (lr *LostRecord) decode(f *fields) {
	f.uint64(&lr.ID)
	f.uint64(&lr.Lost)
}

// CommRecord indicates a change in the process name.
type CommRecord struct {
	RecordHeader
	Pid     uint32
	Tid     uint32
	NewName string
	RecordID
}

func (cr *CommRecord) decode(f *fields) {
	f.uint32(&cr.Pid)
	f.uint32(&cr.Tid)
	f.string(&cr.NewName)
}

// WasExec reports whether the name change was caused by an exec.
func (cr *CommRecord) WasExec() bool { return cr.Misc&miscCommExec != 0 }

// ExitRecord indicates that a process exited.
type ExitRecord struct {
	RecordHeader
	Pid  uint32
	Ppid uint32
	Tid  uint32
	Ptid uint32
	Time uint64
	RecordID
}

func (er *ExitRecord) decode(f *fields) {
	f.uint32(&er.Pid)
	f.uint32(&er.Ppid)
	f.uint32(&er.Tid)
	f.uint32(&er.Ptid)
	f.uint64(&er.Time)
}

// ThrottleRecord indicates a throttle event.
type ThrottleRecord struct {
	RecordHeader
	Time     uint64
	ID       uint64
	StreamID uint64
	RecordID
}

func (tr *ThrottleRecord) decode(f *fields) {
	f.uint64(&tr.Time)
	f.uint64(&tr.ID)
	f.uint64(&tr.StreamID)
}

// UnthrottleRecord indicates an unthrottle event.
type UnthrottleRecord struct {
	RecordHeader
	Time     uint64
	ID       uint64
	StreamID uint64
	RecordID
}

func (ur *UnthrottleRecord) decode(f *fields) {
	f.uint64(&ur.Time)
	f.uint64(&ur.ID)
	f.uint64(&ur.StreamID)
}

// ForkRecord indicates a fork.
type ForkRecord struct {
	RecordHeader
	Pid  uint32
	Ppid uint32
	Tid  uint32
	Ptid uint32
	Time uint64
	RecordID
}

func (fr *ForkRecord) decode(f *fields) {
	f.uint32(&fr.Pid)
	f.uint32(&fr.Ppid)
	f.uint32(&fr.Tid)
	f.uint32(&fr.Ptid)
	f.uint64(&fr.Time)
}

// ReadRecord indicates a read event on an event that does not count a
// group.
type ReadRecord struct {
	RecordHeader
	Pid   uint32
	Tid   uint32
	Count Count
	RecordID
}

func (rr *ReadRecord) decode(f *fields) {
	f.uint32(&rr.Pid)
	f.uint32(&rr.Tid)
	f.count(&rr.Count)
}

// ReadGroupRecord indicates a read event on an event that counts a group.
type ReadGroupRecord struct {
	RecordHeader
	Pid   uint32
	Tid   uint32
	Count GroupCount
	RecordID
}

func (rr *ReadGroupRecord) decode(f *fields) {
	f.uint32(&rr.Pid)
	f.uint32(&rr.Tid)
	f.groupCount(&rr.Count)
}

// AuxRecord indicates that new data is available in the separate AUX
// buffer region.
type AuxRecord struct {
	RecordHeader
	Offset uint64
	Size   uint64
	Flags  uint64
	RecordID
}

func (ar *AuxRecord) decode(f *fields) {
	f.uint64(&ar.Offset)
	f.uint64(&ar.Size)
	f.uint64(&ar.Flags)
}

// ItraceStartRecord indicates that a process started an instruction
// tracing event.
type ItraceStartRecord struct {
	RecordHeader
	Pid uint32
	Tid uint32
	RecordID
}

func (ir *ItraceStartRecord) decode(f *fields) {
	f.uint32(&ir.Pid)
	f.uint32(&ir.Tid)
}

// LostSamplesRecord indicates samples dropped by hardware sampling
// mechanisms.
type LostSamplesRecord struct {
	RecordHeader
	Lost uint64
	RecordID
}

func (lr *LostSamplesRecord) decode(f *fields) {
	f.uint64(&lr.Lost)
}

// SwitchRecord indicates that a context switch happened. The record has
// no payload beyond its RecordID trailer: the direction of the switch is
// carried in the header.
type SwitchRecord struct {
	RecordHeader
	RecordID
}

func (sr *SwitchRecord) decode(f *fields) {}

// Out reports whether the switch was out of the measured context.
func (sr *SwitchRecord) Out() bool { return sr.Misc&miscSwitchOut != 0 }

// Preempted reports whether the measured context was switched out while
// runnable.
func (sr *SwitchRecord) Preempted() bool { return sr.Misc&miscSwitchOutPreempt != 0 }

// SwitchCPUWideRecord indicates a context switch, on CPU-wide events.
// Pid and Tid identify the process being switched to or from, depending
// on the direction recorded in the header.
type SwitchCPUWideRecord struct {
	RecordHeader
	Pid uint32
	Tid uint32
	RecordID
}

func (sr *SwitchCPUWideRecord) decode(f *fields) {
	f.uint32(&sr.Pid)
	f.uint32(&sr.Tid)
}

// Out reports whether the switch was out of the observed context.
func (sr *SwitchCPUWideRecord) Out() bool { return sr.Misc&miscSwitchOut != 0 }

// Preempted reports whether the observed context was switched out while
// runnable.
func (sr *SwitchCPUWideRecord) Preempted() bool { return sr.Misc&miscSwitchOutPreempt != 0 }

// Namespace identifies one namespace of a process.
type Namespace struct {
	Dev   uint64
	Inode uint64
}

// NamespacesRecord describes the namespaces of a process when it was
// created.
type NamespacesRecord struct {
	RecordHeader
	Pid        uint32
	Tid        uint32
	Namespaces []Namespace
	RecordID
}

func (nr *NamespacesRecord) decode(f *fields) {
	f.uint32(&nr.Pid)
	f.uint32(&nr.Tid)
	var num uint64
	f.uint64(&num)
	if f.err != nil {
		return
	}
	if num > uint64(f.buf.length())/16 {
		f.err = ErrTruncatedRecord
		return
	}
	nr.Namespaces = make([]Namespace, num)
	for i := range nr.Namespaces {
		f.uint64(&nr.Namespaces[i].Dev)
		f.uint64(&nr.Namespaces[i].Inode)
	}
}

// KsymbolRecord indicates that a kernel symbol was registered or
// unregistered, for symbols generated at runtime, such as JITed BPF
// programs.
type KsymbolRecord struct {
	RecordHeader
	Addr     uint64
	Len      uint32
	KsymType uint16
	Flags    uint16
	Name     string
	RecordID
}

func (kr *KsymbolRecord) decode(f *fields) {
	f.uint64(&kr.Addr)
	f.uint32(&kr.Len)
	f.uint16(&kr.KsymType)
	f.uint16(&kr.Flags)
	f.string(&kr.Name)
}

// Unregistered reports whether the symbol was unregistered.
func (kr *KsymbolRecord) Unregistered() bool { return kr.Flags&1 != 0 }

// BPFEventRecord indicates that a BPF program was loaded or unloaded.
type BPFEventRecord struct {
	RecordHeader
	EventType uint16
	Flags     uint16
	ID        uint32
	Tag       [8]byte
	RecordID
}

func (br *BPFEventRecord) decode(f *fields) {
	f.uint16(&br.EventType)
	f.uint16(&br.Flags)
	f.uint32(&br.ID)
	f.take(br.Tag[:])
}

// CgroupRecord indicates that a new cgroup was created.
type CgroupRecord struct {
	RecordHeader
	ID   uint64
	Path string
	RecordID
}

func (cr *CgroupRecord) decode(f *fields) {
	f.uint64(&cr.ID)
	f.string(&cr.Path)
}

// TextPokeRecord indicates a change to kernel text.
type TextPokeRecord struct {
	RecordHeader
	Addr     uint64
	OldBytes []byte
	NewBytes []byte
	RecordID
}

func (tr *TextPokeRecord) decode(f *fields) {
	var oldLen, newLen uint16
	f.uint64(&tr.Addr)
	f.uint16(&oldLen)
	f.uint16(&newLen)
	f.bytesOf(int(oldLen), &tr.OldBytes)
	f.bytesOf(int(newLen), &tr.NewBytes)
	// The record is padded to 8 byte alignment after the byte arrays.
	var pad []byte
	f.remainder(&pad)
}

// AuxOutputHWIDRecord carries the hardware ID the CPU assigned to an AUX
// output stream.
type AuxOutputHWIDRecord struct {
	RecordHeader
	HardwareID uint64
	RecordID
}

func (ar *AuxOutputHWIDRecord) decode(f *fields) {
	f.uint64(&ar.HardwareID)
}

// UnknownRecord is a record of a type this package does not know. Data
// holds the raw payload, excluding the RecordID trailer, if any.
type UnknownRecord struct {
	RecordHeader
	Data []byte
	RecordID
}

func (ur *UnknownRecord) decode(f *fields) {
	f.remainder(&ur.Data)
}
