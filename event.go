// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Flag is a set of flags for Open. Values are or-ed together.
type Flag int

// Flags for calls to Open.
const (
	// NoGroup configures the event to ignore the group parameter
	// except for the purpose of setting up output redirection using
	// the FDOutput flag.
	NoGroup Flag = unix.PERF_FLAG_FD_NO_GROUP

	// FDOutput re-routes the event's sampled output to be included in the
	// memory mapped buffer of the event specified by the group parameter.
	FDOutput Flag = unix.PERF_FLAG_FD_OUTPUT

	// PidCGroup activates per-container system-wide monitoring. In this
	// case, a file descriptor opened on /dev/cgroup/<x> must be passed
	// as the pid parameter. Consult the perf_event_open man page for
	// more details.
	PidCGroup Flag = unix.PERF_FLAG_PID_CGROUP

	// cloexec configures the event file descriptor to be opened in
	// close-on-exec mode. Package perf sets this flag by default on
	// all file descriptors.
	cloexec Flag = unix.PERF_FLAG_FD_CLOEXEC
)

// Event states.
const (
	eventStateUninitialized = 0
	eventStateOK            = 1
	eventStateClosed        = 2
)

// An Event is an open perf event.
type Event struct {
	// state is the state of the event. See eventState* constants.
	state int32

	// fd is the event file descriptor.
	fd int

	// group contains other events in the event group, if this event is
	// an event group leader.
	group []*Event

	// attr is the set of attributes the Event was configured with.
	// It is a clone of the original.
	attr *Attr

	// ring is the memory mapped ring buffer, nil until MapRing.
	ring *ring

	// pcfg is the parse configuration for records read from the ring.
	// It is captured from attr when the ring is mapped.
	pcfg parseConfig

	// wakeupfd is an event file descriptor (see eventfd(2)): it is used
	// to unblock calls to ppoll(2) on the perf fd.
	wakeupfd int

	// pollreq communicates requests from blocking record reads to the
	// poll goroutine associated with the ring.
	pollreq chan pollreq

	// pollresp receives responses from the poll goroutine associated
	// with the ring, back to the blocking read.
	pollresp chan pollresp
}

// numRingPages is the number of pages we map for the ring buffer data
// region, which must be a power of two. This is the value the perf tool
// uses, at least on systems with 4KiB pages. There is no other theory
// behind this number.
const numRingPages = 128

// Open opens the event configured by attr.
//
// The pid and cpu parameters specify which thread and CPU to monitor:
//
//   - if pid == CallingThread and cpu == AnyCPU, the event measures
//     the calling thread on any CPU
//
//   - if pid == CallingThread and cpu >= 0, the event measures
//     the calling thread only when running on the specified CPU
//
//   - if pid > 0 and cpu == AnyCPU, the event measures the specified
//     thread on any CPU
//
//   - if pid > 0 and cpu >= 0, the event measures the specified thread
//     only when running on the specified CPU
//
//   - if pid == AllThreads and cpu >= 0, the event measures all threads
//     on the specified CPU
//
//   - finally, the pid == AllThreads and cpu == AnyCPU setting is invalid
//
// If group is non-nil, the returned Event is made part of the group
// associated with the specified group Event. If group is non-nil, and
// NoGroup | FDOutput are not set, the attr.Options.Disabled setting is
// ignored: the group leader controls when the entire group is enabled.
func Open(attr *Attr, pid, cpu int, group *Event, flags Flag) (*Event, error) {
	groupfd := -1
	if group != nil {
		if err := group.ok(); err != nil {
			return nil, err
		}
		groupfd = group.fd
	}
	flags |= cloexec
	fd, err := unix.PerfEventOpen(attr.sysAttr(), pid, cpu, groupfd, int(flags))
	if err != nil {
		return nil, os.NewSyscallError("perf_event_open", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}
	attrClone := new(Attr)
	*attrClone = *attr // ok to copy since no slices
	ev := &Event{
		state: eventStateOK,
		fd:    fd,
		attr:  attrClone,
	}
	if group != nil {
		group.group = append(group.group, ev)
	}
	return ev, nil
}

func (ev *Event) ok() error {
	if ev == nil {
		return os.ErrInvalid
	}
	switch ev.state {
	case eventStateUninitialized:
		return os.ErrInvalid
	case eventStateOK:
		return nil
	default: // eventStateClosed
		return errClosed
	}
}

// MapRing maps the ring buffer attached to the event into memory, and
// starts the poll goroutine servicing blocking reads. MapRing must be
// called before ReadRecord, ReadRawRecord or ReadUserCount.
//
// The record layout configuration is captured when the ring is mapped:
// attribute changes made afterwards with ModifyAttributes do not affect
// how records are decoded.
func (ev *Event) MapRing() error {
	if err := ev.ok(); err != nil {
		return err
	}
	if ev.ring != nil {
		return nil
	}
	r, err := newRing(ev.fd, numRingPages)
	if err != nil {
		return err
	}
	wakeupfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		r.destroy()
		return os.NewSyscallError("eventfd", err)
	}
	ev.ring = r
	ev.pcfg = ev.attr.parseConfig()
	ev.wakeupfd = wakeupfd
	ev.pollreq = make(chan pollreq)
	ev.pollresp = make(chan pollresp)
	go ev.poll()
	return nil
}

// Measure disables the event, resets it, enables it, runs f, disables it
// again, then reads the Count associated with the event.
func (ev *Event) Measure(f func()) (Count, error) {
	if err := ev.Disable(); err != nil {
		return Count{}, err
	}
	if err := ev.Reset(); err != nil {
		return Count{}, err
	}
	if err := ev.Enable(); err != nil {
		return Count{}, err
	}
	f()
	if err := ev.Disable(); err != nil {
		return Count{}, err
	}
	return ev.ReadCount()
}

// MeasureGroup is like Measure, but for event groups.
func (ev *Event) MeasureGroup(f func()) (GroupCount, error) {
	if err := ev.Disable(); err != nil {
		return GroupCount{}, err
	}
	if err := ev.Reset(); err != nil {
		return GroupCount{}, err
	}
	if err := ev.Enable(); err != nil {
		return GroupCount{}, err
	}
	f()
	if err := ev.Disable(); err != nil {
		return GroupCount{}, err
	}
	return ev.ReadGroupCount()
}

// Enable enables the event.
func (ev *Event) Enable() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlEnable(ev.fd)
}

// Disable disables the event.
func (ev *Event) Disable() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlDisable(ev.fd)
}

// Refresh adds delta to a counter associated with the event. This
// counter decrements every time the event overflows. Once the counter
// reaches zero, the event is disabled.
func (ev *Event) Refresh(delta int) error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlRefresh(ev.fd, delta)
}

// Reset resets the counters associated with the event.
func (ev *Event) Reset() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlReset(ev.fd)
}

// UpdatePeriod updates the overflow period for the event. On older
// kernels, the new period does not take effect until after the next
// overflow.
func (ev *Event) UpdatePeriod(p uint64) error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPeriod(ev.fd, &p)
}

// SetOutput tells the kernel to report event notifications to the
// specified target Event rather than ev. ev and target must be on the
// same CPU.
//
// If target is nil, output from ev is ignored.
func (ev *Event) SetOutput(target *Event) error {
	if err := ev.ok(); err != nil {
		return err
	}
	if target == nil {
		return ioctlSetOutput(ev.fd, -1)
	}
	if err := target.ok(); err != nil {
		return err
	}
	return ioctlSetOutput(ev.fd, target.fd)
}

// ID returns the unique event ID value for ev.
func (ev *Event) ID() (uint64, error) {
	if err := ev.ok(); err != nil {
		return 0, err
	}
	var val uint64
	err := ioctlID(ev.fd, &val)
	return val, err
}

// SetBPF attaches a BPF program to ev, which must be a kprobe tracepoint
// event. progfd is the file descriptor associated with the BPF program.
func (ev *Event) SetBPF(progfd uint32) error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlSetBPF(ev.fd, progfd)
}

// PauseOutput pauses the output from ev.
func (ev *Event) PauseOutput() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPauseOutput(ev.fd, 1)
}

// ResumeOutput resumes output from ev.
func (ev *Event) ResumeOutput() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPauseOutput(ev.fd, 0)
}

// QueryBPF queries the event for BPF program file descriptors attached
// to the same tracepoint as ev. max is the maximum number of file
// descriptors to return.
func (ev *Event) QueryBPF(max uint32) ([]uint32, error) {
	if err := ev.ok(); err != nil {
		return nil, err
	}
	return ioctlQueryBPF(ev.fd, max)
}

// ModifyAttributes modifies the attributes of an event.
func (ev *Event) ModifyAttributes(attr Attr) error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlModifyAttributes(ev.fd, attr.sysAttr())
}

// Count is a measurement taken by an Event.
//
// The Value field is always present and populated.
//
// The Enabled field is populated if CountFormat.Enabled is set on the
// Event the Count was read from. Ditto for Running, ID and Lost.
//
// Label is the label of the event the count was read from, if any. It is
// not a kernel field: it is set from Attr.Label for counts read with
// ReadCount, and is empty on counter values decoded from records.
type Count struct {
	Value   uint64
	Enabled time.Duration
	Running time.Duration
	ID      uint64
	Lost    uint64
	Label   string
}

// ReadCount reads the measurement associated with ev. If the Event was
// configured with CountFormat.Group, ReadCount returns an error.
func (ev *Event) ReadCount() (Count, error) {
	var c Count
	if err := ev.ok(); err != nil {
		return c, err
	}
	if ev.attr.CountFormat.Group {
		return c, errors.New("perf: calling ReadCount on group Event")
	}
	buf := make([]byte, ev.attr.CountFormat.readSize())
	if _, err := unix.Read(ev.fd, buf); err != nil {
		return c, os.NewSyscallError("read", err)
	}
	bb := makeByteBuffer(buf, nil)
	f := fields{buf: &bb, cfg: ev.attr.parseConfig()}
	f.count(&c)
	if err := f.done(); err != nil {
		return c, err
	}
	c.Label = ev.attr.Label
	return c, nil
}

// GroupValue is one counter value in a GroupCount.
type GroupValue struct {
	Value uint64
	ID    uint64
	Lost  uint64
	Label string
}

// GroupCount is a group of measurements taken by an Event group.
//
// Fields are populated as described in the Count documentation.
type GroupCount struct {
	Enabled time.Duration
	Running time.Duration
	Values  []GroupValue
}

// ReadGroupCount reads the measurements associated with ev. If the Event
// was not configured with CountFormat.Group, ReadGroupCount returns an
// error.
func (ev *Event) ReadGroupCount() (GroupCount, error) {
	var gc GroupCount
	if err := ev.ok(); err != nil {
		return gc, err
	}
	if !ev.attr.CountFormat.Group {
		return gc, errors.New("perf: calling ReadGroupCount on non-group Event")
	}
	headerSize := ev.attr.CountFormat.groupReadHeaderSize()
	countsSize := (1 + len(ev.group)) * ev.attr.CountFormat.groupReadCountSize()
	buf := make([]byte, headerSize+countsSize)
	if _, err := unix.Read(ev.fd, buf); err != nil {
		return gc, os.NewSyscallError("read", err)
	}
	bb := makeByteBuffer(buf, nil)
	f := fields{buf: &bb, cfg: ev.attr.parseConfig()}
	f.groupCount(&gc)
	if err := f.done(); err != nil {
		return gc, err
	}
	if len(gc.Values) > 0 {
		gc.Values[0].Label = ev.attr.Label
	}
	for i, m := range ev.group {
		if i+1 < len(gc.Values) {
			gc.Values[i+1].Label = m.attr.Label
		}
	}
	return gc, nil
}

// Close closes the event. Close must not be called concurrently with any
// other methods on the Event.
//
// Events opened as part of a group through Group.Open are closed when
// the group leader is closed.
func (ev *Event) Close() error {
	if ev.state == eventStateClosed {
		return nil
	}
	ev.state = eventStateClosed
	var firstErr error
	if ev.ring != nil {
		close(ev.pollreq)
		<-ev.pollresp
		firstErr = ev.ring.destroy()
		ev.ring = nil
		if err := unix.Close(ev.wakeupfd); err != nil && firstErr == nil {
			firstErr = os.NewSyscallError("close", err)
		}
	}
	for _, member := range ev.group {
		if err := member.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := unix.Close(ev.fd); err != nil && firstErr == nil {
		firstErr = os.NewSyscallError("close", err)
	}
	return firstErr
}

// Attr configures a perf event.
type Attr struct {
	// Label is a human readable label associated with the event.
	// For convenience, the Label is included in Count and GroupCount
	// measurements read from events.
	//
	// Label has no ABI meaning: it is not passed to the kernel.
	Label string

	// Type is the major type of the event.
	Type EventType

	// Config is the type-specific event configuration.
	Config uint64

	// Sample configures the sample period or sample frequency for
	// overflow packets, based on Options.Freq: if Options.Freq is set,
	// Sample is interpreted as "sample frequency", otherwise it is
	// interpreted as "sample period".
	Sample uint64

	// SampleFormat configures information requested in sample records,
	// on the memory mapped ring buffer.
	SampleFormat SampleFormat

	// CountFormat specifies the format of counts read from the Event
	// using ReadCount or ReadGroupCount. See the CountFormat
	// documentation for more details.
	CountFormat CountFormat

	// Options contains more fine grained event configuration.
	Options Options

	// Wakeup configures event wakeup. If Options.Watermark is set,
	// Wakeup is interpreted as the number of bytes before wakeup.
	// Otherwise, it is interpreted as "wake up every n events".
	Wakeup uint32

	// BreakpointType is the breakpoint type, if Type == BreakpointEvent.
	BreakpointType uint32

	// Config1 is used for events that need an extra register or
	// otherwise do not fit in the regular config field.
	//
	// For breakpoint events, Config1 is the breakpoint address.
	// For kprobes, Config1 is the kprobe function. For uprobes, Config1
	// is the uprobe path.
	Config1 uint64

	// Config2 is a further extension of the Config1 field.
	//
	// For breakpoint events, Config2 is the length of the breakpoint.
	// For kprobes, when the kprobe function is NULL, Config2 is the
	// address of the kprobe. For both kprobes and uprobes, Config2 is
	// the probe offset.
	Config2 uint64

	// BranchSampleFormat specifies what branches to include in the
	// branch record, if SampleFormat.BranchStack is set.
	BranchSampleFormat BranchSampleFormat

	// SampleRegsUser is the set of user registers to dump on samples.
	SampleRegsUser uint64

	// SampleStackUser is the size of the user stack to dump on samples.
	SampleStackUser uint32

	// ClockID is the clock ID to use with samples, if Options.UseClockID
	// is set.
	ClockID int32

	// SampleRegsIntr is the set of registers to dump for each sample.
	// See asm/perf_regs.h for details.
	SampleRegsIntr uint64

	// AuxWatermark is the watermark for the aux area.
	AuxWatermark uint32

	// SampleMaxStack is the maximum number of frame pointers in a call
	// chain. It should be < /proc/sys/kernel/perf_event_max_stack.
	SampleMaxStack uint16
}

func (a Attr) sysAttr() *unix.PerfEventAttr {
	return &unix.PerfEventAttr{
		Type:               uint32(a.Type),
		Size:               uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:             a.Config,
		Sample:             a.Sample,
		Sample_type:        a.SampleFormat.marshal(),
		Read_format:        a.CountFormat.marshal(),
		Bits:               a.Options.marshal(),
		Wakeup:             a.Wakeup,
		Bp_type:            a.BreakpointType,
		Ext1:               a.Config1,
		Ext2:               a.Config2,
		Branch_sample_type: a.BranchSampleFormat.marshal(),
		Sample_regs_user:   a.SampleRegsUser,
		Sample_stack_user:  a.SampleStackUser,
		Clockid:            a.ClockID,
		Sample_regs_intr:   a.SampleRegsIntr,
		Aux_watermark:      a.AuxWatermark,
		Sample_max_stack:   a.SampleMaxStack,
	}
}

// Configure implements the Configurator interface. It overwrites target
// with a copy of a.
func (a *Attr) Configure(target *Attr) error {
	*target = *a
	return nil
}

// SetSamplePeriod configures the sampling period for the event.
//
// It sets attr.Sample to p and disables attr.Options.Freq.
func (a *Attr) SetSamplePeriod(p uint64) {
	a.Sample = p
	a.Options.Freq = false
}

// SetSampleFreq configures the sampling frequency for the event.
//
// It sets attr.Sample to f and enables attr.Options.Freq.
func (a *Attr) SetSampleFreq(f uint64) {
	a.Sample = f
	a.Options.Freq = true
}

// SetWakeupEvents configures the event to wake up readers every n
// events. It sets attr.Wakeup to n and disables attr.Options.Watermark.
func (a *Attr) SetWakeupEvents(n uint32) {
	a.Wakeup = n
	a.Options.Watermark = false
}

// SetWakeupWatermark configures the event to wake up readers every n
// bytes. It sets attr.Wakeup to n and enables attr.Options.Watermark.
func (a *Attr) SetWakeupWatermark(n uint32) {
	a.Wakeup = n
	a.Options.Watermark = true
}

// A Configurator configures event attributes. Implementations include
// *Attr itself and the counter types in the event catalog: see
// HardwareCounter, SoftwareCounter, HardwareCacheCounter, and
// Tracepoint.
type Configurator interface {
	Configure(attr *Attr) error
}

type configFunc func(attr *Attr) error

func (cf configFunc) Configure(attr *Attr) error { return cf(attr) }

// EventType is the overall type of a performance event.
type EventType uint32

// Supported event types.
const (
	HardwareEvent      EventType = unix.PERF_TYPE_HARDWARE
	SoftwareEvent      EventType = unix.PERF_TYPE_SOFTWARE
	TracepointEvent    EventType = unix.PERF_TYPE_TRACEPOINT
	HardwareCacheEvent EventType = unix.PERF_TYPE_HW_CACHE
	RawEvent           EventType = unix.PERF_TYPE_RAW
	BreakpointEvent    EventType = unix.PERF_TYPE_BREAKPOINT
)

// ProbePMU probes /sys/bus/event_source/devices/<name>/type for the
// EventType value associated with the specified PMU.
func ProbePMU(name string) (EventType, error) {
	p := filepath.Join("/sys/bus/event_source/devices", name, "type")
	content, err := os.ReadFile(p)
	if err != nil {
		return 0, err
	}
	nr := strings.TrimSpace(string(content)) // remove trailing newline
	et, err := strconv.ParseUint(nr, 10, 32)
	if err != nil {
		return 0, err
	}
	return EventType(et), nil
}

// HardwareCounter is a hardware performance counter.
type HardwareCounter uint64

// Hardware performance counters.
const (
	CPUCycles             HardwareCounter = unix.PERF_COUNT_HW_CPU_CYCLES
	Instructions          HardwareCounter = unix.PERF_COUNT_HW_INSTRUCTIONS
	CacheReferences       HardwareCounter = unix.PERF_COUNT_HW_CACHE_REFERENCES
	CacheMisses           HardwareCounter = unix.PERF_COUNT_HW_CACHE_MISSES
	BranchInstructions    HardwareCounter = unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS
	BranchMisses          HardwareCounter = unix.PERF_COUNT_HW_BRANCH_MISSES
	BusCycles             HardwareCounter = unix.PERF_COUNT_HW_BUS_CYCLES
	StalledCyclesFrontend HardwareCounter = unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND
	StalledCyclesBackend  HardwareCounter = unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND
	RefCPUCycles          HardwareCounter = unix.PERF_COUNT_HW_REF_CPU_CYCLES
)

var hardwareLabels = map[HardwareCounter]string{
	CPUCycles:             "cpu-cycles",
	Instructions:          "instructions",
	CacheReferences:       "cache-references",
	CacheMisses:           "cache-misses",
	BranchInstructions:    "branch-instructions",
	BranchMisses:          "branch-misses",
	BusCycles:             "bus-cycles",
	StalledCyclesFrontend: "stalled-cycles-frontend",
	StalledCyclesBackend:  "stalled-cycles-backend",
	RefCPUCycles:          "ref-cycles",
}

func (hwc HardwareCounter) String() string {
	if label, ok := hardwareLabels[hwc]; ok {
		return label
	}
	return "unknown-hardware-counter"
}

// Configure implements the Configurator interface.
func (hwc HardwareCounter) Configure(attr *Attr) error {
	attr.Label = hwc.String()
	attr.Type = HardwareEvent
	attr.Config = uint64(hwc)
	return nil
}

// AllHardwareCounters returns a slice of all known hardware counters.
func AllHardwareCounters() []Configurator {
	return []Configurator{
		CPUCycles,
		Instructions,
		CacheReferences,
		CacheMisses,
		BranchInstructions,
		BranchMisses,
		BusCycles,
		StalledCyclesFrontend,
		StalledCyclesBackend,
		RefCPUCycles,
	}
}

// SoftwareCounter is a software performance counter.
type SoftwareCounter uint64

// Software performance counters.
const (
	CPUClock        SoftwareCounter = unix.PERF_COUNT_SW_CPU_CLOCK
	TaskClock       SoftwareCounter = unix.PERF_COUNT_SW_TASK_CLOCK
	PageFaults      SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS
	ContextSwitches SoftwareCounter = unix.PERF_COUNT_SW_CONTEXT_SWITCHES
	CPUMigrations   SoftwareCounter = unix.PERF_COUNT_SW_CPU_MIGRATIONS
	MinorPageFaults SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS_MIN
	MajorPageFaults SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ
	AlignmentFaults SoftwareCounter = unix.PERF_COUNT_SW_ALIGNMENT_FAULTS
	EmulationFaults SoftwareCounter = unix.PERF_COUNT_SW_EMULATION_FAULTS
	Dummy           SoftwareCounter = unix.PERF_COUNT_SW_DUMMY
	BPFOutput       SoftwareCounter = unix.PERF_COUNT_SW_BPF_OUTPUT
)

var softwareLabels = map[SoftwareCounter]string{
	CPUClock:        "cpu-clock",
	TaskClock:       "task-clock",
	PageFaults:      "page-faults",
	ContextSwitches: "context-switches",
	CPUMigrations:   "cpu-migrations",
	MinorPageFaults: "minor-faults",
	MajorPageFaults: "major-faults",
	AlignmentFaults: "alignment-faults",
	EmulationFaults: "emulation-faults",
	Dummy:           "dummy",
	BPFOutput:       "bpf-output",
}

func (swc SoftwareCounter) String() string {
	if label, ok := softwareLabels[swc]; ok {
		return label
	}
	return "unknown-software-counter"
}

// Configure implements the Configurator interface.
func (swc SoftwareCounter) Configure(attr *Attr) error {
	attr.Label = swc.String()
	attr.Type = SoftwareEvent
	attr.Config = uint64(swc)
	return nil
}

// AllSoftwareCounters returns a slice of all known software counters.
func AllSoftwareCounters() []Configurator {
	return []Configurator{
		CPUClock,
		TaskClock,
		PageFaults,
		ContextSwitches,
		CPUMigrations,
		MinorPageFaults,
		MajorPageFaults,
		AlignmentFaults,
		EmulationFaults,
		Dummy,
		BPFOutput,
	}
}

// Cache identifies a cache.
type Cache uint64

// Caches.
const (
	L1D  Cache = unix.PERF_COUNT_HW_CACHE_L1D
	L1I  Cache = unix.PERF_COUNT_HW_CACHE_L1I
	LL   Cache = unix.PERF_COUNT_HW_CACHE_LL
	DTLB Cache = unix.PERF_COUNT_HW_CACHE_DTLB
	ITLB Cache = unix.PERF_COUNT_HW_CACHE_ITLB
	BPU  Cache = unix.PERF_COUNT_HW_CACHE_BPU
	NODE Cache = unix.PERF_COUNT_HW_CACHE_NODE
)

// AllCaches returns a slice of all known cache types.
func AllCaches() []Cache {
	return []Cache{L1D, L1I, LL, DTLB, ITLB, BPU, NODE}
}

// CacheOp is a cache operation.
type CacheOp uint64

// Cache operations.
const (
	Read     CacheOp = unix.PERF_COUNT_HW_CACHE_OP_READ
	Write    CacheOp = unix.PERF_COUNT_HW_CACHE_OP_WRITE
	Prefetch CacheOp = unix.PERF_COUNT_HW_CACHE_OP_PREFETCH
)

// AllCacheOps returns a slice of all known cache operations.
func AllCacheOps() []CacheOp {
	return []CacheOp{Read, Write, Prefetch}
}

// CacheOpResult is the result of a cache operation.
type CacheOpResult uint64

// Cache operation results.
const (
	Access CacheOpResult = unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS
	Miss   CacheOpResult = unix.PERF_COUNT_HW_CACHE_RESULT_MISS
)

// AllCacheOpResults returns a slice of all known cache operation results.
func AllCacheOpResults() []CacheOpResult {
	return []CacheOpResult{Access, Miss}
}

// A HardwareCacheCounter groups a cache, a cache operation, and an
// operation result.
type HardwareCacheCounter struct {
	Cache  Cache
	Op     CacheOp
	Result CacheOpResult
}

// Configure implements the Configurator interface.
func (hwcc HardwareCacheCounter) Configure(attr *Attr) error {
	attr.Type = HardwareCacheEvent
	attr.Config = uint64(hwcc.Cache) | uint64(hwcc.Op)<<8 | uint64(hwcc.Result)<<16
	return nil
}

// HardwareCacheCounters returns cache counters which measure the
// cartesian product of the specified caches, operations and results.
func HardwareCacheCounters(caches []Cache, ops []CacheOp, results []CacheOpResult) []Configurator {
	counters := make([]Configurator, 0, len(caches)*len(ops)*len(results))
	for _, cache := range caches {
		for _, op := range ops {
			for _, result := range results {
				c := HardwareCacheCounter{
					Cache:  cache,
					Op:     op,
					Result: result,
				}
				counters = append(counters, c)
			}
		}
	}
	return counters
}

// tracefs mount points, in search order. Older kernels expose the trace
// filesystem only under debugfs.
var tracefsRoots = []string{
	"/sys/kernel/tracing",
	"/sys/kernel/debug/tracing",
}

// Tracepoint returns a Configurator for the specified category and
// event. The returned Configurator probes tracefs for the tracepoint ID,
// and sets the Type and Config fields of the event attributes.
func Tracepoint(category, event string) Configurator {
	return configFunc(func(attr *Attr) error {
		cfg, err := lookupTracepointConfig(category, event)
		if err != nil {
			return err
		}
		attr.Label = category + ":" + event
		attr.Type = TracepointEvent
		attr.Config = cfg
		return nil
	})
}

func lookupTracepointConfig(category, event string) (uint64, error) {
	var firstErr error
	for _, root := range tracefsRoots {
		p := filepath.Join(root, "events", category, event, "id")
		content, err := os.ReadFile(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		nr := strings.TrimSpace(string(content)) // remove trailing newline
		return strconv.ParseUint(nr, 10, 64)
	}
	return 0, firstErr
}

// Breakpoint returns a Configurator for a breakpoint event.
//
// typ is the type of the breakpoint.
//
// addr is the address of the breakpoint. For execution breakpoints, this
// is the memory address of the instruction of interest; for read and
// write breakpoints, it is the memory address of the memory location of
// interest.
//
// length is the length of the breakpoint being measured.
//
// The returned Configurator sets the Type, BreakpointType, Config1 and
// Config2 fields of the event attributes.
func Breakpoint(typ BreakpointType, addr uint64, length BreakpointLength) Configurator {
	return configFunc(func(attr *Attr) error {
		attr.Type = BreakpointEvent
		attr.BreakpointType = uint32(typ)
		attr.Config1 = addr
		attr.Config2 = uint64(length)
		return nil
	})
}

// BreakpointType is the type of a breakpoint.
type BreakpointType uint32

// Breakpoint types. Values are |-ed together. The combination of
// BreakpointTypeR or BreakpointTypeW with BreakpointTypeX is invalid.
const (
	BreakpointTypeEmpty BreakpointType = 0x0
	BreakpointTypeR     BreakpointType = 0x1
	BreakpointTypeW     BreakpointType = 0x2
	BreakpointTypeRW                   = BreakpointTypeR | BreakpointTypeW
	BreakpointTypeX     BreakpointType = 0x4
)

// BreakpointLength is the length of the breakpoint being measured.
type BreakpointLength uint64

// Breakpoint length values.
const (
	BreakpointLength1 BreakpointLength = 1
	BreakpointLength2 BreakpointLength = 2
	BreakpointLength4 BreakpointLength = 4
	BreakpointLength8 BreakpointLength = 8
)

// ExecutionBreakpointLength returns the length of an execution
// breakpoint.
func ExecutionBreakpointLength() BreakpointLength {
	var x uintptr
	return BreakpointLength(unsafe.Sizeof(x))
}

// ExecutionBreakpoint returns a Configurator for an execution breakpoint
// at the specified address.
func ExecutionBreakpoint(addr uint64) Configurator {
	return Breakpoint(BreakpointTypeX, addr, ExecutionBreakpointLength())
}

// CountFormat configures the format of Count or GroupCount measurements.
//
// Enabled and Running configure the Event to include time enabled and
// time running measurements in the counts. Usually, these two values are
// equal. They may differ when events are multiplexed.
//
// If ID is set, a unique ID is assigned to the associated event.
//
// If Lost is set, counts include the number of lost samples of the
// associated event.
//
// If Group is set, callers must use ReadGroupCount on the associated
// Event. Otherwise, they must use ReadCount.
type CountFormat struct {
	Enabled bool
	Running bool
	ID      bool
	Group   bool
	Lost    bool
}

// readSize returns the size of a Count read from an event.
func (f CountFormat) readSize() int {
	size := 8 // value is always set
	if f.Enabled {
		size += 8
	}
	if f.Running {
		size += 8
	}
	if f.ID {
		size += 8
	}
	if f.Lost {
		size += 8
	}
	return size
}

// groupReadHeaderSize returns the size of the header of a GroupCount
// read from an event group.
func (f CountFormat) groupReadHeaderSize() int {
	size := 8 // number of events is always set
	if f.Enabled {
		size += 8
	}
	if f.Running {
		size += 8
	}
	return size
}

// groupReadCountSize returns the size of one GroupValue in a GroupCount.
func (f CountFormat) groupReadCountSize() int {
	size := 8 // value is always set
	if f.ID {
		size += 8
	}
	if f.Lost {
		size += 8
	}
	return size
}

// marshal marshals the CountFormat into a uint64.
func (f CountFormat) marshal() uint64 {
	// Always keep this in sync with the type definition above.
	return marshalBitwiseUint64([]bool{
		f.Enabled,
		f.Running,
		f.ID,
		f.Group,
		f.Lost,
	})
}

// SampleFormat configures the information a sample record carries, and,
// through the RecordID trailer, the metadata attached to all other
// records if Options.SampleIDAll is set.
type SampleFormat struct {
	IP            bool
	Tid           bool
	Time          bool
	Addr          bool
	Count         bool // the "read" bit in the kernel ABI
	Callchain     bool
	ID            bool
	CPU           bool
	Period        bool
	StreamID      bool
	Raw           bool
	BranchStack   bool
	UserRegisters bool
	UserStack     bool
	Weight        bool
	DataSource    bool
	Identifier    bool
	Transaction   bool
	IntrRegisters bool
	PhysicalAddr  bool
	Aux           bool
	CgroupID      bool
	DataPageSize  bool
	CodePageSize  bool
	WeightStruct  bool
}

// marshal packs the SampleFormat into a uint64.
func (sf SampleFormat) marshal() uint64 {
	// Always keep this in sync with the type definition above.
	return marshalBitwiseUint64([]bool{
		sf.IP,
		sf.Tid,
		sf.Time,
		sf.Addr,
		sf.Count,
		sf.Callchain,
		sf.ID,
		sf.CPU,
		sf.Period,
		sf.StreamID,
		sf.Raw,
		sf.BranchStack,
		sf.UserRegisters,
		sf.UserStack,
		sf.Weight,
		sf.DataSource,
		sf.Identifier,
		sf.Transaction,
		sf.IntrRegisters,
		sf.PhysicalAddr,
		sf.Aux,
		sf.CgroupID,
		sf.DataPageSize,
		sf.CodePageSize,
		sf.WeightStruct,
	})
}

// BranchSampleFormat configures what branches to include in a branch
// record.
type BranchSampleFormat struct {
	// Privilege is the branch sample privilege level. If unset, the
	// kernel uses the privilege level of the event.
	Privilege BranchSamplePrivilege

	// Sample configures the types of branches to sample.
	Sample BranchSample

	// HardwareIndex requests the low level index of the sampled
	// branches, delivered as BranchHardwareIndex on samples.
	HardwareIndex bool
}

func (b BranchSampleFormat) marshal() uint64 {
	v := uint64(b.Privilege) | uint64(b.Sample)
	if b.HardwareIndex {
		v |= 1 << 17
	}
	return v
}

// BranchSamplePrivilege speficies a branch sample privilege level. If
// unset, the kernel uses the privilege level of the event. Values are
// or-ed together.
type BranchSamplePrivilege uint64

// Branch sample privilege values.
const (
	BranchPrivilegeUser       BranchSamplePrivilege = 1 << 0
	BranchPrivilegeKernel     BranchSamplePrivilege = 1 << 1
	BranchPrivilegeHypervisor BranchSamplePrivilege = 1 << 2
)

// BranchSample specifies a type of branch to sample. Values are or-ed
// together.
type BranchSample uint64

// Branch sample bits.
const (
	BranchSampleAny         BranchSample = 1 << (iota + 3)
	BranchSampleAnyCall
	BranchSampleAnyReturn
	BranchSampleIndirectCall
	BranchSampleAbortTransaction
	BranchSampleInTransaction
	BranchSampleNoTransaction
	BranchSampleCond
	BranchSampleCallStack
	BranchSampleIndirectJump
	BranchSampleCall
	BranchSampleNoFlags
	BranchSampleNoCycles
	BranchSampleSaveType
)

// Skid is an instruction pointer skid constraint.
type Skid int

// Supported Skid settings.
const (
	CanHaveArbitrarySkid Skid = 0
	MustHaveConstantSkid Skid = 1
	RequestedZeroSkid    Skid = 2
	MustHaveZeroSkid     Skid = 3
)

// Options contains low level event options.
type Options struct {
	// Disabled disables the event by default. If the event is in a
	// group, but not a group leader, this option has no effect, since
	// the group leader controls when events are enabled or disabled.
	Disabled bool

	// Inherit specifies that this counter should count events of child
	// tasks as well as the specified task. This only applies to new
	// children, not to any existing children at the time the counter
	// is created (nor to any new children of existing children).
	//
	// Inherit does not work with some combination of CountFormat
	// options, such as CountFormat.Group.
	Inherit bool

	// Pinned specifies that the counter should always be on the CPU if
	// possible. This bit applies only to hardware counters, and only
	// to group leaders. If a pinned counter cannot be put onto the CPU,
	// then the counter goes into an error state, where reads return
	// EOF, until it is subsequently enabled or disabled.
	Pinned bool

	// Exclusive specifies that when this counter's group is on the CPU,
	// it should be the only group using the CPU's counters.
	Exclusive bool

	// ExcludeUser excludes events that happen in user space.
	ExcludeUser bool

	// ExcludeKernel excludes events that happen in kernel space.
	ExcludeKernel bool

	// ExcludeHypervisor excludes events that happen in the hypervisor.
	ExcludeHypervisor bool

	// ExcludeIdle disables counting while the CPU is idle.
	ExcludeIdle bool

	// Mmap enables generation of MmapRecord records for every mmap(2)
	// call that has PROT_EXEC set.
	Mmap bool

	// Comm enables tracking of process command name, as modified by
	// exec(2), prctl(PR_SET_NAME), as well as writing to
	// /proc/self/comm. If CommExec is also set, the CommRecord records
	// produced can be queried using the WasExec method, to
	// differentiate exec(2) from the other cases.
	Comm bool

	// Freq configures the event to use sample frequency, rather than
	// sample period. See also Attr.Sample.
	Freq bool

	// InheritStat enables saving of event counts on context switch for
	// inherited tasks. InheritStat is only meaningful if Inherit is
	// also set.
	InheritStat bool

	// EnableOnExec configures the counter to be enabled automatically
	// after a call to exec(2).
	EnableOnExec bool

	// Task configures the event to include fork/exit notifications in
	// the ring buffer.
	Task bool

	// Watermark configures the ring buffer to issue an overflow
	// notification when the Wakeup boundary is crossed. If not set,
	// notifications happen after Wakeup samples. See also Attr.Wakeup.
	Watermark bool

	// PreciseIP controls the number of instructions between an event of
	// interest happening and the kernel being able to stop and record
	// the event.
	PreciseIP Skid

	// MmapData is the counterpart to Mmap. It enables generation of
	// MmapRecord records for mmap(2) calls that do not have PROT_EXEC
	// set.
	MmapData bool

	// SampleIDAll configures Tid, Time, ID, StreamID and CPU samples to
	// be included in non-Sample records, as a RecordID trailer.
	SampleIDAll bool

	// ExcludeHost configures only events happening inside a guest
	// instance (one that has executed a KVM_RUN ioctl) to be measured.
	ExcludeHost bool

	// ExcludeGuest is the opposite of ExcludeHost: it configures only
	// events outside a guest instance to be measured.
	ExcludeGuest bool

	// ExcludeKernelCallchain excludes kernel callchains.
	ExcludeKernelCallchain bool

	// ExcludeUserCallchain excludes user callchains.
	ExcludeUserCallchain bool

	// Mmap2 configures mmap(2) events to include inode data, delivered
	// as Mmap2Record.
	Mmap2 bool

	// CommExec allows the distinction between process renaming via
	// exec(2) or via other means. See also Comm, and
	// (*CommRecord).WasExec.
	CommExec bool

	// UseClockID allows selecting which internal linux clock to use
	// when generating timestamps via the ClockID field.
	UseClockID bool

	// ContextSwitch enables the generation of SwitchRecord records,
	// and SwitchCPUWideRecord records when sampling in CPU-wide mode.
	ContextSwitch bool

	// writeBackward configures the kernel to write to the memory
	// mapped ring buffer backwards. This option is not supported by
	// this package.
	writeBackward bool

	// Namespaces enables the generation of NamespacesRecord records.
	Namespaces bool

	// Ksymbol enables the generation of KsymbolRecord records.
	Ksymbol bool

	// BPFEvent enables the generation of BPFEventRecord records.
	BPFEvent bool

	// AuxOutput configures the event to generate AUX records instead of
	// sample records.
	AuxOutput bool

	// CgroupTracking enables the generation of CgroupRecord records.
	CgroupTracking bool

	// TextPoke enables the generation of TextPokeRecord records.
	TextPoke bool
}

func (opt Options) marshal() uint64 {
	bits := marshalBitwiseUint64([]bool{
		opt.Disabled,
		opt.Inherit,
		opt.Pinned,
		opt.Exclusive,
		opt.ExcludeUser,
		opt.ExcludeKernel,
		opt.ExcludeHypervisor,
		opt.ExcludeIdle,
		opt.Mmap,
		opt.Comm,
		opt.Freq,
		opt.InheritStat,
		opt.EnableOnExec,
		opt.Task,
		opt.Watermark,
		false, false, // PreciseIP, marshaled below
		opt.MmapData,
		opt.SampleIDAll,
		opt.ExcludeHost,
		opt.ExcludeGuest,
		opt.ExcludeKernelCallchain,
		opt.ExcludeUserCallchain,
		opt.Mmap2,
		opt.CommExec,
		opt.UseClockID,
		opt.ContextSwitch,
		opt.writeBackward,
		opt.Namespaces,
		opt.Ksymbol,
		opt.BPFEvent,
		opt.AuxOutput,
		opt.CgroupTracking,
		opt.TextPoke,
	})
	bits |= uint64(opt.PreciseIP&3) << 15
	return bits
}
