// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import "math/bits"

// SampleRecord is a sample produced by an event that does not count a
// group. Fields are set according to the SampleFormat the event was
// configured with: a field whose bit was not set retains its zero value.
//
// Sample records never carry a RecordID trailer. See SampleID.
type SampleRecord struct {
	RecordHeader
	Identifier uint64
	IP         uint64
	Pid        uint32
	Tid        uint32
	Time       uint64
	Addr       uint64
	ID         uint64
	StreamID   uint64
	CPU        uint32
	Res        uint32
	Period     uint64
	Count      Count

	Callchain []uint64
	Raw       []byte

	// BranchHardwareIndex is the low level table index of the sampled
	// branches, present only if the event requested it through its
	// BranchSampleFormat.
	BranchHardwareIndex uint64
	BranchStack         []BranchEntry

	UserRegisters Registers
	UserStack     []byte
	Weight        uint64
	DataSource    DataSource
	Transaction   Transaction
	IntrRegisters Registers
	PhysicalAddr  uint64
	CgroupID      uint64
	DataPageSize  uint64
	CodePageSize  uint64
	Aux           []byte

	// Extra holds payload bytes past the last field this package knows
	// about, so nothing the kernel wrote is silently dropped.
	Extra []byte
}

func (sr *SampleRecord) decode(f *fields) {
	sf := f.cfg.sampleFormat
	f.uint64Cond(sf.Identifier, &sr.Identifier)
	f.uint64Cond(sf.IP, &sr.IP)
	if sf.Tid {
		f.uint32(&sr.Pid)
		f.uint32(&sr.Tid)
	}
	f.uint64Cond(sf.Time, &sr.Time)
	f.uint64Cond(sf.Addr, &sr.Addr)
	f.uint64Cond(sf.ID, &sr.ID)
	f.uint64Cond(sf.StreamID, &sr.StreamID)
	if sf.CPU {
		f.uint32(&sr.CPU)
		f.uint32(&sr.Res)
	}
	f.uint64Cond(sf.Period, &sr.Period)
	if sf.Count {
		f.count(&sr.Count)
	}
	if sf.Callchain {
		f.uint64Array(&sr.Callchain)
	}
	if sf.Raw {
		f.uint64sizeBytes(&sr.Raw)
	}
	if sf.BranchStack {
		decodeBranchStack(f, &sr.BranchHardwareIndex, &sr.BranchStack)
	}
	if sf.UserRegisters {
		f.registers(f.cfg.userRegsMask, &sr.UserRegisters)
	}
	if sf.UserStack {
		f.userStack(&sr.UserStack)
	}
	if sf.Weight || sf.WeightStruct {
		f.uint64(&sr.Weight)
	}
	if sf.DataSource {
		var ds uint64
		f.uint64(&ds)
		sr.DataSource = DataSource(ds)
	}
	if sf.Transaction {
		var txn uint64
		f.uint64(&txn)
		sr.Transaction = Transaction(txn)
	}
	if sf.IntrRegisters {
		f.registers(f.cfg.intrRegsMask, &sr.IntrRegisters)
	}
	f.uint64Cond(sf.PhysicalAddr, &sr.PhysicalAddr)
	f.uint64Cond(sf.CgroupID, &sr.CgroupID)
	f.uint64Cond(sf.DataPageSize, &sr.DataPageSize)
	f.uint64Cond(sf.CodePageSize, &sr.CodePageSize)
	if sf.Aux {
		f.uint64sizeBytes(&sr.Aux)
	}
	f.remainder(&sr.Extra)
}

// SampleID returns the sample's RecordID, synthesized from the payload:
// sample records describe their context inline, instead of carrying a
// trailer like other records do.
func (sr *SampleRecord) SampleID() RecordID {
	return RecordID{
		Pid:        sr.Pid,
		Tid:        sr.Tid,
		Time:       sr.Time,
		ID:         sr.ID,
		StreamID:   sr.StreamID,
		CPU:        sr.CPU,
		Res:        sr.Res,
		Identifier: sr.Identifier,
	}
}

// ExactIP reports whether the sampled IP is the instruction that caused
// the event, as opposed to some instruction near it.
func (sr *SampleRecord) ExactIP() bool { return sr.Misc&miscExactIP != 0 }

// SampleGroupRecord is a sample produced by an event that counts a group.
// Apart from the Count field, its layout is identical to SampleRecord.
type SampleGroupRecord struct {
	RecordHeader
	Identifier uint64
	IP         uint64
	Pid        uint32
	Tid        uint32
	Time       uint64
	Addr       uint64
	ID         uint64
	StreamID   uint64
	CPU        uint32
	Res        uint32
	Period     uint64
	Count      GroupCount

	Callchain []uint64
	Raw       []byte

	BranchHardwareIndex uint64
	BranchStack         []BranchEntry

	UserRegisters Registers
	UserStack     []byte
	Weight        uint64
	DataSource    DataSource
	Transaction   Transaction
	IntrRegisters Registers
	PhysicalAddr  uint64
	CgroupID      uint64
	DataPageSize  uint64
	CodePageSize  uint64
	Aux           []byte

	Extra []byte
}

func (sr *SampleGroupRecord) decode(f *fields) {
	sf := f.cfg.sampleFormat
	f.uint64Cond(sf.Identifier, &sr.Identifier)
	f.uint64Cond(sf.IP, &sr.IP)
	if sf.Tid {
		f.uint32(&sr.Pid)
		f.uint32(&sr.Tid)
	}
	f.uint64Cond(sf.Time, &sr.Time)
	f.uint64Cond(sf.Addr, &sr.Addr)
	f.uint64Cond(sf.ID, &sr.ID)
	f.uint64Cond(sf.StreamID, &sr.StreamID)
	if sf.CPU {
		f.uint32(&sr.CPU)
		f.uint32(&sr.Res)
	}
	f.uint64Cond(sf.Period, &sr.Period)
	if sf.Count {
		f.groupCount(&sr.Count)
	}
	if sf.Callchain {
		f.uint64Array(&sr.Callchain)
	}
	if sf.Raw {
		f.uint64sizeBytes(&sr.Raw)
	}
	if sf.BranchStack {
		decodeBranchStack(f, &sr.BranchHardwareIndex, &sr.BranchStack)
	}
	if sf.UserRegisters {
		f.registers(f.cfg.userRegsMask, &sr.UserRegisters)
	}
	if sf.UserStack {
		f.userStack(&sr.UserStack)
	}
	if sf.Weight || sf.WeightStruct {
		f.uint64(&sr.Weight)
	}
	if sf.DataSource {
		var ds uint64
		f.uint64(&ds)
		sr.DataSource = DataSource(ds)
	}
	if sf.Transaction {
		var txn uint64
		f.uint64(&txn)
		sr.Transaction = Transaction(txn)
	}
	if sf.IntrRegisters {
		f.registers(f.cfg.intrRegsMask, &sr.IntrRegisters)
	}
	f.uint64Cond(sf.PhysicalAddr, &sr.PhysicalAddr)
	f.uint64Cond(sf.CgroupID, &sr.CgroupID)
	f.uint64Cond(sf.DataPageSize, &sr.DataPageSize)
	f.uint64Cond(sf.CodePageSize, &sr.CodePageSize)
	if sf.Aux {
		f.uint64sizeBytes(&sr.Aux)
	}
	f.remainder(&sr.Extra)
}

// SampleID returns the sample's RecordID, synthesized from the payload.
func (sr *SampleGroupRecord) SampleID() RecordID {
	return RecordID{
		Pid:        sr.Pid,
		Tid:        sr.Tid,
		Time:       sr.Time,
		ID:         sr.ID,
		StreamID:   sr.StreamID,
		CPU:        sr.CPU,
		Res:        sr.Res,
		Identifier: sr.Identifier,
	}
}

// ExactIP reports whether the sampled IP is the instruction that caused
// the event.
func (sr *SampleGroupRecord) ExactIP() bool { return sr.Misc&miscExactIP != 0 }

// decodeBranchStack decodes a branch stack: a uint64 count, the optional
// hardware index, then count packed entries.
func decodeBranchStack(f *fields, hwIndex *uint64, entries *[]BranchEntry) {
	var nr uint64
	f.uint64(&nr)
	if f.cfg.branchHWIndex {
		f.uint64(hwIndex)
	}
	if f.err != nil {
		return
	}
	if nr > uint64(f.buf.length())/24 {
		f.err = ErrTruncatedRecord
		return
	}
	bs := make([]BranchEntry, nr)
	for i := range bs {
		var from, to, tmp uint64
		f.uint64(&from)
		f.uint64(&to)
		f.uint64(&tmp)
		bs[i] = BranchEntry{
			From:             from,
			To:               to,
			Mispredicted:     tmp&(1<<0) != 0,
			Predicted:        tmp&(1<<1) != 0,
			InTransaction:    tmp&(1<<2) != 0,
			TransactionAbort: tmp&(1<<3) != 0,
			Cycles:           uint16((tmp << 44) >> 48),
			BranchType:       uint8((tmp << 40) >> 60),
		}
	}
	if f.err == nil {
		*entries = bs
	}
}

// BranchEntry is a sampled branch.
type BranchEntry struct {
	From             uint64
	To               uint64
	Mispredicted     bool
	Predicted        bool
	InTransaction    bool
	TransactionAbort bool
	Cycles           uint16
	BranchType       uint8
}

// RegistersABI is the ABI of a sampled register set.
type RegistersABI uint64

// Known register set ABIs.
const (
	RegistersABINone RegistersABI = 0
	RegistersABI32   RegistersABI = 1
	RegistersABI64   RegistersABI = 2
)

// Registers is a CPU register snapshot captured when a sample fired.
// Values holds one value per set bit in Mask, in ascending bit order. If
// the kernel could not capture registers, ABI is RegistersABINone and
// Mask and Values are empty, regardless of the mask the event requested.
type Registers struct {
	ABI    RegistersABI
	Mask   uint64
	Values []uint64
}

// Value returns the value of the register at the given bit in the mask
// the event was configured with. The second return value is false if the
// register was not captured.
func (r Registers) Value(bit uint8) (uint64, bool) {
	if bit > 63 || r.Mask&(1<<bit) == 0 {
		return 0, false
	}
	idx := bits.OnesCount64(r.Mask & (1<<bit - 1))
	if idx >= len(r.Values) {
		return 0, false
	}
	return r.Values[idx], true
}

// Layout of DataSource bits, from the kernel ABI.
const (
	memOpShift       = 0
	memLevelShift    = 5
	memSnoopShift    = 19
	memLockShift     = 24
	memTLBShift      = 26
	memLevelNumShift = 33
	memRemoteShift   = 37
	memSnoopXShift   = 38
)

// MemOp is a memory operation.
type MemOp uint8

// MemOp flag bits.
const (
	MemOpNA MemOp = 1 << iota
	MemOpLoad
	MemOpStore
	MemOpPrefetch
	MemOpExec
)

// MemLevel is a memory level.
type MemLevel uint32

// MemLevel flag bits.
const (
	MemLevelNA MemLevel = 1 << iota
	MemLevelHit
	MemLevelMiss
	MemLevelL1
	MemLevelLFB
	MemLevelL2
	MemLevelL3
	MemLevelLocalDRAM
	MemLevelRemoteDRAM1
	MemLevelRemoteDRAM2
	MemLevelRemoteCache1
	MemLevelRemoteCache2
	MemLevelIO
	MemLevelUncached
)

// MemSnoop is a snoop mode.
type MemSnoop uint8

// MemSnoop flag bits.
const (
	MemSnoopNA MemSnoop = 1 << iota
	MemSnoopNone
	MemSnoopHit
	MemSnoopMiss
	MemSnoopHitModified
)

// MemLock is a lock mode.
type MemLock uint8

// MemLock flag bits.
const (
	MemLockNA MemLock = 1 << iota
	MemLockLocked
)

// MemTLB is a TLB access outcome.
type MemTLB uint8

// MemTLB flag bits.
const (
	MemTLBNA MemTLB = 1 << iota
	MemTLBHit
	MemTLBMiss
	MemTLBL1
	MemTLBL2
	MemTLBWalk
	MemTLBFault
)

// DataSource describes where in the memory hierarchy the data associated
// with a sampled instruction came from.
type DataSource uint64

// Op returns the memory operation.
func (ds DataSource) Op() MemOp { return MemOp(ds >> memOpShift & 0x1f) }

// Level returns the memory level.
func (ds DataSource) Level() MemLevel { return MemLevel(ds >> memLevelShift & 0x3fff) }

// Snoop returns the snoop mode.
func (ds DataSource) Snoop() MemSnoop { return MemSnoop(ds >> memSnoopShift & 0x1f) }

// Lock returns the lock mode.
func (ds DataSource) Lock() MemLock { return MemLock(ds >> memLockShift & 0x3) }

// TLB returns the TLB access outcome.
func (ds DataSource) TLB() MemTLB { return MemTLB(ds >> memTLBShift & 0x7f) }

// MemSnoopX holds extended snoop mode bits.
type MemSnoopX uint8

// MemSnoopX flag bits.
const (
	MemSnoopXForward MemSnoopX = 1 << iota
	MemSnoopXPeer
)

// SnoopX returns the extended snoop mode bits.
func (ds DataSource) SnoopX() MemSnoopX { return MemSnoopX(ds >> memSnoopXShift & 0x3) }

// LevelNumber returns the memory level as a number: 1 through 4 for L1
// through L4, or one of the MemLevelNum values.
func (ds DataSource) LevelNumber() uint8 { return uint8(ds >> memLevelNumShift & 0xf) }

// Remote reports whether the access was to remote memory.
func (ds DataSource) Remote() bool { return ds>>memRemoteShift&1 != 0 }

// Transaction describes a memory transaction abort.
type Transaction uint64

// Transaction flag bits.
const (
	// TxnElision marks an abort from an elision type transaction,
	// Intel CPU specific.
	TxnElision Transaction = 1 << iota

	// TxnTransaction marks an abort from a generic transaction.
	TxnTransaction

	// TxnSync marks a synchronous abort, from an instruction in the
	// transaction itself.
	TxnSync

	// TxnAsync marks an asynchronous abort.
	TxnAsync

	// TxnRetryable means the transaction may have succeeded on retry.
	TxnRetryable

	// TxnConflict marks an abort caused by a conflicting memory access.
	TxnConflict

	// TxnCapacityWrite marks an abort caused by write capacity overflow.
	TxnCapacityWrite

	// TxnCapacityRead marks an abort caused by read capacity overflow.
	TxnCapacityRead
)

const txnAbortShift = 32

// AbortCode returns the user-specified abort code, for aborts triggered
// in software.
func (txn Transaction) AbortCode() uint32 { return uint32(txn >> txnAbortShift) }
