// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decodeSample(t *testing.T, pc parseConfig, p payload) *SampleRecord {
	t.Helper()
	hdr := p.header(RecordTypeSample, 0)
	rec, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	sr, ok := rec.(*SampleRecord)
	if !ok {
		t.Fatalf("got %T, want a SampleRecord", rec)
	}
	return sr
}

func TestSampleBasicFields(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{
			IP:     true,
			Tid:    true,
			Time:   true,
			CPU:    true,
			Period: true,
		},
	}

	var p payload
	p.u64(0x400000)
	p.u32(31).u32(32)
	p.u64(555555)
	p.u32(2).u32(0)
	p.u64(1)

	sr := decodeSample(t, pc, p)
	if sr.IP != 0x400000 || sr.Pid != 31 || sr.Tid != 32 {
		t.Errorf("got ip=%#x pid=%d tid=%d, want ip=0x400000 pid=31 tid=32", sr.IP, sr.Pid, sr.Tid)
	}
	if sr.Time != 555555 || sr.CPU != 2 || sr.Period != 1 {
		t.Errorf("got time=%d cpu=%d period=%d, want time=555555 cpu=2 period=1", sr.Time, sr.CPU, sr.Period)
	}

	wantID := RecordID{Pid: 31, Tid: 32, Time: 555555, CPU: 2}
	if diff := cmp.Diff(wantID, sr.SampleID()); diff != "" {
		t.Fatalf("SampleID mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleCallchainAndRaw(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Callchain: true, Raw: true},
	}

	var p payload
	p.u64(3).u64(0xa).u64(0xb).u64(0xc)
	rawblob := []byte("rawtracepointdata") // 17 bytes, padded to 24
	p.u64(uint64(len(rawblob) + 7)).raw(rawblob).raw(make([]byte, 7))

	sr := decodeSample(t, pc, p)
	if want := []uint64{0xa, 0xb, 0xc}; !cmp.Equal(want, sr.Callchain) {
		t.Errorf("Callchain: got %v, want %v", sr.Callchain, want)
	}
	if !bytes.HasPrefix(sr.Raw, rawblob) {
		t.Errorf("Raw: got %q, want prefix %q", sr.Raw, rawblob)
	}
}

func TestSampleCallchainTooLong(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Callchain: true},
	}

	// The claimed length exceeds what the record can hold. The decoder
	// must fail cleanly rather than trust it.
	var p payload
	p.u64(1 << 60).u64(0xa)

	hdr := p.header(RecordTypeSample, 0)
	_, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("got %v, want ErrTruncatedRecord", err)
	}
}

func TestSampleRegisters(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{UserRegisters: true},
		userRegsMask: 0x38, // bits 3, 4, 5
	}

	var p payload
	p.u64(uint64(RegistersABI64))
	p.u64(111).u64(222).u64(333)

	sr := decodeSample(t, pc, p)
	regs := sr.UserRegisters
	if regs.ABI != RegistersABI64 {
		t.Fatalf("ABI: got %d, want %d", regs.ABI, RegistersABI64)
	}
	for i, want := range map[uint8]uint64{3: 111, 4: 222, 5: 333} {
		got, ok := regs.Value(i)
		if !ok || got != want {
			t.Errorf("Value(%d): got %d, %t, want %d, true", i, got, ok, want)
		}
	}
	if _, ok := regs.Value(0); ok {
		t.Error("Value(0) reported a register outside the mask")
	}
}

func TestSampleRegistersABINone(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{UserRegisters: true},
		userRegsMask: 0x38,
	}

	// The kernel could not capture registers: only the ABI tag is
	// present, the requested mask notwithstanding.
	var p payload
	p.u64(uint64(RegistersABINone))

	sr := decodeSample(t, pc, p)
	regs := sr.UserRegisters
	if regs.ABI != RegistersABINone || regs.Mask != 0 || len(regs.Values) != 0 {
		t.Fatalf("got %+v, want an empty register set", regs)
	}
	if _, ok := regs.Value(3); ok {
		t.Error("Value(3) reported a register from an empty set")
	}
}

func TestSampleBranchStack(t *testing.T) {
	pc := parseConfig{
		sampleFormat:  SampleFormat{BranchStack: true},
		branchHWIndex: true,
	}

	mkflags := func(mispred bool, cycles uint16, btype uint8) uint64 {
		var v uint64
		if mispred {
			v |= 1 << 0
		}
		v |= uint64(cycles) << 4
		v |= uint64(btype) << 20
		return v
	}

	var p payload
	p.u64(2)  // nr
	p.u64(13) // hardware index
	p.u64(0x1000).u64(0x2000).u64(mkflags(true, 7, 2))
	p.u64(0x3000).u64(0x4000).u64(mkflags(false, 9, 0))

	sr := decodeSample(t, pc, p)
	if sr.BranchHardwareIndex != 13 {
		t.Errorf("BranchHardwareIndex: got %d, want 13", sr.BranchHardwareIndex)
	}
	want := []BranchEntry{
		{From: 0x1000, To: 0x2000, Mispredicted: true, Cycles: 7, BranchType: 2},
		{From: 0x3000, To: 0x4000, Cycles: 9},
	}
	if diff := cmp.Diff(want, sr.BranchStack); diff != "" {
		t.Fatalf("branch stack mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleUserStack(t *testing.T) {
	t.Run("DynamicTruncation", func(t *testing.T) {
		pc := parseConfig{
			sampleFormat: SampleFormat{UserStack: true},
		}

		var p payload
		p.u64(16).raw([]byte("0123456789abcdef"))
		p.u64(9) // dynamic size: only 9 bytes are meaningful

		sr := decodeSample(t, pc, p)
		if want := []byte("012345678"); !bytes.Equal(sr.UserStack, want) {
			t.Fatalf("UserStack: got %q, want %q", sr.UserStack, want)
		}
	})
	t.Run("Empty", func(t *testing.T) {
		pc := parseConfig{
			sampleFormat: SampleFormat{UserStack: true},
		}

		// An empty snapshot has no trailing dynamic size.
		var p payload
		p.u64(0)

		sr := decodeSample(t, pc, p)
		if len(sr.UserStack) != 0 {
			t.Fatalf("UserStack: got %d bytes, want none", len(sr.UserStack))
		}
	})
}

func TestSampleRead(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Count: true},
		countFormat: CountFormat{
			Enabled: true,
			Running: true,
			ID:      true,
		},
	}

	// value, enabled, running, id.
	var p payload
	p.u64(4096)
	p.u64(2000)
	p.u64(1000)
	p.u64(77)

	sr := decodeSample(t, pc, p)
	c := sr.Count
	if c.Value != 4096 || c.Enabled != 2000 || c.Running != 1000 || c.ID != 77 {
		t.Fatalf("got %+v, want value=4096 enabled=2000 running=1000 id=77", c)
	}
}

func TestSampleGroupRead(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Tid: true, Count: true},
		countFormat: CountFormat{
			Enabled: true,
			Running: true,
			ID:      true,
			Group:   true,
		},
	}

	// pid/tid, then the group read: nr, enabled, running, and one
	// value and id per group member.
	var p payload
	p.u32(5).u32(6)
	p.u64(2)
	p.u64(2000)
	p.u64(1000)
	p.u64(500).u64(81)
	p.u64(300).u64(82)

	hdr := p.header(RecordTypeSample, 0)
	rec, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	sr, ok := rec.(*SampleGroupRecord)
	if !ok {
		t.Fatalf("got %T, want a SampleGroupRecord", rec)
	}
	gc := sr.Count
	if gc.Enabled != 2000 || gc.Running != 1000 {
		t.Errorf("got enabled=%d running=%d, want 2000 and 1000", gc.Enabled, gc.Running)
	}
	want := []GroupValue{
		{Value: 500, ID: 81},
		{Value: 300, ID: 82},
	}
	if diff := cmp.Diff(want, gc.Values); diff != "" {
		t.Fatalf("group values mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleExtra(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{IP: true},
	}

	// Payload bytes past the known fields surface as Extra instead of
	// failing the decode: samples grow at the end as kernels add fields.
	var p payload
	p.u64(0x400000)
	p.u64(0xfeed)

	sr := decodeSample(t, pc, p)
	if sr.IP != 0x400000 {
		t.Errorf("IP: got %#x, want 0x400000", sr.IP)
	}
	if len(sr.Extra) != 8 {
		t.Fatalf("Extra: got %d bytes, want 8", len(sr.Extra))
	}
}

func TestDataSourceBits(t *testing.T) {
	ds := DataSource(uint64(MemOpLoad)<<memOpShift |
		uint64(MemLevelL1|MemLevelHit)<<memLevelShift |
		uint64(MemSnoopHit)<<memSnoopShift |
		uint64(MemLockLocked)<<memLockShift |
		uint64(MemTLBL1|MemTLBHit)<<memTLBShift |
		2<<memLevelNumShift |
		1<<memRemoteShift |
		uint64(MemSnoopXForward)<<memSnoopXShift)

	if op := ds.Op(); op != MemOpLoad {
		t.Errorf("Op: got %#x, want %#x", op, MemOpLoad)
	}
	if lvl := ds.Level(); lvl != MemLevelL1|MemLevelHit {
		t.Errorf("Level: got %#x, want %#x", lvl, MemLevelL1|MemLevelHit)
	}
	if snoop := ds.Snoop(); snoop != MemSnoopHit {
		t.Errorf("Snoop: got %#x, want %#x", snoop, MemSnoopHit)
	}
	if lock := ds.Lock(); lock != MemLockLocked {
		t.Errorf("Lock: got %#x, want %#x", lock, MemLockLocked)
	}
	if tlb := ds.TLB(); tlb != MemTLBL1|MemTLBHit {
		t.Errorf("TLB: got %#x, want %#x", tlb, MemTLBL1|MemTLBHit)
	}
	if n := ds.LevelNumber(); n != 2 {
		t.Errorf("LevelNumber: got %d, want 2", n)
	}
	if !ds.Remote() {
		t.Error("Remote: got false, want true")
	}
	if sx := ds.SnoopX(); sx != MemSnoopXForward {
		t.Errorf("SnoopX: got %#x, want %#x", sx, MemSnoopXForward)
	}
}

func TestTransactionAbortCode(t *testing.T) {
	txn := TxnTransaction | TxnSync | Transaction(0xbeef)<<txnAbortShift
	if txn&TxnTransaction == 0 || txn&TxnSync == 0 {
		t.Error("transaction flag bits not preserved")
	}
	if code := txn.AbortCode(); code != 0xbeef {
		t.Errorf("AbortCode: got %#x, want 0xbeef", code)
	}
}
