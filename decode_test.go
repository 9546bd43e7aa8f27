// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// payload builds record payloads in the byte order the kernel would have
// used on this machine.
type payload []byte

func (p *payload) u64(v uint64) *payload {
	var b [8]byte
	hostEndian.PutUint64(b[:], v)
	*p = append(*p, b[:]...)
	return p
}

func (p *payload) u32(v uint32) *payload {
	var b [4]byte
	hostEndian.PutUint32(b[:], v)
	*p = append(*p, b[:]...)
	return p
}

func (p *payload) u16(v uint16) *payload {
	var b [2]byte
	hostEndian.PutUint16(b[:], v)
	*p = append(*p, b[:]...)
	return p
}

func (p *payload) raw(b []byte) *payload {
	*p = append(*p, b...)
	return p
}

func (p *payload) header(rt RecordType, misc uint16) RecordHeader {
	return RecordHeader{
		Type: rt,
		Misc: misc,
		Size: uint16(recordHeaderSize + len(*p)),
	}
}

func TestDecodeCommRecord(t *testing.T) {
	var p payload
	p.u32(0x1010).u32(0x0500).raw([]byte("test\x00\x00\x00\x00"))
	hdr := p.header(RecordTypeComm, 0)

	rec, err := decodeRecord(parseConfig{}, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	cr, ok := rec.(*CommRecord)
	if !ok {
		t.Fatalf("got %T, want a CommRecord", rec)
	}
	want := &CommRecord{
		RecordHeader: hdr,
		Pid:          0x1010,
		Tid:          0x0500,
		NewName:      "test",
	}
	if diff := cmp.Diff(want, cr); diff != "" {
		t.Fatalf("comm record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeThrottleRecord(t *testing.T) {
	var p payload
	p.u64(0x8070605040302010).u64(0x00F0E0D0C0B0A090).u64(0xBEEFCAFEDEADBEEF)
	hdr := p.header(RecordTypeThrottle, 0)

	rec, err := decodeRecord(parseConfig{}, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	tr, ok := rec.(*ThrottleRecord)
	if !ok {
		t.Fatalf("got %T, want a ThrottleRecord", rec)
	}
	want := &ThrottleRecord{
		RecordHeader: hdr,
		Time:         0x8070605040302010,
		ID:           0x00F0E0D0C0B0A090,
		StreamID:     0xBEEFCAFEDEADBEEF,
	}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Fatalf("throttle record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecordIDTrailer(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{
			Tid:      true,
			Time:     true,
			StreamID: true,
			CPU:      true,
		},
		sampleIDAll: true,
	}

	// A comm payload, then the trailer: pid/tid, time, stream id, cpu/res.
	var p payload
	p.u32(7).u32(9).raw([]byte("comm\x00\x00\x00\x00"))
	p.u32(7).u32(9)
	p.u64(12345)
	p.u64(42)
	p.u32(3).u32(0)
	hdr := p.header(RecordTypeComm, 0)

	rec, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	cr, ok := rec.(*CommRecord)
	if !ok {
		t.Fatalf("got %T, want a CommRecord", rec)
	}
	if cr.NewName != "comm" {
		t.Errorf("NewName: got %q, want %q", cr.NewName, "comm")
	}
	wantID := RecordID{Pid: 7, Tid: 9, Time: 12345, StreamID: 42, CPU: 3}
	if diff := cmp.Diff(wantID, cr.RecordID); diff != "" {
		t.Fatalf("trailer mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMmapHasNoTrailer(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Tid: true, Time: true},
		sampleIDAll:  true,
	}

	// pid/tid, addr, len, pgoff, then the filename.
	var p payload
	p.u32(100).u32(200)
	p.u64(0x7f0000000000)
	p.u64(0x1000)
	p.u64(0)
	p.raw([]byte("/bin/true\x00\x00\x00\x00\x00\x00\x00"))
	hdr := p.header(RecordTypeMmap, 0)

	rec, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	mr, ok := rec.(*MmapRecord)
	if !ok {
		t.Fatalf("got %T, want an MmapRecord", rec)
	}
	if mr.Filename != "/bin/true" {
		t.Errorf("Filename: got %q, want %q", mr.Filename, "/bin/true")
	}
	if mr.Addr != 0x7f0000000000 || mr.Len != 0x1000 {
		t.Errorf("got addr=%#x len=%#x, want addr=0x7f0000000000 len=0x1000", mr.Addr, mr.Len)
	}
}

func TestDecodeSplitViewEquivalence(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Tid: true, Time: true, ID: true},
		sampleIDAll:  true,
	}

	var p payload
	p.u32(17).u32(23).raw([]byte("worker\x00\x00"))
	p.u32(17).u32(23).u64(99999).u64(7)
	hdr := p.header(RecordTypeComm, 0)

	want, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}

	// A record that straddles the end of the ring is presented as two
	// spans. The seam must not be observable, wherever it falls.
	for i := 0; i <= len(p); i++ {
		got, err := decodeRecord(pc, hdr, makeByteBuffer(p[:i], p[i:]))
		if err != nil {
			t.Fatalf("split at %d: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d: mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestDecodeUnknownRecordType(t *testing.T) {
	var p payload
	p.u64(1).u64(2).u64(3)
	hdr := p.header(RecordType(200), 0)

	rec, err := decodeRecord(parseConfig{}, hdr, makeByteBuffer(p, nil))
	if err != nil {
		t.Fatal(err)
	}
	ur, ok := rec.(*UnknownRecord)
	if !ok {
		t.Fatalf("got %T, want an UnknownRecord", rec)
	}
	if len(ur.Data) != 24 {
		t.Fatalf("got %d payload bytes, want 24", len(ur.Data))
	}
}

func TestDecodeLeftoverBytes(t *testing.T) {
	var p payload
	p.u64(1).u64(2).u64(3)
	p.u64(0xdead) // bytes this package cannot account for
	hdr := p.header(RecordTypeThrottle, 0)

	_, err := decodeRecord(parseConfig{}, hdr, makeByteBuffer(p, nil))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("got %v, want ErrMalformedRecord", err)
	}
}

func TestDecodeTruncatedRecord(t *testing.T) {
	var p payload
	p.u64(1).u64(2) // a throttle record needs three fields
	hdr := p.header(RecordTypeThrottle, 0)

	_, err := decodeRecord(parseConfig{}, hdr, makeByteBuffer(p, nil))
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("got %v, want ErrTruncatedRecord", err)
	}
}

func TestDecodeTruncatedTrailer(t *testing.T) {
	pc := parseConfig{
		sampleFormat: SampleFormat{Tid: true, Time: true},
		sampleIDAll:  true,
	}

	// Too short to hold even the trailer.
	var p payload
	p.u64(1)
	hdr := p.header(RecordTypeThrottle, 0)

	_, err := decodeRecord(pc, hdr, makeByteBuffer(p, nil))
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("got %v, want ErrTruncatedRecord", err)
	}
}
