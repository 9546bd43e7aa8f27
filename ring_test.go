// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

// testRing returns a ring over plain memory, with the kernel's side of
// the protocol driven by the test through writeRecord.
func testRing(size int) *ring {
	return &ring{
		meta: new(unix.PerfEventMmapPage),
		data: make([]byte, size),
	}
}

// writeRecord plays the kernel: it writes a complete record at the head
// of the ring, wrapping around the end of the data region if needed, then
// publishes it by advancing the head.
func (r *ring) writeRecord(rt RecordType, misc uint16, data []byte) {
	var rec payload
	rec.u32(uint32(rt)).u16(misc).u16(uint16(recordHeaderSize + len(data))).raw(data)

	head := r.meta.Data_head
	size := uint64(len(r.data))
	for i, b := range rec {
		r.data[(head+uint64(i))%size] = b
	}
	r.meta.Data_head = head + uint64(len(rec))
}

func TestRingNextRelease(t *testing.T) {
	r := testRing(256)

	var one, two payload
	one.u64(1).u64(2).u64(3)
	two.u64(4).u64(5).u64(6)
	r.writeRecord(RecordTypeThrottle, 0, one)
	r.writeRecord(RecordTypeUnthrottle, 0, two)

	hdr, view, found, err := r.next()
	if err != nil || !found {
		t.Fatalf("next: got found=%t, err=%v", found, err)
	}
	if hdr.Type != RecordTypeThrottle {
		t.Fatalf("got record type %v, want %v", hdr.Type, RecordTypeThrottle)
	}
	if got, want := view.length(), len(one); got != want {
		t.Fatalf("view holds %d bytes, want %d", got, want)
	}
	r.release(uint64(hdr.Size))

	if got, want := r.meta.Data_tail, uint64(hdr.Size); got != want {
		t.Fatalf("tail advanced to %d, want %d", got, want)
	}

	hdr, _, found, err = r.next()
	if err != nil || !found {
		t.Fatalf("next: got found=%t, err=%v", found, err)
	}
	if hdr.Type != RecordTypeUnthrottle {
		t.Fatalf("got record type %v, want %v", hdr.Type, RecordTypeUnthrottle)
	}
	r.release(uint64(hdr.Size))

	if _, _, found, err := r.next(); found || err != nil {
		t.Fatalf("drained ring: got found=%t, err=%v", found, err)
	}
}

func TestRingWraparound(t *testing.T) {
	r := testRing(64)

	// Park the cursors near the end of the data region, so the next
	// record straddles the wrap point.
	r.meta.Data_head = 52
	r.meta.Data_tail = 52

	var p payload
	p.u64(0x8070605040302010).u64(0x00F0E0D0C0B0A090).u64(0xBEEFCAFEDEADBEEF)
	r.writeRecord(RecordTypeThrottle, 0, p)

	hdr, view, found, err := r.next()
	if err != nil || !found {
		t.Fatalf("next: got found=%t, err=%v", found, err)
	}
	rec, err := decodeRecord(parseConfig{}, hdr, view)
	if err != nil {
		t.Fatal(err)
	}
	r.release(uint64(hdr.Size))

	tr, ok := rec.(*ThrottleRecord)
	if !ok {
		t.Fatalf("got %T, want a ThrottleRecord", rec)
	}
	if tr.Time != 0x8070605040302010 || tr.ID != 0x00F0E0D0C0B0A090 || tr.StreamID != 0xBEEFCAFEDEADBEEF {
		t.Fatalf("wrapped record decoded incorrectly: %+v", tr)
	}
}

func TestRingCorruptSize(t *testing.T) {
	r := testRing(256)

	var p payload
	p.u32(uint32(RecordTypeThrottle)).u16(0).u16(4) // size 4 < header size
	copy(r.data, p)
	r.meta.Data_head = 8

	_, _, _, err := r.next()
	if !errors.Is(err, ErrCorruptedRing) {
		t.Fatalf("got %v, want ErrCorruptedRing", err)
	}

	// The error sticks: the framing is gone and no further reads can
	// be trusted.
	_, _, _, err = r.next()
	if !errors.Is(err, ErrCorruptedRing) {
		t.Fatalf("second next: got %v, want ErrCorruptedRing", err)
	}
}

func TestRingCorruptCursors(t *testing.T) {
	r := testRing(256)

	// More readable bytes than the ring can hold.
	r.meta.Data_head = 1024
	r.meta.Data_tail = 0

	_, _, _, err := r.next()
	if !errors.Is(err, ErrCorruptedRing) {
		t.Fatalf("got %v, want ErrCorruptedRing", err)
	}
}

func TestRingSizeExceedsAvail(t *testing.T) {
	r := testRing(256)

	var p payload
	p.u64(1).u64(2).u64(3)
	r.writeRecord(RecordTypeThrottle, 0, p)
	// Claim a size beyond what the kernel has published.
	hostEndian.PutUint16(r.data[6:8], 128)

	_, _, _, err := r.next()
	if !errors.Is(err, ErrCorruptedRing) {
		t.Fatalf("got %v, want ErrCorruptedRing", err)
	}
}

func TestUserReadTimings(t *testing.T) {
	r := testRing(64)
	r.meta.Lock = 2 // even: no update in progress
	r.meta.Time_enabled = 3e9
	r.meta.Time_running = 1e9

	uc, err := r.userRead()
	if err != nil {
		t.Fatal(err)
	}
	if uc.ValueOK {
		t.Error("ValueOK set without rdpmc capability")
	}
	if uc.Enabled != 3e9 || uc.Running != 1e9 {
		t.Fatalf("got enabled=%v running=%v, want 3s and 1s", uc.Enabled, uc.Running)
	}
}

func TestUserReadUnstableSeqlock(t *testing.T) {
	r := testRing(64)
	r.meta.Lock = 1 // an update that never completes

	_, err := r.userRead()
	if err == nil {
		t.Fatal("userRead succeeded against a meta page locked for update")
	}
}
