// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"math/bits"
	"time"
)

// parseConfig is the subset of an event's configuration that determines
// the wire layout of records. It is captured when the ring is mapped, so
// decoding does not depend on the live Attr.
type parseConfig struct {
	sampleFormat  SampleFormat
	countFormat   CountFormat
	sampleIDAll   bool
	userRegsMask  uint64
	intrRegsMask  uint64
	branchHWIndex bool
}

func (a *Attr) parseConfig() parseConfig {
	return parseConfig{
		sampleFormat:  a.SampleFormat,
		countFormat:   a.CountFormat,
		sampleIDAll:   a.Options.SampleIDAll,
		userRegsMask:  a.SampleRegsUser,
		intrRegsMask:  a.SampleRegsIntr,
		branchHWIndex: a.BranchSampleFormat.HardwareIndex,
	}
}

// recordIDSize returns the size of the RecordID trailer carried by
// non-sample records, per the configured SampleFormat.
func (pc parseConfig) recordIDSize() int {
	size := 0
	f := pc.sampleFormat
	for _, set := range []bool{f.Tid, f.Time, f.ID, f.StreamID, f.CPU, f.Identifier} {
		if set {
			size += 8
		}
	}
	return size
}

// fields decodes the fields of a record from a byteBuffer. The decoder is
// sticky: after the first failure all subsequent operations are no-ops, so
// call sites read linearly and check the error once.
//
// Integers are decoded in the host's native byte order, since records are
// produced by the local kernel.
type fields struct {
	buf *byteBuffer
	cfg parseConfig
	err error
}

// take consumes len(dst) bytes into dst. It reports whether the caller
// should proceed to use dst.
func (f *fields) take(dst []byte) bool {
	if f.err != nil {
		return false
	}
	if !f.buf.copyTo(dst) {
		f.err = ErrTruncatedRecord
		return false
	}
	return true
}

func (f *fields) uint64(v *uint64) {
	var buf [8]byte
	if f.take(buf[:]) {
		*v = hostEndian.Uint64(buf[:])
	}
}

// uint64Cond decodes a uint64 field present only when cond is set.
func (f *fields) uint64Cond(cond bool, v *uint64) {
	if cond {
		f.uint64(v)
	}
}

func (f *fields) uint32(v *uint32) {
	var buf [4]byte
	if f.take(buf[:]) {
		*v = hostEndian.Uint32(buf[:])
	}
}

func (f *fields) uint16(v *uint16) {
	var buf [2]byte
	if f.take(buf[:]) {
		*v = hostEndian.Uint16(buf[:])
	}
}

func (f *fields) duration(d *time.Duration) {
	var v uint64
	f.uint64(&v)
	if f.err == nil {
		*d = time.Duration(v)
	}
}

// bytesOf consumes exactly n bytes.
func (f *fields) bytesOf(n int, b *[]byte) {
	if f.err != nil {
		return
	}
	if n > f.buf.length() {
		f.err = ErrTruncatedRecord
		return
	}
	buf := make([]byte, n)
	f.buf.copyTo(buf)
	*b = buf
}

// uint64sizeBytes decodes a byte blob with a uint64 length prefix.
func (f *fields) uint64sizeBytes(b *[]byte) {
	var size uint64
	f.uint64(&size)
	if f.err != nil {
		return
	}
	if size > uint64(f.buf.length()) {
		f.err = ErrTruncatedRecord
		return
	}
	f.bytesOf(int(size), b)
}

// uint64Array decodes an array of uint64 with a uint64 length prefix.
func (f *fields) uint64Array(vs *[]uint64) {
	var nr uint64
	f.uint64(&nr)
	if f.err != nil {
		return
	}
	if nr > uint64(f.buf.length())/8 {
		f.err = ErrTruncatedRecord
		return
	}
	arr := make([]uint64, nr)
	for i := range arr {
		f.uint64(&arr[i])
	}
	if f.err == nil {
		*vs = arr
	}
}

// string decodes the rest of the record as a NUL-padded string.
func (f *fields) string(s *string) {
	if f.err != nil {
		return
	}
	var b []byte
	f.bytesOf(f.buf.length(), &b)
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	*s = string(b)
}

// remainder consumes the rest of the record verbatim.
func (f *fields) remainder(b *[]byte) {
	if f.err != nil {
		return
	}
	f.bytesOf(f.buf.length(), b)
}

// count decodes a counter value per the configured CountFormat.
func (f *fields) count(c *Count) {
	cf := f.cfg.countFormat
	f.uint64(&c.Value)
	if cf.Enabled {
		f.duration(&c.Enabled)
	}
	if cf.Running {
		f.duration(&c.Running)
	}
	if cf.ID {
		f.uint64(&c.ID)
	}
	if cf.Lost {
		f.uint64(&c.Lost)
	}
}

// groupCount decodes a group counter value per the configured CountFormat.
func (f *fields) groupCount(gc *GroupCount) {
	cf := f.cfg.countFormat
	var nr uint64
	f.uint64(&nr)
	if f.err != nil {
		return
	}
	if cf.Enabled {
		f.duration(&gc.Enabled)
	}
	if cf.Running {
		f.duration(&gc.Running)
	}
	if nr > uint64(f.buf.length())/8 {
		f.err = ErrTruncatedRecord
		return
	}
	gc.Values = make([]GroupValue, nr)
	for i := range gc.Values {
		f.uint64(&gc.Values[i].Value)
		if cf.ID {
			f.uint64(&gc.Values[i].ID)
		}
		if cf.Lost {
			f.uint64(&gc.Values[i].Lost)
		}
	}
}

// registers decodes a register snapshot recorded under mask. The kernel
// writes an ABI tag, then one value per set bit in mask, in ascending bit
// order. If the tag says no registers were captured, the mask does not
// apply and no values follow.
func (f *fields) registers(mask uint64, regs *Registers) {
	var abi uint64
	f.uint64(&abi)
	if f.err != nil {
		return
	}
	if abi == uint64(RegistersABINone) {
		mask = 0
	}
	n := bits.OnesCount64(mask)
	if n > f.buf.length()/8 {
		f.err = ErrTruncatedRecord
		return
	}
	vals := make([]uint64, n)
	for i := range vals {
		f.uint64(&vals[i])
	}
	if f.err == nil {
		*regs = Registers{ABI: RegistersABI(abi), Mask: mask, Values: vals}
	}
}

// userStack decodes a user stack snapshot: a uint64 length prefix, the
// stack bytes, then, for non-empty snapshots, a trailing uint64 holding
// the dynamic size actually captured, which truncates the snapshot.
func (f *fields) userStack(stack *[]byte) {
	var size uint64
	f.uint64(&size)
	if f.err != nil {
		return
	}
	if size > uint64(f.buf.length()) {
		f.err = ErrTruncatedRecord
		return
	}
	var b []byte
	f.bytesOf(int(size), &b)
	if size > 0 {
		var dyn uint64
		f.uint64(&dyn)
		if f.err != nil {
			return
		}
		if dyn < uint64(len(b)) {
			b = b[:dyn]
		}
	}
	*stack = b
}

// recordID decodes the RecordID trailer from a cursor positioned at
// the end of the record. Only the fields selected by the SampleFormat are
// present.
func (f *fields) recordID(id *RecordID) {
	sf := f.cfg.sampleFormat
	if sf.Tid {
		f.uint32(&id.Pid)
		f.uint32(&id.Tid)
	}
	f.uint64Cond(sf.Time, &id.Time)
	f.uint64Cond(sf.ID, &id.ID)
	f.uint64Cond(sf.StreamID, &id.StreamID)
	if sf.CPU {
		f.uint32(&id.CPU)
		f.uint32(&id.Res)
	}
	f.uint64Cond(sf.Identifier, &id.Identifier)
}

// done finishes the decode. A record that did not account for every byte
// inside its header-delimited window was written under a layout this
// package does not understand, and is reported as malformed.
func (f *fields) done() error {
	if f.err != nil {
		return f.err
	}
	if f.buf.length() != 0 {
		return ErrMalformedRecord
	}
	return nil
}
