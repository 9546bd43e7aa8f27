// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

// A byteBuffer is a bounded, forward-only view of bytes in the ring
// buffer. The view is a single contiguous span, or two disjoint spans when
// a record wraps around the end of the memory mapped data region. Callers
// consume bytes without seeing the seam.
//
// A byteBuffer does not own the bytes it points to: views into the ring
// are valid only until the corresponding record is released back to the
// kernel.
type byteBuffer struct {
	head []byte
	tail []byte // second span, nil unless the view straddles the wrap point
}

// makeByteBuffer builds a view over the two spans. An empty or nil second
// span produces a contiguous view.
func makeByteBuffer(head, tail []byte) byteBuffer {
	if len(tail) == 0 {
		tail = nil
	}
	return byteBuffer{head: head, tail: tail}
}

// length returns the number of unconsumed bytes.
func (b *byteBuffer) length() int {
	return len(b.head) + len(b.tail)
}

// truncate shortens the view to its first n bytes. The bound always comes
// from a validated record header, so n exceeding the current length is a
// programming error and panics.
func (b *byteBuffer) truncate(n int) {
	if n > b.length() {
		panic("perf: truncate beyond end of byteBuffer")
	}
	if n <= len(b.head) {
		b.head = b.head[:n]
		b.tail = nil
		return
	}
	b.tail = b.tail[:n-len(b.head)]
}

// skip consumes and discards the next n bytes.
func (b *byteBuffer) skip(n int) {
	if n > b.length() {
		panic("perf: skip beyond end of byteBuffer")
	}
	if n < len(b.head) {
		b.head = b.head[n:]
		return
	}
	n -= len(b.head)
	b.head = b.tail[n:]
	b.tail = nil
}

// copyTo fills dst with the next len(dst) bytes, consuming them. If fewer
// bytes remain, nothing is consumed and copyTo returns false.
func (b *byteBuffer) copyTo(dst []byte) bool {
	if b.length() < len(dst) {
		return false
	}
	n := copy(dst, b.head)
	if n == len(b.head) && b.tail != nil {
		// Consumed the first span: the rest of the view is
		// contiguous, collapse it.
		m := copy(dst[n:], b.tail)
		b.head = b.tail[m:]
		b.tail = nil
		return true
	}
	b.head = b.head[n:]
	return true
}

// appendTo appends all unconsumed bytes to dst and consumes them.
func (b *byteBuffer) appendTo(dst []byte) []byte {
	dst = append(dst, b.head...)
	dst = append(dst, b.tail...)
	b.head, b.tail = nil, nil
	return dst
}

// bytes returns the unconsumed bytes as a single slice, consuming them.
// Contiguous views are returned without copying.
func (b *byteBuffer) bytes() []byte {
	if b.tail == nil {
		s := b.head
		b.head = nil
		return s
	}
	return b.appendTo(make([]byte, 0, b.length()))
}
