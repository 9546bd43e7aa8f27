// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64

package perf

const (
	hasRdpmc = true
	hasRdtsc = true
)

// rdpmc reads performance monitoring counter number counter.
func rdpmc(counter uint32) uint64

// rdtsc reads the timestamp counter.
func rdtsc() uint64
