// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testasm provides functions with known instruction counts, for
// testing hardware counters.
package testasm

// SumN computes the sum of integers from 1 to n.
//
// On amd64, it executes roughly 4*n + 5 instructions.
func SumN(n uint64) uint64 {
	return sumN(n)
}
