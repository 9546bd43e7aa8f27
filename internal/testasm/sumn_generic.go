// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package testasm

//go:noinline
func sumN(n uint64) uint64 {
	var sum uint64
	for i := uint64(1); i <= n; i++ {
		sum += i
	}
	return sum
}
