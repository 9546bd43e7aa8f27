// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"runtime"
	"testing"
)

// Stopper implements the Stop method.
type Stopper func()

// Stop calls the given stopper.
func (s Stopper) Stop() { s() }

// Benchmark measures the code of a Go benchmark with a group of hardware
// counters, and reports instructions per cycle, instructions per
// operation and cycles per operation as benchmark metrics:
//
//	func BenchmarkThing(b *testing.B) {
//		defer perf.Benchmark(b).Stop()
//
//		for i := 0; i < b.N; i++ {
//			thing()
//		}
//	}
func Benchmark(b *testing.B) Stopper {
	var g Group
	g.Options.ExcludeKernel = true
	g.Options.ExcludeHypervisor = true
	g.Add(Instructions, CPUCycles)

	ev, err := g.Open(CallingThread, AnyCPU)
	if err != nil {
		b.Fatal(err)
	}

	if err := ev.Disable(); err != nil {
		b.Fatal(err)
	}
	if err := ev.Reset(); err != nil {
		b.Fatal(err)
	}
	runtime.LockOSThread()

	if err := ev.Enable(); err != nil {
		runtime.UnlockOSThread()
		b.Fatal(err)
	}

	return Stopper(func() {
		err := ev.Disable()
		runtime.UnlockOSThread()
		if err != nil {
			b.Fatal(err)
		}

		gc, err := ev.ReadGroupCount()
		if err != nil {
			b.Fatal(err)
		}

		instrs := float64(gc.Values[0].Value)
		cycles := float64(gc.Values[1].Value)
		b.ReportMetric(instrs/cycles, "instrs/cycle")
		b.ReportMetric(instrs/float64(b.N), "instrs/op")
		b.ReportMetric(cycles/float64(b.N), "cycles/op")
	})
}
