// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf_test

import (
	"runtime"
	"testing"

	perf "github.com/perfevent/perfevent"
)

func TestGroup(t *testing.T) {
	requires(t, paranoid(1), hardwarePMU)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	g := perf.Group{
		CountFormat: perf.CountFormat{
			Enabled: true,
			Running: true,
		},
	}
	g.Add(perf.CPUCycles, perf.Instructions)

	ev, err := g.Open(perf.CallingThread, perf.AnyCPU)
	if err != nil {
		t.Fatal(err)
	}
	defer ev.Close()

	sum := int64(0)
	gc, err := ev.MeasureGroup(func() {
		for i := int64(0); i < 50000; i++ {
			sum += i
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = sum
	if len(gc.Values) != 2 {
		t.Fatalf("got %d values, want 2", len(gc.Values))
	}
	for _, c := range gc.Values {
		if c.Value == 0 {
			t.Errorf("didn't count %q", c.Label)
		}
	}
	if gc.Enabled == 0 || gc.Running == 0 {
		t.Errorf("got enabled=%v running=%v, want both nonzero", gc.Enabled, gc.Running)
	}
}

func TestGroupConfigurationError(t *testing.T) {
	g := perf.Group{}
	g.Add(perf.Tracepoint("nosuchcategory", "nosuchevent"))
	g.Add(perf.Instructions)

	if _, err := g.Open(perf.CallingThread, perf.AnyCPU); err == nil {
		t.Fatal("Open succeeded on a misconfigured group")
	}
}

func TestGroupEmpty(t *testing.T) {
	var g perf.Group
	if _, err := g.Open(perf.CallingThread, perf.AnyCPU); err == nil {
		t.Fatal("Open succeeded on an empty group")
	}
}
