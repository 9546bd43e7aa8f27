// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"os/exec"
	"syscall"
)

// command starts cmd stopped under ptrace, calls setupCounters while the
// child is stopped at its first trap, then detaches and waits for the
// child to run to completion. This way the counters observe the command
// from its very first instruction.
func command(cmd *exec.Cmd, setupCounters func(pid int) error) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Ptrace = true

	if err := cmd.Start(); err != nil {
		return err
	}

	state, err := cmd.Process.Wait()
	if err != nil {
		// For good measure, to avoid leaking the process.
		_ = cmd.Process.Kill()
		return err
	}
	if state.Sys().(syscall.WaitStatus).TrapCause() == -1 {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return errors.New("perf: tracee did not trap as expected")
	}

	// If setting up the counters fails, we still need to detach from
	// the process and wait on it.
	errCounters := setupCounters(cmd.Process.Pid)

	if err := syscall.PtraceDetach(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}

	err = cmd.Wait()
	if errCounters != nil {
		return errCounters
	}
	if err != nil {
		// The command ran and was measured. An unsuccessful exit is
		// not a measurement failure.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
	}
	return err
}

// Command runs cmd and measures it with the event configured by attr,
// analogously to Measure. The event measures cmd on the specified CPU,
// or on any CPU if cpu is AnyCPU.
func Command(attr *Attr, cmd *exec.Cmd, cpu int) (Count, error) {
	var ev *Event
	err := command(cmd, func(pid int) error {
		var err error
		ev, err = Open(attr, pid, cpu, nil, 0)
		if err != nil {
			return err
		}
		return ev.Enable()
	})
	if err != nil {
		if ev != nil {
			ev.Close()
		}
		return Count{}, err
	}
	defer ev.Close()

	return ev.ReadCount()
}

// Command runs cmd and measures it with the event group g, analogously
// to MeasureGroup.
func (g *Group) Command(cmd *exec.Cmd, cpu int) (GroupCount, error) {
	var leader *Event
	err := command(cmd, func(pid int) error {
		var err error
		leader, err = g.Open(pid, cpu)
		if err != nil {
			return err
		}
		return leader.Enable()
	})
	if err != nil {
		if leader != nil {
			leader.Close()
		}
		return GroupCount{}, err
	}
	defer leader.Close()

	return leader.ReadGroupCount()
}
