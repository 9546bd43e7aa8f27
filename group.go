// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"fmt"
)

// Group configures a group of events.
type Group struct {
	// CountFormat configures the format of counts read from the event
	// leader. The Group option is set automatically.
	CountFormat CountFormat

	// Options configures options for all events in the group.
	Options Options

	err   error // sticky configuration error
	attrs []*Attr
}

// Add adds events to the group, as configured by cfgs.
//
// For each Configurator, a new *Attr is created, the group-specific
// settings are applied, then Configure is called on the *Attr to produce
// the final event attributes. An error from any Configurator is sticky
// and is reported by Open.
func (g *Group) Add(cfgs ...Configurator) {
	for _, cfg := range cfgs {
		g.add(cfg)
	}
}

func (g *Group) add(cfg Configurator) {
	if g.err != nil {
		return
	}
	attr := new(Attr)
	attr.Options = g.Options
	if err := cfg.Configure(attr); err != nil {
		g.err = err
		return
	}
	g.attrs = append(g.attrs, attr)
}

// Open opens all the events in the group, and returns their leader.
// Closing the leader closes the entire group.
func (g *Group) Open(pid int, cpu int) (*Event, error) {
	if g.err != nil {
		return nil, fmt.Errorf("perf: group configuration error: %w", g.err)
	}
	if len(g.attrs) == 0 {
		return nil, errors.New("perf: empty event group")
	}
	leaderattr := g.attrs[0]
	leaderattr.CountFormat = g.CountFormat
	leaderattr.CountFormat.Group = true
	leader, err := Open(leaderattr, pid, cpu, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("perf: failed to open event leader: %w", err)
	}
	for idx, attr := range g.attrs[1:] {
		if _, err := Open(attr, pid, cpu, leader, 0); err != nil {
			leader.Close()
			return nil, fmt.Errorf("perf: failed to open group event #%d (%q): %w", idx+1, attr.Label, err)
		}
	}
	return leader, nil
}
