// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the versioned write-once store agents share during
// a run. A State is an immutable snapshot; merging produces a new snapshot.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/errors"
)

// InitialWriter names the owner of values present before any agent ran.
const InitialWriter = "initial"

// View is the read-only access agents receive.
type View interface {
	Get(c capability.Capability) (any, bool)
	Has(c capability.Capability) bool
	Keys() capability.Set
	Version() uint64
}

// Update is a partial state produced by one agent.
type Update map[capability.Capability]any

// Keys returns the capabilities written by the update.
func (u Update) Keys() capability.Set {
	var s capability.Set
	for c := range u {
		s = s.Add(c)
	}
	return s
}

// Write pairs an update with the agent that produced it.
type Write struct {
	Agent  string
	Update Update
}

// State is an immutable snapshot of shared values.
type State struct {
	values  map[capability.Capability]any
	owners  map[capability.Capability]string
	version uint64
}

var _ View = State{}

// New returns a snapshot seeded with initial values at version 0.
func New(initial Update) State {
	s := State{
		values: make(map[capability.Capability]any, len(initial)),
		owners: make(map[capability.Capability]string, len(initial)),
	}
	for c, v := range initial {
		if !c.Valid() {
			continue
		}
		s.values[c] = v
		s.owners[c] = InitialWriter
	}
	return s
}

// Get returns the payload stored for c.
func (s State) Get(c capability.Capability) (any, bool) {
	v, ok := s.values[c]
	return v, ok
}

// Has reports whether c has been written.
func (s State) Has(c capability.Capability) bool {
	_, ok := s.values[c]
	return ok
}

// Keys returns the written capabilities.
func (s State) Keys() capability.Set {
	var out capability.Set
	for c := range s.values {
		out = out.Add(c)
	}
	return out
}

// Version counts successful merges since New.
func (s State) Version() uint64 { return s.version }

// Len returns the number of written keys.
func (s State) Len() int { return len(s.values) }

// Owner returns the agent that wrote c.
func (s State) Owner(c capability.Capability) (string, bool) {
	o, ok := s.owners[c]
	return o, ok
}

// Merge applies a single agent update.
func (s State) Merge(agent string, u Update) (State, error) {
	return s.MergeAll([]Write{{Agent: agent, Update: u}})
}

// MergeAll applies every write atomically and bumps the version once.
// A key already present, or written twice in the batch, yields a
// *errors.ConflictingWriteError and leaves s untouched.
func (s State) MergeAll(writes []Write) (State, error) {
	pending := make(map[capability.Capability]string)
	for _, w := range writes {
		for c := range w.Update {
			if !c.Valid() {
				return s, fmt.Errorf("agent %q wrote invalid capability %d", w.Agent, uint8(c))
			}
			if owner, ok := s.owners[c]; ok {
				return s, &errors.ConflictingWriteError{Capability: c.String(), Agents: []string{owner, w.Agent}}
			}
			if other, ok := pending[c]; ok {
				return s, &errors.ConflictingWriteError{Capability: c.String(), Agents: []string{other, w.Agent}}
			}
			pending[c] = w.Agent
		}
	}

	next := State{
		values:  make(map[capability.Capability]any, len(s.values)+len(pending)),
		owners:  make(map[capability.Capability]string, len(s.owners)+len(pending)),
		version: s.version + 1,
	}
	for c, v := range s.values {
		next.values[c] = v
		next.owners[c] = s.owners[c]
	}
	for _, w := range writes {
		for c, v := range w.Update {
			next.values[c] = v
			next.owners[c] = w.Agent
		}
	}
	return next, nil
}

// Snapshot returns a copy of the values keyed by wire name.
func (s State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for c, v := range s.values {
		out[c.String()] = v
	}
	return out
}

// MarshalJSON encodes the values keyed by wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Version uint64         `json:"version"`
		Values  map[string]any `json:"values"`
	}{Version: s.version, Values: s.Snapshot()})
}

// Value fetches c from v and asserts its type.
func Value[T any](v View, c capability.Capability) (T, error) {
	var zero T
	raw, ok := v.Get(c)
	if !ok {
		return zero, fmt.Errorf("state has no %s", c)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("state %s holds %T, want %T", c, raw, zero)
	}
	return typed, nil
}
