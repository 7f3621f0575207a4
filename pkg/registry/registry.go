// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry records which agent provides each capability and checks
// that a set of agents can be scheduled before any of them runs.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/errors"
)

// Descriptor declares what an agent produces and consumes.
type Descriptor struct {
	ID       string         `json:"id" yaml:"id"`
	Provides capability.Set `json:"provides" yaml:"provides"`
	Requires capability.Set `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Unclaimed is a required capability that no registered agent provides.
type Unclaimed struct {
	Capability capability.Capability
	Agents     []string
}

// Registry maps capabilities to their single provider.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	byID      map[string]Descriptor
	providers map[capability.Capability]string
	rejected  []error
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:      make(map[string]Descriptor),
		providers: make(map[capability.Capability]string),
	}
}

// Register adds d. A capability already claimed by another agent yields a
// *errors.DuplicateCapabilityError and the registry is left unchanged.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.TrimSpace(d.ID)
	if id == "" {
		return fmt.Errorf("agent id is required")
	}
	d.ID = id
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("agent %q already registered", id)
	}
	if d.Provides.Empty() {
		return fmt.Errorf("agent %q provides no capability", id)
	}
	for _, c := range d.Provides.Slice() {
		if owner, ok := r.providers[c]; ok {
			return &errors.DuplicateCapabilityError{
				Capability: c.String(),
				Existing:   owner,
				Claimant:   id,
			}
		}
	}

	r.byID[id] = d
	r.order = append(r.order, id)
	for _, c := range d.Provides.Slice() {
		r.providers[c] = id
	}
	return nil
}

// RegisterAll registers every descriptor in order and returns the failures.
// Failures are also kept for Problems.
func (r *Registry) RegisterAll(ds ...Descriptor) []error {
	var errs []error
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.mu.Lock()
		r.rejected = append(r.rejected, errs...)
		r.mu.Unlock()
	}
	return errs
}

// AllProviders returns a copy of the capability to agent mapping.
func (r *Registry) AllProviders() map[capability.Capability]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[capability.Capability]string, len(r.providers))
	for c, id := range r.providers {
		out[c] = id
	}
	return out
}

// Provider returns the agent that provides c.
func (r *Registry) Provider(c capability.Capability) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.providers[c]
	return id, ok
}

// Descriptor returns the registered descriptor for id.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// UnclaimedRequirements lists required capabilities with no provider, in
// capability order, each with the requiring agents in registration order.
func (r *Registry) UnclaimedRequirements() []Unclaimed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return unclaimed(r.order, r.byID, r.providers)
}

// DetectCycle returns an agent path closing a dependency cycle, or nil.
func (r *Registry) DetectCycle() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return detectCycle(r.order, r.byID, r.providers)
}

// Validate checks that every requirement has a provider and that the
// provider graph is acyclic. It returns *errors.UnsatisfiableDependencyError.
func (r *Registry) Validate() error {
	missing := r.UnclaimedRequirements()
	cycle := r.DetectCycle()
	if len(missing) == 0 && len(cycle) == 0 {
		return nil
	}
	err := &errors.UnsatisfiableDependencyError{Cycle: cycle}
	if len(missing) > 0 {
		err.Missing = make(map[string][]string, len(missing))
		for _, u := range missing {
			err.Missing[u.Capability.String()] = u.Agents
		}
	}
	return err
}

// Problems returns every registration and validation problem.
func (r *Registry) Problems() []error {
	r.mu.RLock()
	out := append([]error(nil), r.rejected...)
	r.mu.RUnlock()
	if err := r.Validate(); err != nil {
		out = append(out, err)
	}
	return out
}

func unclaimed(order []string, byID map[string]Descriptor, providers map[capability.Capability]string) []Unclaimed {
	agents := make(map[capability.Capability][]string)
	var need capability.Set
	for _, id := range order {
		for _, c := range byID[id].Requires.Slice() {
			if _, ok := providers[c]; ok {
				continue
			}
			need = need.Add(c)
			agents[c] = append(agents[c], id)
		}
	}
	out := make([]Unclaimed, 0, need.Len())
	for _, c := range need.Slice() {
		out = append(out, Unclaimed{Capability: c, Agents: agents[c]})
	}
	return out
}

// detectCycle walks provider -> consumer edges depth first in registration
// order so the reported path is deterministic.
func detectCycle(order []string, byID map[string]Descriptor, providers map[capability.Capability]string) []string {
	consumers := make(map[string][]string, len(order))
	for _, id := range order {
		for _, c := range byID[id].Requires.Slice() {
			if p, ok := providers[c]; ok {
				consumers[p] = appendUnique(consumers[p], id)
			}
		}
	}

	const (
		unvisited = iota
		active
		done
	)
	mark := make(map[string]int, len(order))
	var stack []string
	var found []string

	var visit func(id string) bool
	visit = func(id string) bool {
		mark[id] = active
		stack = append(stack, id)
		for _, next := range consumers[id] {
			switch mark[next] {
			case active:
				for i, s := range stack {
					if s == next {
						found = append(append([]string(nil), stack[i:]...), next)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[id] = done
		return false
	}

	for _, id := range order {
		if mark[id] == unvisited && visit(id) {
			return found
		}
	}
	return nil
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}
