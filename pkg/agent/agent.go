// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent defines the contract scheduled units implement and a
// function-backed implementation configured with options.
package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/registry"
	"github.com/jllopis/capflow/pkg/state"
)

// Agent is a unit of work with declared inputs and outputs. Run receives a
// frozen snapshot and returns an update whose keys must equal Provides.
type Agent interface {
	ID() string
	Provides() capability.Set
	Requires() capability.Set
	Run(ctx context.Context, view state.View) (state.Update, error)
}

// Handler executes the agent's core behavior.
type Handler func(ctx context.Context, view state.View) (state.Update, error)

// Basic is a function-backed Agent.
type Basic struct {
	id          string
	role        string
	description string
	provides    capability.Set
	requires    capability.Set
	handler     Handler
}

var (
	ErrMissingHandler  = errors.New("agent handler is required")
	ErrMissingProvides = errors.New("agent must provide at least one capability")
)

// Option configures a Basic agent.
type Option func(*Basic) error

// New creates a function-backed agent with a required id and options.
func New(id string, opts ...Option) (*Basic, error) {
	a := &Basic{id: strings.TrimSpace(id)}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.id == "" {
		return nil, errors.New("agent id is required")
	}
	if a.provides.Empty() {
		return nil, ErrMissingProvides
	}
	if a.handler == nil {
		return nil, ErrMissingHandler
	}
	return a, nil
}

// MustNew is New for statically known agents; it panics on error.
func MustNew(id string, opts ...Option) *Basic {
	a, err := New(id, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// WithProvides adds capabilities the agent writes.
func WithProvides(caps ...capability.Capability) Option {
	return func(a *Basic) error {
		for _, c := range caps {
			if !c.Valid() {
				return errors.New("invalid provided capability")
			}
			a.provides = a.provides.Add(c)
		}
		return nil
	}
}

// WithRequires adds capabilities the agent reads.
func WithRequires(caps ...capability.Capability) Option {
	return func(a *Basic) error {
		for _, c := range caps {
			if !c.Valid() {
				return errors.New("invalid required capability")
			}
			a.requires = a.requires.Add(c)
		}
		return nil
	}
}

// WithHandler sets the agent handler.
func WithHandler(handler Handler) Option {
	return func(a *Basic) error {
		a.handler = handler
		return nil
	}
}

// WithRole sets the agent role.
func WithRole(role string) Option {
	return func(a *Basic) error {
		a.role = role
		return nil
	}
}

// WithDescription sets a human readable description.
func WithDescription(desc string) Option {
	return func(a *Basic) error {
		a.description = desc
		return nil
	}
}

// ID returns the agent identifier.
func (a *Basic) ID() string { return a.id }

// Role returns the agent role.
func (a *Basic) Role() string { return a.role }

// Description returns the agent description.
func (a *Basic) Description() string { return a.description }

// Provides returns the capabilities the agent writes.
func (a *Basic) Provides() capability.Set { return a.provides }

// Requires returns the capabilities the agent reads.
func (a *Basic) Requires() capability.Set { return a.requires }

// Run executes the agent handler.
func (a *Basic) Run(ctx context.Context, view state.View) (state.Update, error) {
	if a.handler == nil {
		return nil, ErrMissingHandler
	}
	return a.handler(ctx, view)
}

// Describe returns the registry descriptor for a.
func Describe(a Agent) registry.Descriptor {
	return registry.Descriptor{ID: a.ID(), Provides: a.Provides(), Requires: a.Requires()}
}

// DescribeAll returns descriptors for agents in order.
func DescribeAll(agents []Agent) []registry.Descriptor {
	out := make([]registry.Descriptor, len(agents))
	for i, a := range agents {
		out[i] = Describe(a)
	}
	return out
}
