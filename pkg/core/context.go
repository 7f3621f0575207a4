// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core carries run-scoped identifiers through context.Context.
package core

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}
type agentIDKey struct{}
type roundKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := NewRunID()
	return WithRunID(ctx, id), id
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run-" + uuid.NewString()
}

// WithAgent marks the context with the agent currently executing and its round.
func WithAgent(ctx context.Context, agentID string, round int) context.Context {
	ctx = context.WithValue(ctx, agentIDKey{}, agentID)
	return context.WithValue(ctx, roundKey{}, round)
}

// AgentID returns the executing agent id if present.
func AgentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(agentIDKey{}).(string)
	return id, ok
}

// Round returns the scheduling round if present.
func Round(ctx context.Context) (int, bool) {
	r, ok := ctx.Value(roundKey{}).(int)
	return r, ok
}
