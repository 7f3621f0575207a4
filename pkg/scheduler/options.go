// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/capflow/pkg/bus"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/telemetry"
)

// DefaultMaxRounds bounds the number of scheduling rounds.
const DefaultMaxRounds = 20

// FailurePolicy decides what an agent failure does to the run.
type FailurePolicy string

const (
	// PolicyFatal aborts the run on the first agent failure.
	PolicyFatal FailurePolicy = "fatal"
	// PolicyPartial records the failure and keeps running agents that do
	// not depend on it.
	PolicyPartial FailurePolicy = "partial"
)

// ParseFailurePolicy resolves a config value.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFatal:
		return PolicyFatal, nil
	case PolicyPartial:
		return PolicyPartial, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// Options configures a Scheduler.
type Options struct {
	MaxRounds      int
	Concurrency    int
	FailurePolicy  FailurePolicy
	AgentTimeout   time.Duration
	GracePeriod    time.Duration
	SkipValidation bool

	Bus     *bus.Bus
	Store   record.Store
	Logger  *slog.Logger
	Metrics *telemetry.SchedulerMetrics
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxRounds:     DefaultMaxRounds,
		Concurrency:   4,
		FailurePolicy: PolicyFatal,
		GracePeriod:   2 * time.Second,
	}
}

// WithMaxRounds caps the number of rounds.
func WithMaxRounds(n int) Option {
	return func(o *Options) { o.MaxRounds = n }
}

// WithConcurrency bounds how many agents of a round run at once. 1 is sequential.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithFailurePolicy sets the failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Options) { o.FailurePolicy = p }
}

// WithAgentTimeout bounds each agent execution. Zero disables the bound.
func WithAgentTimeout(d time.Duration) Option {
	return func(o *Options) { o.AgentTimeout = d }
}

// WithGracePeriod sets how long in-flight agents may take to return after
// cancellation.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) { o.GracePeriod = d }
}

// WithoutValidation skips the registration-time dependency check. Missing
// providers then surface as a Deadlocked run.
func WithoutValidation() Option {
	return func(o *Options) { o.SkipValidation = true }
}

// WithBus publishes run messages to b instead of a per-run bus.
func WithBus(b *bus.Bus) Option {
	return func(o *Options) { o.Bus = b }
}

// WithStore saves every finished record to s.
func WithStore(s record.Store) Option {
	return func(o *Options) { o.Store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics records OTel metrics through m.
func WithMetrics(m *telemetry.SchedulerMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func (o *Options) normalize() {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = PolicyFatal
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}
