// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs agents in rounds, dispatching every agent whose
// required capabilities are present in the shared state.
package scheduler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/bus"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/core"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/registry"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/state"
	"github.com/jllopis/capflow/pkg/telemetry"
)

// ModeDynamic names runs driven by this package in records and telemetry.
const ModeDynamic = "dynamic"

// Scheduler runs a fixed set of agents. It is safe to call Run concurrently;
// each run gets its own state, record and bus.
type Scheduler struct {
	agents   []agent.Agent
	registry *registry.Registry
	opts     Options
	tracer   trace.Tracer
}

// New registers agents in order and validates their dependencies.
// Registration problems return *errors.DuplicateCapabilityError, validation
// problems *errors.UnsatisfiableDependencyError.
func New(agents []agent.Agent, opts ...Option) (*Scheduler, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.normalize()

	reg := registry.New()
	for _, a := range agents {
		if a == nil {
			return nil, errors.New(errors.CodeInvalidInput, "nil agent", nil)
		}
		if err := reg.Register(agent.Describe(a)); err != nil {
			return nil, err
		}
	}
	if !o.SkipValidation {
		if err := reg.Validate(); err != nil {
			return nil, err
		}
	}

	return &Scheduler{
		agents:   append([]agent.Agent(nil), agents...),
		registry: reg,
		opts:     o,
		tracer:   otel.Tracer("capflow/scheduler"),
	}, nil
}

// Registry exposes the registration view of the scheduler's agents.
func (s *Scheduler) Registry() *registry.Registry { return s.registry }

// Agents returns the agents in registration order.
func (s *Scheduler) Agents() []agent.Agent { return append([]agent.Agent(nil), s.agents...) }

// run carries the mutable bookkeeping of one Run call.
type run struct {
	id      string
	log     *slog.Logger
	bus     *bus.Bus
	rec     *record.Record
	current state.State
	pending []agent.Agent
	failed  []string
	rounds  [][]string
}

// Run executes agents until every agent ran (under the partial policy
// some may have failed, see Result.Failed), no agent can become
// ready, the round limit is reached, or ctx is cancelled. Terminal statuses
// are reported in Result.Status; the error is non-nil only for conflicting
// writes, fatal agent failures and cancellation, and the partial Result is
// returned with it.
func (s *Scheduler) Run(ctx context.Context, initial state.State) (*Result, error) {
	ctx, runID := core.EnsureRunID(ctx)
	r := &run{
		id:      runID,
		log:     s.opts.Logger,
		bus:     s.opts.Bus,
		rec:     record.New(runID, ModeDynamic),
		current: initial,
	}
	if r.bus == nil {
		r.bus = bus.New()
	}

	ctx, span := s.tracer.Start(ctx, "Scheduler.Run", trace.WithAttributes(
		telemetry.RunAttributes(runID, ModeDynamic, len(s.agents), s.opts.MaxRounds)...,
	))
	defer span.End()

	r.log.InfoContext(ctx, "scheduler.run.start",
		slog.String("run_id", runID),
		slog.Int("agents", len(s.agents)),
		slog.Int("max_rounds", s.opts.MaxRounds),
		slog.Int("concurrency", s.opts.Concurrency),
		slog.String("failure_policy", string(s.opts.FailurePolicy)),
	)

	have := initial.Keys()
	for _, a := range s.agents {
		if have.ContainsAll(a.Provides()) {
			r.rec.Append(record.Entry{AgentID: a.ID(), Status: record.StatusSkipped, Provided: a.Provides().Strings()})
			r.log.DebugContext(ctx, "scheduler.agent.settled", slog.String("agent_id", a.ID()))
			continue
		}
		r.pending = append(r.pending, a)
	}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, span, r, Aborted, contextLost(err))
		}

		ready, waiting := s.partition(r)
		if len(ready) == 0 {
			// Failed agents count as executed; Result.Failed lists them.
			if len(r.pending) == 0 {
				return s.finish(ctx, span, r, Completed, nil)
			}
			return s.finish(ctx, span, r, Deadlocked, nil)
		}
		if round > s.opts.MaxRounds {
			r.log.WarnContext(ctx, "scheduler.run.max_rounds", slog.Int("max_rounds", s.opts.MaxRounds))
			return s.finish(ctx, span, r, MaxIterationsExceeded, nil)
		}

		fatal := s.executeRound(ctx, r, round, ready)
		r.pending = waiting
		if fatal != nil {
			s.opts.Metrics.RecordError(ctx, fatal, "scheduler")
			return s.finish(ctx, span, r, Aborted, fatal)
		}
	}
}

// partition splits pending agents into ready and waiting, keeping
// registration order.
func (s *Scheduler) partition(r *run) (ready, waiting []agent.Agent) {
	have := r.current.Keys()
	for _, a := range r.pending {
		if have.ContainsAll(a.Requires()) {
			ready = append(ready, a)
		} else {
			waiting = append(waiting, a)
		}
	}
	return ready, waiting
}

// executeRound runs ready against the current snapshot and merges the
// results. It returns the error that ends the run, if any.
func (s *Scheduler) executeRound(ctx context.Context, r *run, round int, ready []agent.Agent) error {
	ids := make([]string, len(ready))
	for i, a := range ready {
		ids[i] = a.ID()
	}
	r.rounds = append(r.rounds, ids)
	r.log.InfoContext(ctx, "scheduler.round.start",
		slog.Int("round", round),
		slog.String("agents", strings.Join(ids, ",")),
	)
	s.opts.Metrics.RecordRound(ctx, round, len(ready))
	trace.SpanFromContext(ctx).AddEvent("scheduler.round", trace.WithAttributes(
		attribute.Int(telemetry.AttrRound, round),
		attribute.Int(telemetry.AttrRoundSize, len(ready)),
	))

	snapshot := r.current
	timeouts := resilience.TimeoutConfig{Duration: s.opts.AgentTimeout, Grace: s.opts.GracePeriod}
	outcomes := make([]Outcome, len(ready))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, a := range ready {
		g.Go(func() error {
			outcomes[i] = ExecuteAgent(ctx, s.tracer, a, snapshot, round, timeouts)
			return nil
		})
	}
	_ = g.Wait()

	var (
		writes   []state.Write
		done     []Outcome
		firstErr error
	)
	for _, o := range outcomes {
		entry := o.Entry()
		s.opts.Metrics.RecordAgent(ctx, o.AgentID, string(entry.Status), o.FinishedAt.Sub(o.StartedAt))
		if o.Err != nil {
			r.rec.Append(entry)
			r.failed = append(r.failed, o.AgentID)
			r.log.ErrorContext(ctx, "scheduler.agent.error",
				slog.String("agent_id", o.AgentID),
				slog.Int("round", round),
				slog.String("status", string(entry.Status)),
				slog.String("error", o.Err.Error()),
			)
			r.bus.Publish(ctx, bus.NewMessage(bus.KindError, o.AgentID, firstCapability(ready, o.AgentID), o.Err.Error()))
			if firstErr == nil {
				firstErr = o.Err
			}
			continue
		}
		writes = append(writes, state.Write{Agent: o.AgentID, Update: o.Update})
		done = append(done, o)
	}

	next, err := r.current.MergeAll(writes)
	if err != nil {
		for _, o := range done {
			e := o.Entry()
			e.Status = record.StatusFailed
			e.Provided = nil
			e.Error = err.Error()
			r.rec.Append(e)
		}
		r.log.ErrorContext(ctx, "scheduler.merge.conflict", slog.Int("round", round), slog.String("error", err.Error()))
		return err
	}
	r.current = next

	for _, o := range done {
		r.rec.Append(o.Entry())
		r.log.InfoContext(ctx, "scheduler.agent.complete",
			slog.String("agent_id", o.AgentID),
			slog.Int("round", round),
			slog.Duration("elapsed", o.FinishedAt.Sub(o.StartedAt)),
		)
		r.bus.Publish(ctx, bus.NewMessage(bus.KindResult, o.AgentID, firstCapability(ready, o.AgentID), o.Update))
	}

	if firstErr != nil {
		if ctx.Err() != nil {
			return contextLost(ctx.Err())
		}
		if s.opts.FailurePolicy == PolicyFatal {
			return firstErr
		}
	}
	return nil
}

// finish freezes the record, reports blocked agents and emits the summary.
func (s *Scheduler) finish(ctx context.Context, span trace.Span, r *run, status Status, runErr error) (*Result, error) {
	res := &Result{
		RunID:  r.id,
		Mode:   ModeDynamic,
		Status: status,
		State:  r.current,
		Record: r.rec,
		Rounds: r.rounds,
		Failed: r.failed,
		Bus:    r.bus,
	}

	have := r.current.Keys()
	for _, a := range r.pending {
		r.rec.Append(record.Entry{AgentID: a.ID(), Status: record.StatusNotExecuted})
		if status == Deadlocked {
			res.Blocked = append(res.Blocked, Blocked{AgentID: a.ID(), Missing: a.Requires().Missing(have)})
		}
	}
	r.rec.Finish(string(status), len(r.rounds))

	if s.opts.Store != nil {
		// A detached context keeps history writes alive after cancellation.
		if err := s.opts.Store.Save(context.WithoutCancel(ctx), r.rec); err != nil {
			r.log.WarnContext(ctx, "scheduler.record.save_failed", slog.String("error", err.Error()))
		}
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrRunStatus, string(status)),
		attribute.Int(telemetry.AttrRunRounds, len(r.rounds)),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.opts.Metrics.RecordRun(ctx, ModeDynamic, string(status), len(r.rounds))

	attrs := []any{
		slog.String("run_id", r.id),
		slog.String("status", string(status)),
		slog.Int("rounds", len(r.rounds)),
		slog.Int("executed", res.Executed()),
		slog.Int("total", len(s.agents)),
		slog.String("order", strings.Join(res.ExecutionOrder(), " -> ")),
	}
	switch {
	case runErr != nil:
		r.log.ErrorContext(ctx, "scheduler.run.aborted", append(attrs, slog.String("error", runErr.Error()))...)
	case status == Deadlocked:
		for _, b := range res.Blocked {
			r.log.WarnContext(ctx, "scheduler.agent.blocked",
				slog.String("agent_id", b.AgentID),
				slog.String("missing", b.Missing.String()),
			)
		}
		r.log.WarnContext(ctx, "scheduler.run.deadlocked", attrs...)
	case len(r.failed) > 0:
		r.log.WarnContext(ctx, "scheduler.run.complete", append(attrs, slog.String("failed", strings.Join(r.failed, ",")))...)
	default:
		r.log.InfoContext(ctx, "scheduler.run.complete", attrs...)
	}
	return res, runErr
}

func firstCapability(agents []agent.Agent, id string) capability.Capability {
	for _, a := range agents {
		if a.ID() == id {
			if caps := a.Provides().Slice(); len(caps) > 0 {
				return caps[0]
			}
		}
	}
	return 0
}

func contextLost(err error) error {
	return errors.New(errors.CodeContextLost, "run cancelled", err)
}

// IsCancelled reports whether err ended a run because its context was done.
func IsCancelled(err error) bool {
	return err != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}
