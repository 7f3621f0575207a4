// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/bus"
	"github.com/jllopis/capflow/pkg/core"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/scheduler"
	"github.com/jllopis/capflow/pkg/state"
	"github.com/jllopis/capflow/pkg/telemetry"
)

// ModeStatic names runs driven by the Executor.
const ModeStatic = "static"

// Executor runs the agents of a graph one at a time in topological order.
type Executor struct {
	opts   scheduler.Options
	tracer trace.Tracer
}

// NewExecutor creates an executor. It honours the timeout, bus, store,
// logger and metrics options of the scheduler; round and concurrency
// settings do not apply, and every failure is fatal whatever the failure
// policy.
func NewExecutor(opts ...scheduler.Option) *Executor {
	o := scheduler.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Executor{
		opts:   o,
		tracer: otel.Tracer("capflow/planner"),
	}
}

// Execute runs agents in graph order, each against the state accumulated
// from its predecessors. Agents whose outputs are already present in
// initial are skipped. The status is Completed or Aborted; on abort the
// error is returned together with the partial result.
func (e *Executor) Execute(ctx context.Context, graph *Graph, agents []agent.Agent, initial state.State) (*scheduler.Result, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	byID, err := bind(graph, agents)
	if err != nil {
		return nil, err
	}

	ctx, runID := core.EnsureRunID(ctx)
	log := e.opts.Logger
	b := e.opts.Bus
	if b == nil {
		b = bus.New()
	}
	rec := record.New(runID, ModeStatic)
	res := &scheduler.Result{RunID: runID, Mode: ModeStatic, Record: rec, Bus: b}

	ctx, span := e.tracer.Start(ctx, "Planner.Execute", trace.WithAttributes(
		telemetry.RunAttributes(runID, ModeStatic, len(order), len(order))...,
	))
	defer span.End()

	log.InfoContext(ctx, "planner.run.start",
		slog.String("run_id", runID),
		slog.String("order", strings.Join(order, " -> ")),
	)
	if e.opts.FailurePolicy == scheduler.PolicyPartial {
		log.WarnContext(ctx, "planner.failure_policy.ignored",
			slog.String("run_id", runID),
			slog.String("failure_policy", string(e.opts.FailurePolicy)),
		)
	}

	current := initial
	timeouts := resilience.TimeoutConfig{Duration: e.opts.AgentTimeout, Grace: e.opts.GracePeriod}
	var runErr error
	step := 0
	for i, id := range order {
		a := byID[id]
		if initial.Keys().ContainsAll(a.Provides()) {
			rec.Append(record.Entry{AgentID: id, Status: record.StatusSkipped, Provided: a.Provides().Strings()})
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = errors.New(errors.CodeContextLost, "run cancelled", err)
			markRemaining(rec, order[i:])
			break
		}
		if missing := a.Requires().Missing(current.Keys()); !missing.Empty() {
			runErr = fmt.Errorf("agent %q reached with missing %s", id, missing)
			markRemaining(rec, order[i:])
			break
		}

		step++
		res.Rounds = append(res.Rounds, []string{id})
		out := scheduler.ExecuteAgent(ctx, e.tracer, a, current, step, timeouts)
		entry := out.Entry()
		e.opts.Metrics.RecordAgent(ctx, id, string(entry.Status), out.FinishedAt.Sub(out.StartedAt))
		if out.Err != nil {
			rec.Append(entry)
			res.Failed = append(res.Failed, id)
			b.Publish(ctx, bus.NewMessage(bus.KindError, id, a.Provides().Slice()[0], out.Err.Error()))
			log.ErrorContext(ctx, "planner.agent.error", slog.String("agent_id", id), slog.String("error", out.Err.Error()))
			runErr = out.Err
			markRemaining(rec, order[i+1:])
			break
		}

		next, err := current.Merge(id, out.Update)
		if err != nil {
			entry.Status = record.StatusFailed
			entry.Provided = nil
			entry.Error = err.Error()
			rec.Append(entry)
			runErr = err
			markRemaining(rec, order[i+1:])
			break
		}
		current = next
		rec.Append(entry)
		b.Publish(ctx, bus.NewMessage(bus.KindResult, id, a.Provides().Slice()[0], out.Update))
		log.InfoContext(ctx, "planner.agent.complete",
			slog.String("agent_id", id),
			slog.Int("step", step),
			slog.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)),
		)
	}

	res.State = current
	res.Status = scheduler.Completed
	if runErr != nil {
		res.Status = scheduler.Aborted
	}
	rec.Finish(string(res.Status), step)

	if e.opts.Store != nil {
		if err := e.opts.Store.Save(context.WithoutCancel(ctx), rec); err != nil {
			log.WarnContext(ctx, "planner.record.save_failed", slog.String("error", err.Error()))
		}
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrRunStatus, string(res.Status)),
		attribute.Int(telemetry.AttrRunRounds, step),
	)
	e.opts.Metrics.RecordRun(ctx, ModeStatic, string(res.Status), step)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.opts.Metrics.RecordError(ctx, runErr, "planner")
		log.ErrorContext(ctx, "planner.run.aborted",
			slog.String("run_id", runID),
			slog.Int("executed", res.Executed()),
			slog.String("error", runErr.Error()),
		)
		return res, runErr
	}
	span.SetStatus(codes.Ok, "")
	log.InfoContext(ctx, "planner.run.complete",
		slog.String("run_id", runID),
		slog.Int("executed", res.Executed()),
		slog.Int("total", len(order)),
	)
	return res, nil
}

// bind matches every node to an agent with the same declaration.
func bind(graph *Graph, agents []agent.Agent) (map[string]agent.Agent, error) {
	byID := make(map[string]agent.Agent, len(agents))
	for _, a := range agents {
		if a == nil {
			return nil, errors.New(errors.CodeInvalidInput, "nil agent", nil)
		}
		byID[a.ID()] = a
	}
	for _, n := range graph.Nodes {
		a, ok := byID[n.ID]
		if !ok {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("no agent for node %q", n.ID), nil)
		}
		if a.Provides() != n.Provides || a.Requires() != n.Requires {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("agent %q does not match its node declaration", n.ID), nil)
		}
	}
	return byID, nil
}

func markRemaining(rec *record.Record, ids []string) {
	for _, id := range ids {
		rec.Append(record.Entry{AgentID: id, Status: record.StatusNotExecuted})
	}
}
