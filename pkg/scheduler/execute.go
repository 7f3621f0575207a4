// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/core"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/state"
	"github.com/jllopis/capflow/pkg/telemetry"
)

// Outcome is the result of running one agent against a snapshot.
type Outcome struct {
	AgentID    string
	Round      int
	Update     state.Update
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Entry converts the outcome into a record entry.
func (o Outcome) Entry() record.Entry {
	e := record.Entry{
		AgentID:    o.AgentID,
		Round:      o.Round,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	switch {
	case o.Err == nil:
		e.Status = record.StatusCompleted
		e.Provided = o.Update.Keys().Strings()
	case resilience.IsTimeout(o.Err):
		e.Status = record.StatusTimeout
		e.Error = o.Err.Error()
	default:
		e.Status = record.StatusFailed
		e.Error = o.Err.Error()
	}
	return e
}

// ExecuteAgent runs a against view under timeout, inside its own span, and
// checks that the update writes exactly the declared capabilities. Any
// failure is returned as *errors.AgentExecutionError.
func ExecuteAgent(ctx context.Context, tracer trace.Tracer, a agent.Agent, view state.View, round int, cfg resilience.TimeoutConfig) Outcome {
	out := Outcome{AgentID: a.ID(), Round: round, StartedAt: time.Now().UTC()}

	ctx = core.WithAgent(ctx, a.ID(), round)
	ctx, span := tracer.Start(ctx, "Scheduler.Agent", trace.WithAttributes(
		telemetry.AgentAttributes(a.ID(), round, a.Provides().Strings(), a.Requires().Strings())...,
	))
	defer span.End()

	update, err := resilience.WithTimeoutResult(ctx, cfg, func(ctx context.Context) (update state.Update, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		return a.Run(ctx, view)
	})
	if err == nil {
		err = checkOutput(a.Provides(), update)
	}
	out.FinishedAt = time.Now().UTC()

	if err != nil {
		out.Err = &errors.AgentExecutionError{
			AgentID: a.ID(),
			Round:   round,
			Timeout: resilience.IsTimeout(err),
			Err:     err,
		}
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, err.Error())
		return out
	}
	out.Update = update
	span.SetStatus(codes.Ok, "")
	return out
}

// checkOutput requires the written keys to equal the declared provides.
func checkOutput(provides capability.Set, update state.Update) error {
	got := update.Keys()
	if got == provides {
		return nil
	}
	var parts []string
	if missing := provides.Missing(got); !missing.Empty() {
		parts = append(parts, fmt.Sprintf("missing %s", missing))
	}
	if extra := got.Missing(provides); !extra.Empty() {
		parts = append(parts, fmt.Sprintf("undeclared %s", extra))
	}
	return fmt.Errorf("output does not match declared capabilities: %v", parts)
}
