// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/capflow/pkg/errors"
)

// SchedulerMetrics holds the OTel instruments recorded by the scheduler and
// the static executor.
type SchedulerMetrics struct {
	rounds        metric.Int64Counter
	agentRuns     metric.Int64Counter
	agentFailures metric.Int64Counter
	agentDuration metric.Float64Histogram
	runStatus     metric.Int64Counter
	errors        metric.Int64Counter
}

// NewSchedulerMetrics creates the instruments on the global meter provider.
func NewSchedulerMetrics() (*SchedulerMetrics, error) {
	meter := otel.Meter("capflow/scheduler")

	rounds, err := meter.Int64Counter(
		"capflow.scheduler.rounds",
		metric.WithDescription("Scheduling rounds executed"),
	)
	if err != nil {
		return nil, err
	}
	agentRuns, err := meter.Int64Counter(
		"capflow.agent.runs",
		metric.WithDescription("Agent executions by agent and outcome"),
	)
	if err != nil {
		return nil, err
	}
	agentFailures, err := meter.Int64Counter(
		"capflow.agent.failures",
		metric.WithDescription("Agent executions that failed or timed out"),
	)
	if err != nil {
		return nil, err
	}
	agentDuration, err := meter.Float64Histogram(
		"capflow.agent.duration",
		metric.WithDescription("Agent execution time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	runStatus, err := meter.Int64Counter(
		"capflow.run.status",
		metric.WithDescription("Finished runs by final status"),
	)
	if err != nil {
		return nil, err
	}
	errCounter, err := meter.Int64Counter(
		"capflow.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerMetrics{
		rounds:        rounds,
		agentRuns:     agentRuns,
		agentFailures: agentFailures,
		agentDuration: agentDuration,
		runStatus:     runStatus,
		errors:        errCounter,
	}, nil
}

// RecordRound counts one round and the number of agents it dispatched.
func (m *SchedulerMetrics) RecordRound(ctx context.Context, round, size int) {
	if m == nil {
		return
	}
	m.rounds.Add(ctx, 1, metric.WithAttributes(
		attribute.Int(AttrRound, round),
		attribute.Int(AttrRoundSize, size),
	))
}

// RecordAgent records one agent execution.
func (m *SchedulerMetrics) RecordAgent(ctx context.Context, agentID, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentStatus, status),
	)
	m.agentRuns.Add(ctx, 1, attrs)
	m.agentDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if status == "failed" || status == "timeout" {
		m.agentFailures.Add(ctx, 1, attrs)
	}
}

// RecordRun counts a finished run by status.
func (m *SchedulerMetrics) RecordRun(ctx context.Context, mode, status string, rounds int) {
	if m == nil {
		return
	}
	m.runStatus.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRunMode, mode),
		attribute.String(AttrRunStatus, status),
		attribute.Int(AttrRunRounds, rounds),
	))
}

// RecordError increments the error counter using the error's code.
func (m *SchedulerMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	ke := errors.AsError(err)
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(ke.Code)),
		attribute.String("component", component),
		attribute.String("recoverable", ke.RecoverableString()),
	))
}
