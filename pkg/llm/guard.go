// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/capflow/pkg/core"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/telemetry"
)

// GuardConfig configures a Guarded provider.
type GuardConfig struct {
	// Name labels spans and logs, e.g. "openrouter".
	Name string
	// Model is reported on spans when the request leaves it empty.
	Model string
	// Defaults fill zero request fields.
	Temperature float64
	MaxTokens   int

	Timeout time.Duration
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	Logger  *slog.Logger
}

// Guarded wraps a Provider with per-call timeout, retries, a circuit breaker
// and one span per call. Failures surface as *errors.Error with CodeLLMError
// or CodeTimeout.
type Guarded struct {
	next    Provider
	cfg     GuardConfig
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer
}

// NewGuarded wraps next.
func NewGuarded(next Provider, cfg GuardConfig) *Guarded {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "llm." + cfg.Name
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Guarded{
		next:    next,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		tracer:  otel.Tracer("capflow/llm"),
	}
}

// Chat implements Provider.
func (g *Guarded) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Temperature == 0 {
		req.Temperature = g.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.cfg.MaxTokens
	}
	model := req.Model
	if model == "" {
		model = g.cfg.Model
	}

	ctx, span := g.tracer.Start(ctx, "LLM.Chat", trace.WithAttributes(
		telemetry.LLMAttributes(model, g.cfg.Name, 0, 0)...,
	))
	defer span.End()

	attempt := 0
	resp, err := resilience.Retry(ctx, g.cfg.Retry, func(ctx context.Context) (*ChatResponse, error) {
		attempt++
		var out *ChatResponse
		err := g.breaker.Call(ctx, func(ctx context.Context) error {
			r, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: g.cfg.Timeout}, func(ctx context.Context) (*ChatResponse, error) {
				return g.next.Chat(ctx, req)
			})
			out = r
			return err
		})
		if err != nil {
			g.cfg.Logger.WarnContext(ctx, "llm.chat.attempt_failed",
				slog.String("provider", g.cfg.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return nil, classify(err)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		typed := errors.AsError(err).WithContext("provider", g.cfg.Name).WithContext("model", model)
		if agentID, ok := core.AgentID(ctx); ok {
			typed = typed.WithContext("agent_id", agentID)
		}
		return nil, typed
	}

	span.SetAttributes(telemetry.LLMAttributes(model, g.cfg.Name, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Breaker exposes the circuit breaker state.
func (g *Guarded) Breaker() resilience.CircuitBreakerState { return g.breaker.State() }

// classify keeps typed errors and marks plain provider failures as
// recoverable LLM errors.
func classify(err error) error {
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}
	return errors.New(errors.CodeLLMError, "text generation failed", err).WithRecoverable(true)
}
