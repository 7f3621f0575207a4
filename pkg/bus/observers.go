// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/capflow/pkg/telemetry"
)

// LogObserver logs every message at debug level.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg Message) {
		logger.DebugContext(ctx, "bus.message",
			slog.String("kind", string(msg.Kind)),
			slog.String("sender", msg.Sender),
			slog.String("capability", msg.Capability.String()),
			slog.Uint64("seq", msg.Seq),
		)
	}
}

// SpanObserver adds a span event to the span carried by ctx, if any.
func SpanObserver() Observer {
	return func(ctx context.Context, msg Message) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.AddEvent("bus.message", trace.WithAttributes(
			telemetry.MessageAttributes(string(msg.Kind), msg.Sender, msg.Capability.String(), msg.Seq)...,
		))
	}
}
