// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jllopis/capflow/pkg/core"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitNoneExporter(t *testing.T) {
	shutdown, err := InitWithConfig("test-service", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitRejectsBadConfig(t *testing.T) {
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "otlp"}); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestLoggerAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	ctx := core.WithRunID(context.Background(), "run-42")
	logger.InfoContext(ctx, "scheduler.run.start")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-42"`) {
		t.Fatalf("expected run_id in log output, got %s", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := ParseLogLevel(in).String(); got != want {
			t.Errorf("level %q: expected %s, got %s", in, want, got)
		}
	}
}
