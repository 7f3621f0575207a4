// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("run-1", "dynamic", 12, 20)

	expected := map[string]any{
		AttrRunID:       "run-1",
		AttrRunMode:     "dynamic",
		AttrRunAgents:   12,
		AttrRunMaxRound: 20,
	}

	assertAttributes(t, attrs, expected)
}

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("faq_filler", 3, []string{"fill_faq"}, []string{"parse_data", "generate_questions"})

	expected := map[string]any{
		AttrAgentID: "faq_filler",
		AttrRound:   3,
	}
	assertAttributes(t, attrs, expected)

	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
}

func TestAgentAttributesOmitsEmpty(t *testing.T) {
	attrs := AgentAttributes("data_parser", 0, nil, nil)
	if len(attrs) != 1 {
		t.Fatalf("expected only the agent id, got %v", attrs)
	}
}

func TestMessageAttributes(t *testing.T) {
	attrs := MessageAttributes("RESULT", "data_parser", "parse_data", 7)

	expected := map[string]any{
		AttrMessageKind:       "RESULT",
		AttrMessageSender:     "data_parser",
		AttrMessageCapability: "parse_data",
		AttrMessageSeq:        7,
	}

	assertAttributes(t, attrs, expected)
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("gpt-4o-mini", "openai", 100, 50)

	expected := map[string]any{
		AttrLLMModel:        "gpt-4o-mini",
		AttrLLMProvider:     "openai",
		AttrLLMTokensInput:  100,
		AttrLLMTokensOutput: 50,
		AttrLLMTokensTotal:  150,
	}

	assertAttributes(t, attrs, expected)
}

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
