// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for scheduler observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for capflow telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Run attributes
	AttrRunID       = "capflow.run.id"
	AttrRunMode     = "capflow.run.mode"
	AttrRunAgents   = "capflow.run.agents"
	AttrRunStatus   = "capflow.run.status"
	AttrRunRounds   = "capflow.run.rounds"
	AttrRunMaxRound = "capflow.run.max_rounds"

	// Agent attributes
	AttrAgentID       = "capflow.agent.id"
	AttrAgentProvides = "capflow.agent.provides"
	AttrAgentRequires = "capflow.agent.requires"
	AttrAgentStatus   = "capflow.agent.status"
	AttrRound         = "capflow.round"
	AttrRoundSize     = "capflow.round.size"

	// Message attributes
	AttrMessageKind       = "capflow.message.kind"
	AttrMessageSender     = "capflow.message.sender"
	AttrMessageCapability = "capflow.message.capability"
	AttrMessageSeq        = "capflow.message.seq"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
)

// RunAttributes returns common attributes for run spans.
func RunAttributes(runID, mode string, agents, maxRounds int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrRunAgents, agents),
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(AttrRunMode, mode))
	}
	if maxRounds > 0 {
		attrs = append(attrs, attribute.Int(AttrRunMaxRound, maxRounds))
	}
	return attrs
}

// AgentAttributes returns attributes for an agent execution span.
func AgentAttributes(agentID string, round int, provides, requires []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
	}
	if round > 0 {
		attrs = append(attrs, attribute.Int(AttrRound, round))
	}
	if len(provides) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrAgentProvides, provides))
	}
	if len(requires) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrAgentRequires, requires))
	}
	return attrs
}

// MessageAttributes returns attributes for a bus message span event.
func MessageAttributes(kind, sender, capability string, seq uint64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMessageKind, kind),
		attribute.Int64(AttrMessageSeq, int64(seq)),
	}
	if sender != "" {
		attrs = append(attrs, attribute.String(AttrMessageSender, sender))
	}
	if capability != "" {
		attrs = append(attrs, attribute.String(AttrMessageCapability, capability))
	}
	return attrs
}

// LLMAttributes returns attributes for text generation spans.
func LLMAttributes(model, provider string, inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}
