// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// DefaultAnthropicMaxTokens is sent when a request leaves MaxTokens unset;
// the Messages API requires it.
const DefaultAnthropicMaxTokens = 1024

// AnthropicProvider implements Provider for the Anthropic Messages API,
// directly or through AWS Bedrock.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// AnthropicConfig configures NewAnthropic.
type AnthropicConfig struct {
	Model   string
	APIKey  string
	BaseURL string

	// Bedrock routes requests through AWS Bedrock using the default AWS
	// credential chain instead of an API key.
	Bedrock    bool
	AWSRegion  string
	AWSProfile string
}

// NewAnthropic creates an Anthropic provider. Without an API key the SDK
// reads ANTHROPIC_API_KEY.
func NewAnthropic(ctx context.Context, cfg AnthropicConfig) *AnthropicProvider {
	var opts []option.RequestOption
	if cfg.Bedrock {
		var load []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			load = append(load, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			load = append(load, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, load...))
	} else if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

// Chat implements Provider. System messages are joined into the request's
// system prompt.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	var system []string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic message failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &ChatResponse{
		Content: text.String(),
		Usage:   Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}
