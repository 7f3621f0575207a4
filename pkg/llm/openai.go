// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenRouterURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterURL = "https://openrouter.ai/api/v1"

// OpenAIProvider implements Provider for the OpenAI chat completions API and
// compatible services such as OpenRouter.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// OpenAIOption configures the OpenAIProvider.
type OpenAIOption func(*openAISettings)

type openAISettings struct {
	model   string
	apiKey  string
	baseURL string
}

// WithModel sets the default model.
func WithModel(model string) OpenAIOption {
	return func(s *openAISettings) { s.model = model }
}

// WithAPIKey sets the API key. Without it OPENAI_API_KEY is read.
func WithAPIKey(apiKey string) OpenAIOption {
	return func(s *openAISettings) { s.apiKey = apiKey }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = url }
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...OpenAIOption) *OpenAIProvider {
	s := openAISettings{model: "gpt-4o-mini"}
	for _, opt := range opts {
		opt(&s)
	}
	var clientOpts []option.RequestOption
	if s.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(s.apiKey))
	}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(s.baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(clientOpts...),
		model:  s.model,
	}
}

// NewOpenRouter creates a provider talking to OpenRouter.
func NewOpenRouter(apiKey, model string) *OpenAIProvider {
	return NewOpenAI(WithAPIKey(apiKey), WithBaseURL(OpenRouterURL), WithModel(model))
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	return convertResponse(completion), nil
}

func convertMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case RoleSystem:
		return openai.SystemMessage(msg.Content)
	case RoleAssistant:
		return openai.AssistantMessage(msg.Content)
	default:
		return openai.UserMessage(msg.Content)
	}
}

func convertResponse(completion *openai.ChatCompletion) *ChatResponse {
	resp := &ChatResponse{
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) > 0 {
		resp.Content = completion.Choices[0].Message.Content
	}
	return resp
}
