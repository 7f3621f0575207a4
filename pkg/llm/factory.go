// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jllopis/capflow/pkg/config"
	"github.com/jllopis/capflow/pkg/resilience"
)

// FromConfig builds the configured provider wrapped in a Guarded provider.
// A missing API key falls back to OPENROUTER_API_KEY, OPENAI_API_KEY or
// ANTHROPIC_API_KEY.
// The mock provider answers every prompt with an empty string; callers
// that need canned answers construct a MockProvider directly.
func FromConfig(cfg config.LLMConfig, logger *slog.Logger) (*Guarded, error) {
	var p Provider
	switch cfg.Provider {
	case "openrouter":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENROUTER_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("openrouter: api key is required (llm.api_key or OPENROUTER_API_KEY)")
		}
		base := firstNonEmpty(cfg.BaseURL, OpenRouterURL)
		p = NewOpenAI(WithAPIKey(key), WithBaseURL(base), WithModel(cfg.Model))
	case "openai":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("openai: api key is required (llm.api_key or OPENAI_API_KEY)")
		}
		opts := []OpenAIOption{WithAPIKey(key), WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		p = NewOpenAI(opts...)
	case "anthropic":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" && !cfg.Bedrock {
			return nil, fmt.Errorf("anthropic: api key is required (llm.api_key or ANTHROPIC_API_KEY) unless llm.bedrock is set")
		}
		p = NewAnthropic(context.Background(), AnthropicConfig{
			Model:      cfg.Model,
			APIKey:     key,
			BaseURL:    cfg.BaseURL,
			Bedrock:    cfg.Bedrock,
			AWSRegion:  cfg.AWSRegion,
			AWSProfile: cfg.AWSProfile,
		})
	case "ollama":
		p = NewOllama(cfg.BaseURL, cfg.Model)
	case "mock":
		p = &MockProvider{}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry = retry.WithMaxAttempts(cfg.MaxAttempts)
	}
	return NewGuarded(p, GuardConfig{
		Name:        cfg.Provider,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		Retry:       retry,
		Logger:      logger,
	}), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
