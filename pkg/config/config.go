// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads capflow settings from defaults, an optional YAML (or
// JSON) file, a profile overlay, CAPFLOW_ environment variables and explicit
// key=value overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. The first underscore
// after the prefix separates section and key: CAPFLOW_LLM_API_KEY sets
// llm.api_key.
const EnvPrefix = "CAPFLOW_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Record    RecordConfig    `koanf:"record"`
	Output    OutputConfig    `koanf:"output"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // openai, openrouter, anthropic, ollama, mock
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`

	// Bedrock sends anthropic requests through AWS Bedrock.
	Bedrock    bool   `koanf:"bedrock"`
	AWSRegion  string `koanf:"aws_region"`
	AWSProfile string `koanf:"aws_profile"`
}

type SchedulerConfig struct {
	Mode          string        `koanf:"mode"` // dynamic, static
	MaxRounds     int           `koanf:"max_rounds"`
	Concurrency   int           `koanf:"concurrency"`
	FailurePolicy string        `koanf:"failure_policy"` // fatal, partial
	AgentTimeout  time.Duration `koanf:"agent_timeout"`
	GracePeriod   time.Duration `koanf:"grace_period"`
}

type TelemetryConfig struct {
	Exporter     string        `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string        `koanf:"otlp_endpoint"`
	OTLPInsecure bool          `koanf:"otlp_insecure"`
	OTLPTimeout  time.Duration `koanf:"otlp_timeout"`
}

type RecordConfig struct {
	// Path of the SQLite history database. Empty keeps history in memory.
	Path string `koanf:"path"`
}

type OutputConfig struct {
	Dir string `koanf:"dir"`
}

var defaults = map[string]any{
	"log.level":                "info",
	"log.format":               "text",
	"llm.provider":             "openrouter",
	"llm.model":                "openai/gpt-4o-mini",
	"llm.base_url":             "",
	"llm.temperature":          0.7,
	"llm.max_tokens":           2000,
	"llm.timeout":              "60s",
	"llm.max_attempts":         3,
	"llm.bedrock":              false,
	"llm.aws_region":           "",
	"llm.aws_profile":          "",
	"scheduler.mode":           "dynamic",
	"scheduler.max_rounds":     20,
	"scheduler.concurrency":    4,
	"scheduler.failure_policy": "fatal",
	"scheduler.agent_timeout":  "0s",
	"scheduler.grace_period":   "2s",
	"telemetry.exporter":       "none",
	"telemetry.otlp_endpoint":  "localhost:4317",
	"telemetry.otlp_insecure":  true,
	"telemetry.otlp_timeout":   "30s",
	"record.path":              "",
	"output.dir":               "output",
}

// Load reads path (if any) on top of the defaults, then the environment.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, "", nil)
}

// LoadWithProfile behaves like Load and then overlays the profile file next
// to path (config.yaml + "dev" -> config.dev.yaml) when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWithOverrides(path, profile, nil)
}

// LoadWithOverrides is LoadWithProfile plus key=value overrides applied
// last, e.g. "scheduler.max_rounds=5".
func LoadWithOverrides(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if overlay := profileConfigPath(path, profile); overlay != "" {
		if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load profile %s: %w", overlay, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for _, set := range sets {
		key, value, err := parseSet(set)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "openrouter", "anthropic", "ollama", "mock":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	switch c.Scheduler.Mode {
	case "dynamic", "static":
	default:
		return fmt.Errorf("scheduler.mode: unknown mode %q", c.Scheduler.Mode)
	}
	switch strings.ToLower(c.Scheduler.FailurePolicy) {
	case "fatal", "partial":
	default:
		return fmt.Errorf("scheduler.failure_policy: unknown policy %q", c.Scheduler.FailurePolicy)
	}
	if c.Scheduler.Mode == "static" && strings.EqualFold(c.Scheduler.FailurePolicy, "partial") {
		return fmt.Errorf("scheduler.failure_policy: partial is not supported in static mode")
	}
	if c.Scheduler.MaxRounds <= 0 {
		return fmt.Errorf("scheduler.max_rounds must be positive")
	}
	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("scheduler.concurrency must be positive")
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter: unknown exporter %q", c.Telemetry.Exporter)
	}
	return nil
}

// envKey maps CAPFLOW_SCHEDULER_MAX_ROUNDS to scheduler.max_rounds.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func parseSet(set string) (string, string, error) {
	key, value, ok := strings.Cut(set, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid override %q, expected key=value", set)
	}
	return key, strings.TrimSpace(value), nil
}

// profileConfigPath returns the overlay for profile next to base, or "" if
// it does not exist.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
