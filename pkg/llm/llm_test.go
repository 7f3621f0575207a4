// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/capflow/pkg/config"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/telemetry"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), Prompt("be brief", "Hi"))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
	reqs := mock.Requests()
	if len(reqs) != 1 || len(reqs[0].Messages) != 2 || LastUser(reqs[0]) != "Hi" {
		t.Fatalf("unexpected recorded requests: %+v", reqs)
	}
}

func TestPromptWithoutSystem(t *testing.T) {
	req := Prompt("  ", "question")
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("first", "second").FailOn(1, stderrors.New("flaky"))
	ctx := context.Background()

	got := []string{}
	for i := 0; i < 3; i++ {
		resp, err := mock.Chat(ctx, Prompt("", "x"))
		if i == 1 {
			if err == nil {
				t.Fatal("expected scripted failure on call 1")
			}
			continue
		}
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		got = append(got, resp.Content)
	}
	if strings.Join(got, ",") != "first,second" {
		t.Fatalf("unexpected responses %v", got)
	}
	if _, err := mock.Chat(ctx, Prompt("", "x")); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if mock.Calls() != 4 {
		t.Fatalf("expected 4 calls, got %d", mock.Calls())
	}
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithMaxAttempts(attempts).WithInitialDelay(time.Millisecond)
}

func TestGuardedRetriesTransientFailures(t *testing.T) {
	mock := NewScriptedMockProvider("ok").FailOn(0, stderrors.New("503"))
	g := NewGuarded(mock, GuardConfig{Name: "mock", Retry: fastRetry(3), Logger: telemetry.DiscardLogger()})

	resp, err := g.Chat(context.Background(), Prompt("", "x"))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" || mock.Calls() != 2 {
		t.Fatalf("expected success on second call, got %q after %d calls", resp.Content, mock.Calls())
	}
}

func TestGuardedFillsDefaults(t *testing.T) {
	var seen ChatRequest
	mock := &MockProvider{ChatFunc: func(_ context.Context, req ChatRequest) (*ChatResponse, error) {
		seen = req
		return &ChatResponse{Content: "x"}, nil
	}}
	g := NewGuarded(mock, GuardConfig{Name: "mock", Temperature: 0.7, MaxTokens: 2000, Logger: telemetry.DiscardLogger()})
	if _, err := g.Chat(context.Background(), Prompt("", "x")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if seen.Temperature != 0.7 || seen.MaxTokens != 2000 {
		t.Fatalf("defaults not applied: %+v", seen)
	}
}

func TestGuardedReturnsTypedError(t *testing.T) {
	mock := &FailingMockProvider{}
	g := NewGuarded(mock, GuardConfig{Name: "mock", Model: "m1", Retry: fastRetry(2), Logger: telemetry.DiscardLogger()})

	_, err := g.Chat(context.Background(), Prompt("", "x"))
	typed := errors.AsError(err)
	if typed == nil || typed.Code != errors.CodeLLMError {
		t.Fatalf("expected llm error, got %v", err)
	}
	if typed.Context["provider"] != "mock" || typed.Context["model"] != "m1" {
		t.Fatalf("unexpected context %v", typed.Context)
	}
}

func TestGuardedOpensBreaker(t *testing.T) {
	calls := 0
	mock := &MockProvider{ChatFunc: func(context.Context, ChatRequest) (*ChatResponse, error) {
		calls++
		return nil, stderrors.New("down")
	}}
	g := NewGuarded(mock, GuardConfig{
		Name:    "mock",
		Retry:   fastRetry(1),
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour},
		Logger:  telemetry.DiscardLogger(),
	})

	for i := 0; i < 4; i++ {
		_, _ = g.Chat(context.Background(), Prompt("", "x"))
	}
	if calls != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", calls)
	}
	if g.Breaker() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %s", g.Breaker())
	}
}

func TestGuardedTimeout(t *testing.T) {
	mock := &MockProvider{ChatFunc: func(ctx context.Context, _ ChatRequest) (*ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGuarded(mock, GuardConfig{Name: "mock", Timeout: 10 * time.Millisecond, Retry: fastRetry(1), Logger: telemetry.DiscardLogger()})

	_, err := g.Chat(context.Background(), Prompt("", "x"))
	if !resilience.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "hola"},
			"done":              true,
			"prompt_eval_count": 4,
			"eval_count":        2,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "llama3.1")
	req := Prompt("sys", "hi")
	req.MaxTokens = 50
	resp, err := p.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hola" || resp.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.Model != "llama3.1" || got.Stream || got.Options["num_predict"] != float64(50) {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "nope").Chat(context.Background(), Prompt("", "hi"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestOpenAIChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "answer"}}],
  "usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
}`))
	}))
	defer srv.Close()

	p := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL+"/v1"), WithModel("gpt-4o-mini"))
	req := Prompt("sys", "question")
	req.Temperature = 0.2
	req.MaxTokens = 100
	resp, err := p.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "answer" || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if body["model"] != "gpt-4o-mini" || body["max_tokens"] != float64(100) {
		t.Fatalf("unexpected request body %v", body)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", body["messages"])
	}
}

func TestAnthropicChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "sk-ant" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "answer"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 7, "output_tokens": 3}
}`))
	}))
	defer srv.Close()

	p := NewAnthropic(context.Background(), AnthropicConfig{APIKey: "sk-ant", BaseURL: srv.URL, Model: "claude-sonnet-4-20250514"})
	resp, err := p.Chat(context.Background(), Prompt("sys", "question"))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "answer" || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if body["max_tokens"] != float64(DefaultAnthropicMaxTokens) {
		t.Fatalf("expected default max_tokens, got %v", body["max_tokens"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("system prompt must not be sent as a message: %v", body["messages"])
	}
	if system, _ := body["system"].([]any); len(system) != 1 {
		t.Fatalf("expected one system block, got %v", body["system"])
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	logger := telemetry.DiscardLogger()

	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{"mock", config.LLMConfig{Provider: "mock"}, false},
		{"ollama", config.LLMConfig{Provider: "ollama", Model: "llama3.1"}, false},
		{"openai with key", config.LLMConfig{Provider: "openai", APIKey: "sk", Model: "gpt-4o-mini"}, false},
		{"openrouter with key", config.LLMConfig{Provider: "openrouter", APIKey: "sk", Model: "openai/gpt-4o-mini", MaxAttempts: 5}, false},
		{"openrouter without key", config.LLMConfig{Provider: "openrouter"}, true},
		{"openai without key", config.LLMConfig{Provider: "openai"}, true},
		{"anthropic with key", config.LLMConfig{Provider: "anthropic", APIKey: "sk-ant", Model: "claude-sonnet-4-20250514"}, false},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}, true},
		{"unknown", config.LLMConfig{Provider: "gemini"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := FromConfig(tc.cfg, logger)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			if g.cfg.Name != tc.cfg.Provider {
				t.Fatalf("unexpected guard name %q", g.cfg.Name)
			}
		})
	}
}
