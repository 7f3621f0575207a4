// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider returns a pre-defined sequence of responses, one per
// call. Errs, when it has an entry at the call index, fails that call
// without consuming a response.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []string
	Errs      map[int]error
	// CallCount tracks how many times Chat has been called.
	CallCount int
}

// NewScriptedMockProvider creates a provider answering with responses in order.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{Responses: responses}
}

// FailOn makes call number n (zero based) return err.
func (s *ScriptedMockProvider) FailOn(n int, err error) *ScriptedMockProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Errs == nil {
		s.Errs = make(map[int]error)
	}
	s.Errs[n] = err
	return s
}

// Chat pops the next scripted response or returns the scripted error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.CallCount
	s.CallCount++

	if err, ok := s.Errs[call]; ok {
		return nil, err
	}
	if len(s.Responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}

	content := s.Responses[0]
	s.Responses = s.Responses[1:]

	return &ChatResponse{
		Content: content,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// Calls returns how many times Chat has been called.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}
