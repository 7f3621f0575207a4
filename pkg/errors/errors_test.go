// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("deadline exceeded")
	ke := New(CodeTimeout, "agent timed out", cause)

	if ke.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", ke.Code)
	}
	if ke.Message != "agent timed out" {
		t.Errorf("expected message 'agent timed out', got %q", ke.Message)
	}
	if !errors.Is(ke, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContextAndAttributes(t *testing.T) {
	ke := New(CodeAgentExecution, "agent failed", nil)
	ke.WithContext("agent", "faq_filler").
		WithContext("round", 3).
		WithAttribute("capability", "fill_faq")

	if ke.Context["agent"] != "faq_filler" || ke.Context["round"] != 3 {
		t.Errorf("unexpected context: %v", ke.Context)
	}
	if ke.Attributes["capability"] != "fill_faq" {
		t.Errorf("expected attribute capability")
	}
	if ke.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	if ke.WithRecoverable(true).RecoverableString() != "true" {
		t.Errorf("expected recoverable after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ke       *Error
		expected string
	}{
		{
			name:     "with cause",
			ke:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			ke:       New(CodeNotFound, "run not found", nil),
			expected: "[NOT_FOUND] run not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ke.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "already typed", err: New(CodeLLMError, "failed", nil), expected: CodeLLMError},
		{name: "generic error", err: errors.New("generic"), expected: CodeInternal},
		{
			name:     "duplicate capability",
			err:      &DuplicateCapabilityError{Capability: "x", Existing: "a", Claimant: "b"},
			expected: CodeDuplicateCapability,
		},
		{
			name:     "wrapped unsatisfiable",
			err:      fmt.Errorf("validate: %w", &UnsatisfiableDependencyError{Missing: map[string][]string{"q": {"e"}}}),
			expected: CodeUnsatisfiableDependency,
		},
		{
			name:     "conflicting write",
			err:      &ConflictingWriteError{Capability: "x", Agents: []string{"a", "b"}},
			expected: CodeConflictingWrite,
		},
		{
			name:     "agent failure",
			err:      &AgentExecutionError{AgentID: "a", Round: 1, Err: errors.New("boom")},
			expected: CodeAgentExecution,
		},
		{
			name:     "agent timeout",
			err:      &AgentExecutionError{AgentID: "a", Round: 1, Timeout: true, Err: errors.New("slow")},
			expected: CodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ke := AsError(tt.err)
			if tt.expected == "" {
				if ke != nil {
					t.Errorf("expected nil for nil error")
				}
				return
			}
			if ke == nil {
				t.Fatalf("expected non-nil Error")
			}
			if ke.Code != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, ke.Code)
			}
		})
	}
}

func TestTypedErrorMessages(t *testing.T) {
	dup := &DuplicateCapabilityError{Capability: "parse_data", Existing: "a", Claimant: "b"}
	for _, want := range []string{"parse_data", `"a"`, `"b"`} {
		if !strings.Contains(dup.Error(), want) {
			t.Errorf("expected %q in %q", want, dup.Error())
		}
	}

	unsat := &UnsatisfiableDependencyError{
		Missing: map[string][]string{"q": {"e"}},
		Cycle:   []string{"a", "b", "a"},
	}
	msg := unsat.Error()
	if !strings.Contains(msg, "q required by e") || !strings.Contains(msg, "a -> b -> a") {
		t.Errorf("unexpected message %q", msg)
	}

	cause := errors.New("boom")
	exec := &AgentExecutionError{AgentID: "a", Round: 2, Err: cause}
	if !errors.Is(exec, cause) {
		t.Errorf("expected AgentExecutionError to unwrap its cause")
	}
}

func TestMarshalJSON(t *testing.T) {
	ke := New(CodeAgentExecution, "agent failed", errors.New("network error"))
	ke.WithContext("agent", "faq_filler").
		WithAttribute("round", "1").
		WithRecoverable(true)

	data, err := json.Marshal(ke)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "AGENT_EXECUTION" {
		t.Errorf("expected code 'AGENT_EXECUTION', got %v", result["code"])
	}
	if result["error"] != "network error" {
		t.Errorf("expected cause text, got %v", result["error"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{CodeInvalidInput, 2},
		{CodeDuplicateCapability, 3},
		{CodeUnsatisfiableDependency, 3},
		{CodeAgentExecution, 4},
		{CodeConflictingWrite, 5},
		{CodeContextLost, 130},
		{CodeInternal, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "test", nil).ExitCode; got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}
