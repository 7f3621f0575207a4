// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for capflow.
// Registration, merge and agent failures all carry an ErrorCode so telemetry
// and the CLI can classify them without string matching.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies capflow errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeContextLost indicates the run context was cancelled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates a text generation provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeDuplicateCapability indicates two agents claim the same capability.
	CodeDuplicateCapability ErrorCode = "DUPLICATE_CAPABILITY"

	// CodeUnsatisfiableDependency indicates a requirement without provider or a cycle.
	CodeUnsatisfiableDependency ErrorCode = "UNSATISFIABLE_DEPENDENCY"

	// CodeConflictingWrite indicates two writes to the same shared state key.
	CodeConflictingWrite ErrorCode = "CONFLICTING_WRITE"

	// CodeAgentExecution indicates an agent failed while running.
	CodeAgentExecution ErrorCode = "AGENT_EXECUTION"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	ExitCode    int // process exit status used by the CLI
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Attributes  map[string]string      `json:"attributes,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Context:     e.Context,
		Attributes:  e.Attributes,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		ExitCode:   codeToExitCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToExitCode maps error codes to process exit statuses.
func codeToExitCode(code ErrorCode) int {
	switch code {
	case CodeInvalidInput:
		return 2
	case CodeDuplicateCapability, CodeUnsatisfiableDependency:
		return 3
	case CodeAgentExecution, CodeTimeout, CodeLLMError:
		return 4
	case CodeConflictingWrite:
		return 5
	case CodeContextLost:
		return 130
	default:
		return 1
	}
}
