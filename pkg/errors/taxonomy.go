// SPDX-License-Identifier: Apache-2.0
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// DuplicateCapabilityError reports a capability claimed by a second agent.
type DuplicateCapabilityError struct {
	Capability string
	Existing   string
	Claimant   string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("capability %s already provided by %q, cannot register %q",
		e.Capability, e.Existing, e.Claimant)
}

// UnsatisfiableDependencyError reports requirements that can never be met.
// Missing maps each unprovided capability to the agents requiring it.
// Cycle holds the agent path of a dependency cycle, first id repeated last.
type UnsatisfiableDependencyError struct {
	Missing map[string][]string
	Cycle   []string
}

func (e *UnsatisfiableDependencyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		caps := make([]string, 0, len(e.Missing))
		for c := range e.Missing {
			caps = append(caps, c)
		}
		sort.Strings(caps)
		for _, c := range caps {
			parts = append(parts, fmt.Sprintf("%s required by %s but never provided",
				c, strings.Join(e.Missing[c], ", ")))
		}
	}
	if len(e.Cycle) > 0 {
		parts = append(parts, "dependency cycle "+strings.Join(e.Cycle, " -> "))
	}
	if len(parts) == 0 {
		return "unsatisfiable dependency"
	}
	return "unsatisfiable dependency: " + strings.Join(parts, "; ")
}

// ConflictingWriteError reports two writes to the same shared state key.
type ConflictingWriteError struct {
	Capability string
	Agents     []string
}

func (e *ConflictingWriteError) Error() string {
	return fmt.Sprintf("conflicting write to %s by %s", e.Capability, strings.Join(e.Agents, ", "))
}

// AgentExecutionError wraps a failure raised while an agent ran.
type AgentExecutionError struct {
	AgentID string
	Round   int
	Timeout bool
	Err     error
}

func (e *AgentExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("agent %q timed out in round %d: %v", e.AgentID, e.Round, e.Err)
	}
	return fmt.Sprintf("agent %q failed in round %d: %v", e.AgentID, e.Round, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// AsError converts any error in the chain to a *Error.
// Typed capflow errors keep their code; anything else becomes CodeInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}

	var dup *DuplicateCapabilityError
	if stderrors.As(err, &dup) {
		return New(CodeDuplicateCapability, "duplicate capability provider", err).
			WithAttribute("capability", dup.Capability).
			WithContext("existing", dup.Existing).
			WithContext("claimant", dup.Claimant)
	}
	var unsat *UnsatisfiableDependencyError
	if stderrors.As(err, &unsat) {
		ke := New(CodeUnsatisfiableDependency, "unsatisfiable dependency", err)
		if len(unsat.Missing) > 0 {
			ke.WithContext("missing", unsat.Missing)
		}
		if len(unsat.Cycle) > 0 {
			ke.WithContext("cycle", unsat.Cycle)
		}
		return ke
	}
	var conflict *ConflictingWriteError
	if stderrors.As(err, &conflict) {
		return New(CodeConflictingWrite, "conflicting write", err).
			WithAttribute("capability", conflict.Capability).
			WithContext("agents", conflict.Agents)
	}
	var exec *AgentExecutionError
	if stderrors.As(err, &exec) {
		code := CodeAgentExecution
		if exec.Timeout {
			code = CodeTimeout
		}
		return New(code, "agent execution failed", err).
			WithAttribute("agent_id", exec.AgentID).
			WithContext("round", exec.Round).
			WithRecoverable(true)
	}
	return New(CodeInternal, "unexpected error", err)
}
