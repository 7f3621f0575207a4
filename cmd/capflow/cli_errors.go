// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/errors"
)

// CLIError wraps a typed error with a hint for the user.
type CLIError struct {
	Typed *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Typed: e, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.Typed == nil {
		return "unknown error"
	}
	msg := e.Typed.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error { return e.Typed }

// ExitCode is the process exit status for the error.
func (e *CLIError) ExitCode() int {
	if e.Typed == nil {
		return 1
	}
	return e.Typed.ExitCode
}

// Print writes the error to w, as JSON when asJSON is set.
func (e *CLIError) Print(w io.Writer, asJSON bool) {
	if asJSON {
		payload := map[string]any{"error": map[string]any{
			"code":    e.Typed.Code,
			"message": e.Typed.Message,
			"hint":    e.Hint,
			"context": e.Typed.Context,
		}}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	fmt.Fprintf(w, "%s [%s]: %s\n", color.RedString("Error"), e.Typed.Code, e.Typed.Message)
	if e.Typed.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Typed.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with a hint.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithRecoverable(false)
	return NewCLIError(e, "run 'capflow help' for usage information")
}

// NewConfigError creates a configuration error with a hint.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)
	hint := "check your configuration values and CAPFLOW_ environment variables"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// NewInputError creates an error for an unreadable input file.
func NewInputError(err error, path string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "cannot read input", err).
		WithContext("path", path).
		WithRecoverable(false)
	return NewCLIError(e, "pass a JSON product record with --input")
}

// hintFor suggests a next step for typed run errors.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeDuplicateCapability:
		return "each capability must have exactly one provider"
	case errors.CodeUnsatisfiableDependency:
		return "run 'capflow graph' to inspect the dependency graph"
	case errors.CodeLLMError:
		return "check llm.provider, llm.model and the API key"
	case errors.CodeTimeout:
		return "raise scheduler.agent_timeout or llm.timeout"
	case errors.CodeContextLost:
		return "the run was interrupted"
	}
	return ""
}

// report prints err and returns the process exit status.
func (a *app) report(cmd *cobra.Command, err error) int {
	var cli *CLIError
	if !stderrors.As(err, &cli) {
		typed := errors.AsError(err)
		cli = NewCLIError(typed, hintFor(typed.Code))
	}
	cli.Print(cmd.ErrOrStderr(), a.flags.JSON)
	return cli.ExitCode()
}
