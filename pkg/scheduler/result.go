// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/jllopis/capflow/pkg/bus"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/state"
)

// Status is the terminal outcome of a run.
type Status string

const (
	Completed             Status = "completed"
	Deadlocked            Status = "deadlocked"
	MaxIterationsExceeded Status = "max_iterations_exceeded"
	Aborted               Status = "aborted"
)

// Blocked is an agent that never became ready.
type Blocked struct {
	AgentID string         `json:"agent_id"`
	Missing capability.Set `json:"missing"`
}

// Result is what a run hands back to the caller.
type Result struct {
	RunID  string         `json:"run_id"`
	Mode   string         `json:"mode"`
	Status Status         `json:"status"`
	State  state.State    `json:"state"`
	Record *record.Record `json:"record"`
	// Rounds lists the agent ids dispatched in each round.
	Rounds  [][]string `json:"rounds"`
	Blocked []Blocked  `json:"blocked,omitempty"`
	Failed  []string   `json:"failed,omitempty"`
	Bus     *bus.Bus   `json:"-"`
}

// RoundCount returns the number of executed rounds.
func (r *Result) RoundCount() int { return len(r.Rounds) }

// ExecutionOrder returns completed agent ids in completion order.
func (r *Result) ExecutionOrder() []string {
	if r.Record == nil {
		return nil
	}
	return r.Record.ExecutionOrder()
}

// Executed returns the number of agents that completed.
func (r *Result) Executed() int {
	if r.Record == nil {
		return 0
	}
	return r.Record.Count(record.StatusCompleted)
}
