// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package record keeps the per-run execution log and persists it for history
// queries.
package record

import (
	"sync"
	"time"
)

// EntryStatus is the outcome of one agent execution.
type EntryStatus string

const (
	StatusCompleted   EntryStatus = "completed"
	StatusFailed      EntryStatus = "failed"
	StatusTimeout     EntryStatus = "timeout"
	StatusSkipped     EntryStatus = "skipped"
	StatusNotExecuted EntryStatus = "not_executed"
)

// Entry describes one agent execution, or its absence.
type Entry struct {
	AgentID    string      `json:"agent_id"`
	Round      int         `json:"round"`
	Status     EntryStatus `json:"status"`
	Provided   []string    `json:"provided,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// Duration returns the execution time of the entry.
func (e Entry) Duration() time.Duration {
	if e.StartedAt.IsZero() || e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Record is the append-only log of a single run. Finish freezes it.
type Record struct {
	mu         sync.Mutex
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	Rounds     int       `json:"rounds"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Entries    []Entry   `json:"entries"`
	finished   bool
}

// New starts a record for runID.
func New(runID, mode string) *Record {
	return &Record{RunID: runID, Mode: mode, StartedAt: time.Now().UTC()}
}

// Append adds e and reports whether it was accepted.
func (r *Record) Append(e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.Entries = append(r.Entries, e)
	return true
}

// Finish sets the final status and freezes the record. Later calls are ignored.
func (r *Record) Finish(status string, rounds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.Status = status
	r.Rounds = rounds
	r.FinishedAt = time.Now().UTC()
	r.finished = true
}

// Finished reports whether Finish was called.
func (r *Record) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Copy returns a detached snapshot of the record.
func (r *Record) Copy() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Record{
		RunID:      r.RunID,
		Mode:       r.Mode,
		Status:     r.Status,
		Rounds:     r.Rounds,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Entries:    append([]Entry(nil), r.Entries...),
		finished:   r.finished,
	}
}

// ExecutionOrder returns the ids of completed agents in completion order.
func (r *Record) ExecutionOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.Entries {
		if e.Status == StatusCompleted {
			out = append(out, e.AgentID)
		}
	}
	return out
}

// Count returns the number of entries with status s.
func (r *Record) Count(s EntryStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Entry returns the last entry for agentID.
func (r *Record) Entry(agentID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if r.Entries[i].AgentID == agentID {
			return r.Entries[i], true
		}
	}
	return Entry{}, false
}
