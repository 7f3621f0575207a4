// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/capflow/pkg/errors"
)

// Store persists finished records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, runID string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
}

// Filter limits history queries. Results are most recent first.
type Filter struct {
	Status string
	Mode   string
	Limit  int
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]*Record
}

// NewMemoryStore returns an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Save stores a copy of rec, replacing any record with the same run id.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.RunID == "" {
		return errors.New(errors.CodeInvalidInput, "record run id is required", nil)
	}
	cp := rec.Copy()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cp.RunID]; !ok {
		s.order = append(s.order, cp.RunID)
	}
	s.records[cp.RunID] = cp
	return nil
}

// Get returns the record for runID.
func (s *MemoryStore) Get(_ context.Context, runID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[runID]
	if !ok {
		return nil, notFound(runID)
	}
	return rec.Copy(), nil
}

// List returns filtered records, most recent first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if !filter.matches(rec) {
			continue
		}
		out = append(out, rec.Copy())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f Filter) matches(rec *Record) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Mode != "" && rec.Mode != f.Mode {
		return false
	}
	return true
}

func notFound(runID string) error {
	return errors.New(errors.CodeNotFound, "run not found", nil).WithContext("run_id", runID)
}

// normalizeTime ensures timestamps are stored in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
