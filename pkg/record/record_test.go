// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jllopis/capflow/pkg/errors"
)

func sampleRecord(runID, status string) *Record {
	rec := New(runID, "dynamic")
	now := time.Now().UTC()
	rec.Append(Entry{AgentID: "data_parser", Round: 1, Status: StatusCompleted, Provided: []string{"parse_data"}, StartedAt: now, FinishedAt: now.Add(time.Millisecond)})
	rec.Append(Entry{AgentID: "faq_filler", Round: 2, Status: StatusFailed, Error: "boom", StartedAt: now, FinishedAt: now})
	rec.Append(Entry{AgentID: "page_assembler", Status: StatusNotExecuted})
	rec.Finish(status, 2)
	return rec
}

func TestRecordFreezesOnFinish(t *testing.T) {
	rec := New("run-1", "dynamic")
	if !rec.Append(Entry{AgentID: "a", Status: StatusCompleted}) {
		t.Fatal("expected append before finish")
	}
	rec.Finish("completed", 1)
	if rec.Append(Entry{AgentID: "b", Status: StatusCompleted}) {
		t.Fatal("expected append after finish to be ignored")
	}
	rec.Finish("aborted", 9)
	if rec.Status != "completed" || rec.Rounds != 1 {
		t.Fatalf("finish must only apply once: %s %d", rec.Status, rec.Rounds)
	}
	if len(rec.Entries) != 1 || !rec.Finished() {
		t.Fatalf("unexpected record state: %+v", rec.Entries)
	}
}

func TestRecordQueries(t *testing.T) {
	rec := sampleRecord("run-1", "aborted")
	if got := rec.ExecutionOrder(); len(got) != 1 || got[0] != "data_parser" {
		t.Fatalf("unexpected execution order: %v", got)
	}
	if rec.Count(StatusNotExecuted) != 1 {
		t.Fatalf("expected 1 not executed entry")
	}
	e, ok := rec.Entry("faq_filler")
	if !ok || e.Error != "boom" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if d, _ := rec.Entry("data_parser"); d.Duration() != time.Millisecond {
		t.Fatalf("unexpected duration: %s", d.Duration())
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, r := range []*Record{sampleRecord("run-1", "completed"), sampleRecord("run-2", "deadlocked"), sampleRecord("run-3", "completed")} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.Entries))
	}

	list, err := store.List(ctx, Filter{Status: "completed"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "run-3" {
		t.Fatalf("expected most recent completed first, got %d records", len(list))
	}

	limited, _ := store.List(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply")
	}

	if _, err := store.Get(ctx, "missing"); errors.AsError(err).Code != errors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, New("", "dynamic")); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:record_store_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, sampleRecord("run-1", "completed")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, sampleRecord("run-2", "aborted")); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving twice replaces the entries instead of duplicating them.
	if err := store.Save(ctx, sampleRecord("run-1", "completed")); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "completed" || got.Rounds != 2 || got.Mode != "dynamic" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.Entries))
	}
	if got.Entries[0].AgentID != "data_parser" || len(got.Entries[0].Provided) != 1 {
		t.Fatalf("unexpected first entry: %+v", got.Entries[0])
	}
	if got.Entries[1].Status != StatusFailed || got.Entries[1].Error != "boom" {
		t.Fatalf("unexpected second entry: %+v", got.Entries[1])
	}
	if !got.Entries[2].StartedAt.IsZero() {
		t.Fatalf("not executed entry should have no start time")
	}

	aborted, err := store.List(ctx, Filter{Status: "aborted", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(aborted) != 1 || aborted[0].RunID != "run-2" {
		t.Fatalf("unexpected list result: %d", len(aborted))
	}

	if _, err := store.Get(ctx, "missing"); errors.AsError(err).Code != errors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
