// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and prepares the schema.
// An empty path uses a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, *sql.DB, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = "file:capflow_history?mode=memory&cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// NewSQLiteStore creates a SQLite-backed store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes rec and its entries, replacing a previous save of the same run.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) (err error) {
	if rec == nil || rec.RunID == "" {
		return stderrors.New("record run id is required")
	}
	cp := rec.Copy()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO capflow_runs (run_id, mode, status, rounds, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.RunID, cp.Mode, cp.Status, cp.Rounds, normalizeTime(cp.StartedAt), nullTime(cp.FinishedAt)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM capflow_run_entries WHERE run_id = ?`, cp.RunID); err != nil {
		return err
	}
	for i, e := range cp.Entries {
		provided, mErr := json.Marshal(e.Provided)
		if mErr != nil {
			err = mErr
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO capflow_run_entries (
				run_id, seq, agent_id, round, status, provided_json, error_text, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			cp.RunID, i, e.AgentID, e.Round, string(e.Status), string(provided), e.Error,
			nullTime(e.StartedAt), nullTime(e.FinishedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get loads the record for runID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, runQuery+` WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	recs, err := s.scanRuns(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, notFound(runID)
	}
	return recs[0], nil
}

// List returns records matching the filter, most recent first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query := runQuery
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	if filter.Mode != "" {
		addFilter("mode = ?", filter.Mode)
	}
	query += where + " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return s.scanRuns(ctx, rows)
}

const runQuery = `SELECT run_id, mode, status, rounds, started_at, finished_at FROM capflow_runs`

func (s *SQLiteStore) scanRuns(ctx context.Context, rows *sql.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		var (
			rec      Record
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(&rec.RunID, &rec.Mode, &rec.Status, &rec.Rounds, &started, &finished); err != nil {
			rows.Close()
			return nil, err
		}
		rec.StartedAt = started.Time
		rec.FinishedAt = finished.Time
		rec.finished = finished.Valid
		recs = append(recs, &rec)
	}
	err := rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	// Entries are loaded after the run cursor is closed; a shared-cache
	// in-memory database may serve a single connection.
	for _, rec := range recs {
		entries, err := s.loadEntries(ctx, rec.RunID)
		if err != nil {
			return nil, err
		}
		rec.Entries = entries
	}
	return recs, nil
}

func (s *SQLiteStore) loadEntries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, round, status, provided_json, error_text, started_at, finished_at
		FROM capflow_run_entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			status       string
			providedJSON string
			started      sql.NullTime
			finished     sql.NullTime
		)
		if err := rows.Scan(&e.AgentID, &e.Round, &status, &providedJSON, &e.Error, &started, &finished); err != nil {
			return nil, err
		}
		e.Status = EntryStatus(status)
		if providedJSON != "" && providedJSON != "null" {
			if err := json.Unmarshal([]byte(providedJSON), &e.Provided); err != nil {
				return nil, err
			}
		}
		e.StartedAt = started.Time
		e.FinishedAt = finished.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS capflow_runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			rounds INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS capflow_run_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			status TEXT NOT NULL,
			provided_json TEXT,
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_capflow_runs_status ON capflow_runs(status);
		CREATE INDEX IF NOT EXISTS idx_capflow_entries_run ON capflow_run_entries(run_id);
	`)
	return err
}
