// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Request outcomes.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("telemetry store closed")

// Record is one chat request.
type Record struct {
	ID            string
	Model         string
	StartedAt     time.Time
	FirstFragment time.Duration
	Duration      time.Duration
	Attempts      int
	HistoryTurns  int
	Fragments     int
	Chars         int
	Malformed     int
	Status        string
	Error         string
}

// Summary aggregates every recorded request.
type Summary struct {
	Requests         int
	Succeeded        int
	Failed           int
	Canceled         int
	Chars            int
	AvgFirstFragment time.Duration
	AvgDuration      time.Duration
}

// Store is the SQLite request log. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores rec, replacing any previous row with the same ID.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if rec.Status == "" {
		rec.Status = StatusOK
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO requests
			(id, model, started_at, first_fragment_ms, duration_ms, attempts,
			 history_turns, fragments, chars, malformed, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Model, rec.StartedAt.UnixMilli(), rec.FirstFragment.Milliseconds(),
		rec.Duration.Milliseconds(), rec.Attempts, rec.HistoryTurns, rec.Fragments,
		rec.Chars, rec.Malformed, rec.Status, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, started_at, first_fragment_ms, duration_ms, attempts,
		       history_turns, fragments, chars, malformed, status, error
		FROM requests
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                       Record
			started, first, elapsed int64
		)
		if err := rows.Scan(&r.ID, &r.Model, &started, &first, &elapsed, &r.Attempts,
			&r.HistoryTurns, &r.Fragments, &r.Chars, &r.Malformed, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FirstFragment = time.Duration(first) * time.Millisecond
		r.Duration = time.Duration(elapsed) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates all records.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, ErrClosed
	}

	var (
		sum              Summary
		avgFirst, avgDur sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'canceled' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(chars), 0),
		       AVG(CASE WHEN fragments > 0 THEN first_fragment_ms END),
		       AVG(CASE WHEN status = 'ok' THEN duration_ms END)
		FROM requests
	`).Scan(&sum.Requests, &sum.Succeeded, &sum.Failed, &sum.Canceled, &sum.Chars, &avgFirst, &avgDur)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize requests: %w", err)
	}
	if avgFirst.Valid {
		sum.AvgFirstFragment = time.Duration(avgFirst.Float64 * float64(time.Millisecond))
	}
	if avgDur.Valid {
		sum.AvgDuration = time.Duration(avgDur.Float64 * float64(time.Millisecond))
	}
	return sum, nil
}

// Purge deletes records older than cutoff and returns how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE started_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge requests: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
