// Package store provides the persistent side of a run: the assignment
// table that drives it and the append-only booking log it writes.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/court-booker/internal/types"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Setup creates the tables the agent needs if they do not exist yet.
func (db *DB) Setup(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS assignments (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			email TEXT NOT NULL,
			credentials_ref TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL,
			resource_url TEXT NOT NULL,
			weekday TEXT NOT NULL,
			time_of_day TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS booking_log (
			id SERIAL PRIMARY KEY,
			logged_at TIMESTAMPTZ NOT NULL,
			account_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			slot_date TEXT NOT NULL,
			slot_time TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS run_summaries (
			run_id UUID PRIMARY KEY,
			generated_at TIMESTAMPTZ NOT NULL,
			summary JSONB NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("failed to set up schema: %w", err)
	}
	return nil
}

// ReadAssignments returns the active assignment rows.
func (db *DB) ReadAssignments(ctx context.Context) ([]types.Assignment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT account_id, email, credentials_ref, resource_id, resource_url, weekday, time_of_day, notes
		 FROM assignments WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignments: %w", err)
	}
	defer rows.Close()

	var assignments []types.Assignment
	for rows.Next() {
		var a types.Assignment
		if err := rows.Scan(&a.AccountID, &a.Email, &a.CredentialsRef, &a.ResourceID, &a.ResourceURL, &a.Weekday, &a.TimeOfDay, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Append writes one attempt entry to the booking log. Implements audit.Sink.
func (db *DB) Append(ctx context.Context, entry types.LogEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO booking_log (logged_at, account_id, resource_id, slot_date, slot_time, status, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Timestamp, entry.AccountID, entry.ResourceID, entry.Date, entry.Time, string(entry.Status), entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to append booking log entry: %w", err)
	}
	return nil
}

// ReadRecent returns up to n booking log entries, newest first. Implements
// audit.Sink.
func (db *DB) ReadRecent(ctx context.Context, n int) ([]types.LogEntry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT logged_at, account_id, resource_id, slot_date, slot_time, status, detail
		 FROM booking_log ORDER BY logged_at DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read booking log: %w", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		var e types.LogEntry
		var status string
		if err := rows.Scan(&e.Timestamp, &e.AccountID, &e.ResourceID, &e.Date, &e.Time, &status, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan booking log entry: %w", err)
		}
		e.Status = types.EntryStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveSummary stores the reconciled run summary as JSON.
func (db *DB) SaveSummary(ctx context.Context, summary types.RunSummary) error {
	jsonBytes, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO run_summaries (run_id, generated_at, summary)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO UPDATE SET generated_at = $2, summary = $3`,
		summary.RunID, summary.GeneratedAt, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}
