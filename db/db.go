// Package db provides the Postgres connection helper, schema migration, and the rate/channel
// table accessors. Supabase projects are plain Postgres underneath, so the bot talks to the
// hosted tables through the pgx driver rather than the REST gateway.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// RateRecord is one person's registered hourly rate (table users).
type RateRecord struct {
	ID   string
	Rate float64
	Name string
}

// TrackedChannel is a voice channel registered for rate tracking (table channels).
type TrackedChannel struct {
	ID   string
	Name string
}

// Connect opens a Postgres connection pool for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for the users and channels tables.
// It is the fallback used when versioned migrations cannot run (e.g. tables created by hand in Supabase).
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id TEXT PRIMARY KEY,
			name TEXT
		)`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ DEFAULT NOW()`,
		`ALTER TABLE channels ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ DEFAULT NOW()`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// Store reads and writes the users and channels tables.
type Store struct{ DB *sql.DB }

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// UpsertRate stores a person's rate; the same id overwrites rate and name (last write wins).
func (s *Store) UpsertRate(ctx context.Context, r RateRecord) error {
	q := `INSERT INTO users(id, rate, name, updated_at)
		  VALUES($1,$2,$3,NOW())
		  ON CONFLICT(id) DO UPDATE SET
		    rate=EXCLUDED.rate,
		    name=EXCLUDED.name,
		    updated_at=NOW()`
	if _, err := s.DB.ExecContext(ctx, q, r.ID, r.Rate, r.Name); err != nil {
		return fmt.Errorf("upsert rate %s: %w", r.ID, err)
	}
	return nil
}

// ListRates returns every registered rate record.
func (s *Store) ListRates(ctx context.Context) ([]RateRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, rate, COALESCE(name, '') FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err), slog.String("component", "db"))
		}
	}()
	out := make([]RateRecord, 0)
	for rows.Next() {
		var r RateRecord
		if err := rows.Scan(&r.ID, &r.Rate, &r.Name); err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertChannel registers a channel for tracking; an existing id only has its name updated.
func (s *Store) UpsertChannel(ctx context.Context, c TrackedChannel) error {
	q := `INSERT INTO channels(id, name, updated_at)
		  VALUES($1,$2,NOW())
		  ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, updated_at=NOW()`
	if _, err := s.DB.ExecContext(ctx, q, c.ID, c.Name); err != nil {
		return fmt.Errorf("upsert channel %s: %w", c.ID, err)
	}
	return nil
}

// ListChannels returns all tracked channels ordered by name.
func (s *Store) ListChannels(ctx context.Context) ([]TrackedChannel, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, COALESCE(name, '') FROM channels ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("select channels: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err), slog.String("component", "db"))
		}
	}()
	out := make([]TrackedChannel, 0)
	for rows.Next() {
		var c TrackedChannel
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan channels: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IsTracked reports whether channelID is registered in the channels table.
func (s *Store) IsTracked(ctx context.Context, channelID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM channels WHERE id=$1)`, channelID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("lookup channel %s: %w", channelID, err)
	}
	return ok, nil
}
