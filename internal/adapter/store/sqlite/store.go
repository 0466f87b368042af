// Package sqlite provides a durable DeliveryStore backed by SQLite, so
// idempotency records survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements the store.DeliveryStore interface using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize writers; the deliveries table sees concurrent inserts.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db, now: time.Now}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- Processed webhook deliveries, kept until their TTL elapses
	CREATE TABLE IF NOT EXISTS deliveries (
		delivery_id TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_expires ON deliveries(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Seen reports whether an unexpired record exists for the delivery.
func (s *Store) Seen(ctx context.Context, deliveryID string) (bool, error) {
	query := `SELECT expires_at FROM deliveries WHERE delivery_id = ?`

	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, deliveryID).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query delivery: %w", err)
	}

	return s.now().Unix() <= expiresAt, nil
}

// MarkProcessed performs a first-writer-wins conditional insert. The expired
// row, if any, is purged first so a stale record does not block a retry.
func (s *Store) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	purge := `DELETE FROM deliveries WHERE delivery_id = ? AND expires_at < ?`
	if _, err := s.db.ExecContext(ctx, purge, deliveryID, s.now().Unix()); err != nil {
		return false, fmt.Errorf("failed to purge expired delivery: %w", err)
	}

	insert := `INSERT OR IGNORE INTO deliveries (delivery_id, expires_at) VALUES (?, ?)`
	result, err := s.db.ExecContext(ctx, insert, deliveryID, s.now().Add(ttl).Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert delivery: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected == 1, nil
}

// PurgeExpired removes all records past their TTL. Callers may run it
// periodically to keep the table small; correctness does not depend on it.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE expires_at < ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired deliveries: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
