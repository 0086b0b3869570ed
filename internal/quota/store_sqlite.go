package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists usage counters in sqlite. Increments are single
// conditional-upsert statements (count = count + 1), so the database
// serializes concurrent adds and no application-level read-modify-write
// race can admit traffic past a limit.
type SQLiteStore struct {
	db *sql.DB
}

const counterSchema = `
CREATE TABLE IF NOT EXISTS usage_counters (
	user_id      TEXT    NOT NULL,
	kind         TEXT    NOT NULL,
	bucket_start INTEGER NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, kind, bucket_start)
);
`

// NewSQLiteStore opens (creating if needed) the counter database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open counter db: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent increments.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(counterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init counter schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordCall adds one call at the given instant via conditional upsert.
func (s *SQLiteStore) RecordCall(ctx context.Context, userID string, kind Kind, at time.Time) error {
	bucket := at.Truncate(time.Minute).Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_counters (user_id, kind, bucket_start, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(user_id, kind, bucket_start) DO UPDATE SET count = count + 1`,
		userID, string(kind), bucket)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// CountSince sums the buckets at or after since.
func (s *SQLiteStore) CountSince(ctx context.Context, userID string, kind Kind, since time.Time) (int, error) {
	cutoff := since.Truncate(time.Minute).Unix()
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM usage_counters
		WHERE user_id = ? AND kind = ? AND bucket_start >= ?`,
		userID, string(kind), cutoff).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count since: %w", err)
	}
	return total, nil
}

// Prune deletes buckets entirely before the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) error {
	cutoff := before.Truncate(time.Minute).Unix()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE bucket_start < ?`, cutoff); err != nil {
		return fmt.Errorf("prune counters: %w", err)
	}
	return nil
}
