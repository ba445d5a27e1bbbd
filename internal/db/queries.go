package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/fishscroll/internal/errors"
)

// Record is one named document in the records table.
type Record struct {
	Key       string
	Value     string
	UpdatedAt int64 // unix seconds
}

// GetRecord retrieves the record stored under key.
// Returns NOT_FOUND if no record exists.
func GetRecord(ctx context.Context, db *sql.DB, key string) (*Record, error) {
	row := db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM records WHERE key = ?`, key)

	var r Record
	err := row.Scan(&r.Key, &r.Value, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(key)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &r, nil
}

// PutRecord inserts or replaces the record under key in a single statement,
// so readers see either the old or the new value, never a mix.
func PutRecord(ctx context.Context, db *sql.DB, key, value string) error {
	query := `
		INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, value, time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteRecord removes the record under key. Deleting a missing key is not an error.
func DeleteRecord(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RecordSize returns the stored byte length of the value under key, or 0 if absent.
func RecordSize(ctx context.Context, db *sql.DB, key string) (int64, error) {
	var n sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT length(CAST(value AS BLOB)) FROM records WHERE key = ?`, key).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n.Int64, nil
}
