package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Querier is the subset of *sql.DB and *sql.Tx used by the queries.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Value is a stored document and its revision.
type Value struct {
	Data      string
	Revision  int64
	UpdatedAt int64
}

// GetValue returns the document stored under key.
// found is false when the key has never been written.
func GetValue(ctx context.Context, q Querier, key string) (v Value, found bool, err error) {
	row := q.QueryRowContext(ctx, `SELECT value, revision, updated_at FROM kv WHERE key = ?`, key)
	if err := row.Scan(&v.Data, &v.Revision, &v.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Value{}, false, nil
		}
		return Value{}, false, err
	}
	return v, true, nil
}

// PutValue replaces the document under key and returns its new revision.
// Revisions start at 1 and increase by one per write.
func PutValue(ctx context.Context, q Querier, key, data string) (int64, error) {
	var revision int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO kv (key, value, revision, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = kv.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision
	`, key, data, time.Now().UnixMilli()).Scan(&revision)
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// GetRevision returns the revision of key, or 0 if it has never been written.
func GetRevision(ctx context.Context, q Querier, key string) (int64, error) {
	var revision int64
	err := q.QueryRowContext(ctx, `SELECT revision FROM kv WHERE key = ?`, key).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return revision, nil
}
