package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/db"
	"github.com/hpungsan/brain/internal/logging"
)

// SQLiteStore keeps the list as one JSON document in the kv table.
// Every process opening the same database file sees the same list.
type SQLiteStore struct {
	db     *sql.DB
	key    string
	logger *zap.Logger
	subs   subscribers

	// seen is the last revision this process wrote or observed.
	seen atomic.Int64
}

// NewSQLiteStore wraps an initialized database (see db.Init).
func NewSQLiteStore(database *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     database,
		key:    Key,
		logger: logging.OrNop(logger),
	}
}

// Load returns the stored list. A key that was never written, or a
// document that is not a JSON array, loads as an empty list.
func (s *SQLiteStore) Load(ctx context.Context) ([]json.RawMessage, error) {
	v, found, err := db.GetValue(ctx, s.db, s.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(v.Data), &list); err != nil {
		s.logger.Warn("stored list is not a JSON array; treating as empty",
			zap.String("key", s.key), zap.Int64("revision", v.Revision), zap.Error(err))
		return nil, nil
	}
	return list, nil
}

// Save replaces the stored list and notifies local subscribers.
func (s *SQLiteStore) Save(ctx context.Context, list []json.RawMessage) error {
	if list == nil {
		list = []json.RawMessage{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	rev, err := db.PutValue(ctx, s.db, s.key, string(data))
	if err != nil {
		return err
	}
	s.seen.Store(rev)
	s.logger.Debug("list saved", zap.String("key", s.key), zap.Int64("revision", rev), zap.Int("records", len(list)))

	s.subs.notify()
	return nil
}

// OnChange registers fn for local saves and, while a Watcher runs,
// for saves made by other processes.
func (s *SQLiteStore) OnChange(fn func()) func() {
	return s.subs.add(fn)
}

// Revision returns the current revision of the list key.
func (s *SQLiteStore) Revision(ctx context.Context) (int64, error) {
	return db.GetRevision(ctx, s.db, s.key)
}

// checkExternal notifies subscribers if the list key moved past the last
// revision this process saw. Writes to other keys leave it unchanged.
func (s *SQLiteStore) checkExternal(ctx context.Context) (bool, error) {
	rev, err := s.Revision(ctx)
	if err != nil {
		return false, err
	}
	if s.seen.Swap(rev) == rev {
		return false, nil
	}
	s.logger.Debug("external change detected", zap.String("key", s.key), zap.Int64("revision", rev))
	s.subs.notify()
	return true, nil
}
