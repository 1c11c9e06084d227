package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpungsan/brain/internal/db"
)

func openDB(t *testing.T, dir string) *sql.DB {
	t.Helper()
	database, err := db.Init(dir)
	require.NoError(t, err)
	return database
}

func TestSQLiteStore_EmptyWhenNeverWritten(t *testing.T) {
	database := openDB(t, t.TempDir())
	defer database.Close()

	s := NewSQLiteStore(database, nil)
	list, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openDB(t, t.TempDir())
	defer database.Close()

	s := NewSQLiteStore(database, nil)
	calls := 0
	s.OnChange(func() { calls++ })

	list := []json.RawMessage{
		json.RawMessage(`{"id":"b","content":"second"}`),
		json.RawMessage(`{"id":"a","legacy":true}`),
	}
	require.NoError(t, s.Save(ctx, list))
	assert.Equal(t, 1, calls)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"id":"b","content":"second"}`, string(got[0]))
	assert.JSONEq(t, `{"id":"a","legacy":true}`, string(got[1]))

	rev, err := s.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
}

func TestSQLiteStore_SaveNilStoresEmptyArray(t *testing.T) {
	ctx := context.Background()
	database := openDB(t, t.TempDir())
	defer database.Close()

	s := NewSQLiteStore(database, nil)
	require.NoError(t, s.Save(ctx, nil))

	v, found, err := db.GetValue(ctx, database, Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "[]", v.Data)
}

func TestSQLiteStore_NonArrayDocumentLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	database := openDB(t, t.TempDir())
	defer database.Close()

	_, err := db.PutValue(ctx, database, Key, `{"not":"a list"}`)
	require.NoError(t, err)

	s := NewSQLiteStore(database, nil)
	list, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_CheckExternalFiltersByKey(t *testing.T) {
	ctx := context.Background()
	database := openDB(t, t.TempDir())
	defer database.Close()

	s := NewSQLiteStore(database, nil)
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	// Unrelated key: no notification
	_, err := db.PutValue(ctx, database, "settings", `{}`)
	require.NoError(t, err)
	changed, err := s.checkExternal(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	// Another writer touches the list key
	_, err = db.PutValue(ctx, database, Key, `[]`)
	require.NoError(t, err)
	changed, err = s.checkExternal(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int32(1), calls.Load())

	// Same revision again: nothing new
	changed, err = s.checkExternal(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	// Own save is already seen
	require.NoError(t, s.Save(ctx, nil))
	changed, err = s.checkExternal(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWatcher_NotifiesOnWriteFromAnotherConnection(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	panelDB := openDB(t, dir)
	defer panelDB.Close()
	producerDB := openDB(t, dir)
	defer producerDB.Close()

	panelStore := NewSQLiteStore(panelDB, nil)
	producerStore := NewSQLiteStore(producerDB, nil)

	var calls atomic.Int32
	panelStore.OnChange(func() { calls.Add(1) })

	w, err := NewWatcher(panelStore, dir, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, producerStore.Save(ctx, []json.RawMessage{json.RawMessage(`{"id":"x"}`)}))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	list, err := panelStore.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	database := openDB(t, dir)
	defer database.Close()

	w, err := NewWatcher(NewSQLiteStore(database, nil), dir, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))
	w.Stop()
	w.Stop()
}

func TestIsDatabaseFile(t *testing.T) {
	assert.True(t, isDatabaseFile("/x/brain.db"))
	assert.True(t, isDatabaseFile("/x/brain.db-wal"))
	assert.True(t, isDatabaseFile("brain.db-shm"))
	assert.False(t, isDatabaseFile("/x/config.json"))
}
