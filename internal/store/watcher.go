package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/db"
)

// DefaultDebounce batches bursts of file events (a WAL commit touches
// several files) into one revision check.
const DefaultDebounce = 100 * time.Millisecond

// Watcher turns writes made by other processes into OnChange notifications.
// It watches the database directory and, after a burst of events on the
// database files, re-reads the revision of the list key. Only a changed
// revision of that key notifies subscribers.
type Watcher struct {
	mu       sync.Mutex
	store    *SQLiteStore
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	pending  bool
}

// NewWatcher creates a watcher for the database in dir.
// A zero debounce uses DefaultDebounce.
func NewWatcher(s *SQLiteStore, dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    s,
		dir:      dir,
		watcher:  fw,
		debounce: debounce,
		logger:   s.logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start records the current revision and begins watching in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	rev, err := w.store.Revision(ctx)
	if err != nil {
		w.logger.Warn("watcher: could not read initial revision", zap.Error(err))
	} else {
		w.store.seen.Store(rev)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watcher: watching", zap.String("dir", w.dir))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("watcher: close failed", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if isDatabaseFile(event.Name) && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.pending = true
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", zap.Error(err))

		case <-ticker.C:
			if !w.pending {
				continue
			}
			w.pending = false
			if _, err := w.store.checkExternal(ctx); err != nil {
				w.logger.Warn("watcher: revision check failed", zap.Error(err))
			}
		}
	}
}

// isDatabaseFile matches brain.db and its -wal / -shm companions.
func isDatabaseFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), db.FileName)
}
