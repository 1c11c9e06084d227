package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store. Used by tests and by callers that
// embed the panel without a database.
type MemoryStore struct {
	mu      sync.Mutex
	list    []json.RawMessage
	saves   int
	loadErr error
	saveErr error
	subs    subscribers
}

// NewMemoryStore returns a store holding a copy of initial.
func NewMemoryStore(initial ...json.RawMessage) *MemoryStore {
	return &MemoryStore{list: cloneList(initial)}
}

// Load returns a copy of the stored list.
func (m *MemoryStore) Load(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return cloneList(m.list), nil
}

// Save replaces the stored list and notifies subscribers.
func (m *MemoryStore) Save(ctx context.Context, list []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.saveErr != nil {
		err := m.saveErr
		m.mu.Unlock()
		return err
	}
	m.list = cloneList(list)
	m.saves++
	m.mu.Unlock()

	m.subs.notify()
	return nil
}

// OnChange registers fn to run after every successful Save.
func (m *MemoryStore) OnChange(fn func()) func() {
	return m.subs.add(fn)
}

// FailLoads makes every Load return err until called with nil.
func (m *MemoryStore) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// FailSaves makes every Save return err until called with nil.
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Subscribers returns the number of registered change callbacks.
func (m *MemoryStore) Subscribers() int {
	return m.subs.count()
}
