// Package store is the persistence contract every execution context shares:
// one named list, replaced whole on every write, with change notifications.
package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Key is the single persisted key holding the record list.
const Key = "memories"

// Store persists the raw record list.
//
// Writes replace the whole list; there is no row-level update and no
// transaction across Load and Save, so two writers working from the same
// snapshot can lose one another's changes (last writer wins).
// OnChange callbacks fire for every write, including the subscriber's own,
// so they must tolerate redundant notifications.
type Store interface {
	Load(ctx context.Context) ([]json.RawMessage, error)
	Save(ctx context.Context, list []json.RawMessage) error
	OnChange(fn func()) (unsubscribe func())
}

// subscribers is an ordered set of change callbacks.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  []subscriber
}

type subscriber struct {
	id int
	fn func()
}

func (s *subscribers) add(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.fns = append(s.fns, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.fns {
				if sub.id == id {
					s.fns = append(s.fns[:i:i], s.fns[i+1:]...)
					return
				}
			}
		})
	}
}

// notify calls every callback outside the lock, so callbacks may
// subscribe, unsubscribe, or touch the store.
func (s *subscribers) notify() {
	s.mu.Lock()
	fns := make([]func(), len(s.fns))
	for i, sub := range s.fns {
		fns[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

func cloneList(list []json.RawMessage) []json.RawMessage {
	if list == nil {
		return nil
	}
	out := make([]json.RawMessage, len(list))
	for i, entry := range list {
		out[i] = append(json.RawMessage(nil), entry...)
	}
	return out
}
