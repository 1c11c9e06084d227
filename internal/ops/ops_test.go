package ops

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// seed builds a memory store holding records in the given order.
func seed(t *testing.T, records ...record.Record) *store.MemoryStore {
	t.Helper()
	raw, err := record.Encode(records)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return store.NewMemoryStore(raw...)
}

// stored returns the normalized persisted list.
func stored(t *testing.T, st store.Store) []record.Record {
	t.Helper()
	raw, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return record.Normalize(raw)
}

func rec(id string, kind record.Kind, title, body string, createdAt int64) record.Record {
	return record.Record{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Active:    true,
		CreatedAt: createdAt,
	}
}

// countingBus returns a bus with one subscriber and a pointer to its call count.
func countingBus() (*bus.Bus, *int) {
	b := bus.New()
	calls := 0
	b.Subscribe(func(m bus.Message) {
		if m.Action == bus.ActionRefresh {
			calls++
		}
	})
	return b, &calls
}

func rawEntries(t *testing.T, st store.Store) []map[string]any {
	t.Helper()
	raw, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			t.Fatalf("entry %d is not an object: %v", i, err)
		}
	}
	return out
}
