package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// Toggle flips whether a record is included in assembly.
func Toggle(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, id string) (*RecordOutput, error) {
	return flip(ctx, st, n, logger, id, func(r *record.Record) { r.Active = !r.Active })
}

// Pin flips whether a record is shown ahead of unpinned ones.
func Pin(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, id string) (*RecordOutput, error) {
	return flip(ctx, st, n, logger, id, func(r *record.Record) { r.Pinned = !r.Pinned })
}

func flip(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, id string, fn func(*record.Record)) (*RecordOutput, error) {
	next, i, err := mutate(ctx, st, id, func(records []record.Record, i int) []record.Record {
		fn(&records[i])
		return records
	})
	if err != nil {
		return nil, err
	}

	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	return &RecordOutput{Record: next[i], Total: len(next)}, nil
}
