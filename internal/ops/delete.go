package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
	Total   int    `json:"total"`
}

// Delete removes a record permanently.
func Delete(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, id string) (*DeleteOutput, error) {
	next, _, err := mutate(ctx, st, id, func(records []record.Record, _ int) []record.Record {
		return record.Without(records, id)
	})
	if err != nil {
		return nil, err
	}

	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	return &DeleteOutput{
		Deleted: true,
		ID:      id,
		Total:   len(next),
	}, nil
}
