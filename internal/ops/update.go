package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// UpdateInput contains parameters for the Update operation.
// Nil fields are left unchanged.
type UpdateInput struct {
	ID    string  // required
	Title *string // optional
	Kind  *string // optional
	Body  *string // optional; empty deletes the record
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	Record  *record.Record `json:"record,omitempty"`
	Deleted bool           `json:"deleted"`
	Total   int            `json:"total"`
}

// Update applies an edit to a record, with the same outcome as committing
// an edit session: an empty body removes the record.
func Update(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, input UpdateInput) (*UpdateOutput, error) {
	var kind record.Kind
	if input.Kind != nil {
		k, ok := record.ParseKind(*input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be one of: context, rule, skill")
		}
		kind = k
	}
	if input.Title == nil && input.Kind == nil && input.Body == nil {
		return nil, errors.NewInvalidRequest("nothing to update: set title, kind or body")
	}

	deleted := input.Body != nil && strings.TrimSpace(*input.Body) == ""

	next, i, err := mutate(ctx, st, input.ID, func(records []record.Record, i int) []record.Record {
		if deleted {
			return record.Without(records, input.ID)
		}
		r := &records[i]
		if input.Title != nil {
			r.Title = *input.Title
		}
		if kind != "" {
			r.Kind = kind
		}
		if input.Body != nil {
			r.Body = *input.Body
		}
		return records
	})
	if err != nil {
		return nil, err
	}

	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	out := &UpdateOutput{Deleted: deleted, Total: len(next)}
	if !deleted {
		r := next[i]
		out.Record = &r
	}
	return out, nil
}
