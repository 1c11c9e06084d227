package ops

import (
	"context"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Kind string // optional: context, rule or skill
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items []record.Record `json:"items"`
	Total int             `json:"total"`
}

// List returns the normalized records in display order, optionally
// limited to one kind. Total counts every record regardless of kind.
func List(ctx context.Context, st store.Store, input ListInput) (*ListOutput, error) {
	records, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}

	items := record.SortForDisplay(records)
	if input.Kind != "" {
		kind, ok := record.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be one of: context, rule, skill")
		}
		items = record.FilterKind(items, kind)
	}
	if items == nil {
		items = []record.Record{}
	}

	return &ListOutput{
		Items: items,
		Total: len(records),
	}, nil
}
