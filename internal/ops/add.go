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

// AddInput contains parameters for the Add operation.
type AddInput struct {
	Kind  string // default: context
	Title string // rules default to "New rule"
	Body  string // required
}

// Add creates a filled-in record without an edit session.
// The new record goes to the front of the list.
func Add(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, input AddInput) (*RecordOutput, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, errors.NewInvalidRequest("body is required")
	}

	kind := record.KindContext
	if input.Kind != "" {
		k, ok := record.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be one of: context, rule, skill")
		}
		kind = k
	}

	title := strings.TrimSpace(input.Title)
	if title == "" && kind == record.KindRule {
		title = record.DefaultRuleTitle
	}

	records, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}

	r := record.New(kind, title, input.Body)
	next := append([]record.Record{r}, records...)
	if err := saveRecords(ctx, st, next); err != nil {
		return nil, err
	}

	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	return &RecordOutput{Record: r, Total: len(next)}, nil
}
