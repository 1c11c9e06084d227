package ops

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// RecordOutput is returned by operations that create or change one record.
type RecordOutput struct {
	Record record.Record `json:"record"`
	Total  int           `json:"total"`
}

// loadRaw reads the persisted list, wrapping failures as STORE_UNAVAILABLE.
func loadRaw(ctx context.Context, st store.Store) ([]json.RawMessage, error) {
	raw, err := st.Load(ctx)
	if err != nil {
		return nil, storeErr("load", err)
	}
	return raw, nil
}

// loadRecords reads and normalizes the persisted list. When normalization
// had to generate ids or timestamps the list is saved back, so the ids
// returned here address the same records in later calls. A failed
// write-back is not an error; the ids are then only valid for this call.
func loadRecords(ctx context.Context, st store.Store) ([]record.Record, error) {
	raw, err := loadRaw(ctx, st)
	if err != nil {
		return nil, err
	}
	records, generated := record.NormalizeGenerated(raw)
	if generated {
		_ = saveRecords(ctx, st, records)
	}
	return records, nil
}

// saveRecords replaces the persisted list with records.
func saveRecords(ctx context.Context, st store.Store, records []record.Record) error {
	raw, err := record.Encode(records)
	if err != nil {
		return errors.NewInternal(err)
	}
	return saveRaw(ctx, st, raw)
}

func saveRaw(ctx context.Context, st store.Store, raw []json.RawMessage) error {
	if err := st.Save(ctx, raw); err != nil {
		return storeErr("save", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelled(op)
	}
	return errors.NewStoreUnavailable(op, err)
}

// mutate loads the normalized list, applies fn to the record with the given id,
// and saves the result. fn returns the replacement list.
// Unknown ids return NOT_FOUND without writing.
func mutate(ctx context.Context, st store.Store, id string, fn func(records []record.Record, i int) []record.Record) ([]record.Record, int, error) {
	if id == "" {
		return nil, -1, errors.NewInvalidRequest("id is required")
	}
	records, err := loadRecords(ctx, st)
	if err != nil {
		return nil, -1, err
	}
	i := record.Find(records, id)
	if i < 0 {
		return nil, -1, errors.NewNotFound(id)
	}
	next := fn(records, i)
	if err := saveRecords(ctx, st, next); err != nil {
		return nil, -1, err
	}
	return next, i, nil
}
