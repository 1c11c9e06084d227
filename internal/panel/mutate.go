package panel

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
)

// errUnknownID makes commit skip the save. Toggling, pinning or removing a
// record the panel no longer holds does nothing.
var errUnknownID = stderrors.New("panel: unknown id")

// commit saves fn's result and adopts it as the in-memory list.
// Caller holds writeMu. fn receives a copy it may modify.
func (c *Controller) commit(ctx context.Context, op string, fn func([]record.Record) ([]record.Record, error)) ([]record.Record, error) {
	c.mu.Lock()
	current := slices.Clone(c.records)
	c.mu.Unlock()

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	raw, err := record.Encode(next)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := c.st.Save(ctx, raw); err != nil {
		c.logger.Warn("save failed", zap.String("op", op), zap.Error(err))
		return nil, errors.NewStoreUnavailable("save", err)
	}

	c.mu.Lock()
	c.records = next
	c.writeSeq++
	c.touch()
	c.mu.Unlock()

	c.logger.Debug("saved", zap.String("op", op), zap.Int("records", len(next)))
	return next, nil
}

func (c *Controller) update(ctx context.Context, op, id string, fn func(*record.Record)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.commit(ctx, op, func(records []record.Record) ([]record.Record, error) {
		i := record.Find(records, id)
		if i < 0 {
			return nil, errUnknownID
		}
		fn(&records[i])
		return records, nil
	})
	if stderrors.Is(err, errUnknownID) {
		c.logger.Debug("ignoring unknown id", zap.String("op", op), zap.String("id", id))
		return nil
	}
	return err
}

// ToggleActive flips whether a record is included in assembly.
// An unknown id is ignored.
func (c *Controller) ToggleActive(ctx context.Context, id string) error {
	return c.update(ctx, "toggle", id, func(r *record.Record) { r.Active = !r.Active })
}

// TogglePinned flips whether a record is shown ahead of unpinned ones.
func (c *Controller) TogglePinned(ctx context.Context, id string) error {
	return c.update(ctx, "pin", id, func(r *record.Record) { r.Pinned = !r.Pinned })
}

// Remove deletes a record. Removing the record under edit closes the session.
// An unknown id is ignored.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.remove(ctx, id)
}

// remove is Remove for callers already holding writeMu.
func (c *Controller) remove(ctx context.Context, id string) error {
	_, err := c.commit(ctx, "delete", func(records []record.Record) ([]record.Record, error) {
		if record.Find(records, id) < 0 {
			return nil, errUnknownID
		}
		return record.Without(records, id), nil
	})
	if err != nil && !stderrors.Is(err, errUnknownID) {
		return err
	}

	c.mu.Lock()
	if c.edit != nil && c.edit.ID == id {
		c.edit = nil
		c.touch()
	}
	c.mu.Unlock()
	return nil
}

// Add creates an empty record of kind at the front of the list and opens
// an edit session on it. An open session is cancelled first.
func (c *Controller) Add(ctx context.Context, kind record.Kind) (record.Record, error) {
	kind, ok := record.ParseKind(string(kind))
	if !ok {
		return record.Record{}, errors.NewInvalidRequest("kind must be one of: context, rule, skill")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.cancelEdit(ctx); err != nil {
		return record.Record{}, err
	}

	r := record.New(kind, record.DefaultTitle(kind), "")
	_, err := c.commit(ctx, "add", func(records []record.Record) ([]record.Record, error) {
		return append([]record.Record{r}, records...), nil
	})
	if err != nil {
		return record.Record{}, err
	}

	c.mu.Lock()
	c.edit = &EditSession{ID: r.ID, Title: r.Title, Body: r.Body, Kind: r.Kind, New: true}
	c.affordance.Visible = false
	c.touch()
	c.mu.Unlock()
	return r, nil
}

// QuickAdd stores the affordance text as a new context, switches to the
// context tab and hides the affordance.
func (c *Controller) QuickAdd(ctx context.Context) (record.Record, error) {
	c.mu.Lock()
	text := strings.TrimSpace(c.affordance.Text)
	visible := c.affordance.Visible
	c.mu.Unlock()

	if !visible || text == "" {
		return record.Record{}, errors.NewInvalidRequest("no selection to add")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	r := record.NewContext("", text)
	_, err := c.commit(ctx, "quick_add", func(records []record.Record) ([]record.Record, error) {
		return append([]record.Record{r}, records...), nil
	})
	if err != nil {
		return record.Record{}, err
	}

	c.mu.Lock()
	c.affordance = Affordance{}
	c.kind = record.KindContext
	c.touch()
	c.mu.Unlock()
	return r, nil
}
