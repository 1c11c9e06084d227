package panel

import (
	"context"
	"strings"

	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
)

// BeginEdit opens an edit session on id, seeded from the stored record.
// An open session on another record is cancelled first.
func (c *Controller) BeginEdit(ctx context.Context, id string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	same := c.edit != nil && c.edit.ID == id
	exists := record.Find(c.records, id) >= 0
	c.mu.Unlock()

	if !exists {
		return errors.NewNotFound(id)
	}
	if same {
		return nil
	}
	if err := c.cancelEdit(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := record.Find(c.records, id)
	if i < 0 {
		return errors.NewNotFound(id)
	}
	r := c.records[i]
	c.edit = &EditSession{ID: r.ID, Title: r.Title, Body: r.Body, Kind: r.Kind}
	c.affordance.Visible = false
	c.touch()
	return nil
}

// UpdateDraft replaces the draft of the open session. An invalid kind
// leaves the draft kind unchanged.
func (c *Controller) UpdateDraft(title, body string, kind record.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.edit == nil {
		return errors.NewInvalidRequest("no edit session")
	}
	c.edit.Title = title
	c.edit.Body = body
	if k, ok := record.ParseKind(string(kind)); ok {
		c.edit.Kind = k
	}
	c.touch()
	return nil
}

// CancelEdit closes the session without applying the draft. The record is
// deleted when it is blank, or when the session came from Add and nothing
// was ever stored in its body.
func (c *Controller) CancelEdit(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.cancelEdit(ctx)
}

// cancelEdit is CancelEdit for callers already holding writeMu.
func (c *Controller) cancelEdit(ctx context.Context) error {
	c.mu.Lock()
	session := c.edit
	var target record.Record
	found := false
	if session != nil {
		if i := record.Find(c.records, session.ID); i >= 0 {
			target, found = c.records[i], true
		}
	}
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if found && (target.IsBlank() || (session.New && target.Body == "")) {
		return c.remove(ctx, session.ID)
	}

	c.mu.Lock()
	c.edit = nil
	c.touch()
	c.mu.Unlock()
	return nil
}

// CommitEdit applies the draft. A body that is empty after trimming
// deletes the record instead.
func (c *Controller) CommitEdit(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	var session EditSession
	open := c.edit != nil
	if open {
		session = *c.edit
	}
	c.mu.Unlock()

	if !open {
		return nil
	}
	if strings.TrimSpace(session.Body) == "" {
		return c.remove(ctx, session.ID)
	}

	_, err := c.commit(ctx, "edit", func(records []record.Record) ([]record.Record, error) {
		i := record.Find(records, session.ID)
		if i < 0 {
			return nil, errors.NewNotFound(session.ID)
		}
		records[i].Title = session.Title
		records[i].Body = session.Body
		records[i].Kind = session.Kind
		return records, nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.edit = nil
	c.touch()
	c.mu.Unlock()
	return nil
}
