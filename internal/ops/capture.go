package ops

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	Text      string // required
	PageTitle string // default: "Web Selection"
}

// Capture stores a selection captured from a context menu as a new context.
// The record is prepended to the persisted list as-is; other entries are
// not normalized. A refresh signal is sent afterwards and its failure ignored.
func Capture(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, input CaptureInput) (*RecordOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	title := strings.TrimSpace(input.PageTitle)
	if title == "" {
		title = record.DefaultCaptureTitle
	}
	return prependContext(ctx, st, n, logger, record.NewContext(title, input.Text), nil)
}

// CapturePage stores a selection captured in a page as an untitled context.
// alive reports whether the capturing page is still connected; when it
// returns false (or ctx is done) before a store access, the capture is
// abandoned and CapturePage returns nil, nil.
func CapturePage(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, text string, alive func() bool) (*RecordOutput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if alive == nil {
		alive = func() bool { return true }
	}
	return prependContext(ctx, st, n, logger, record.NewContext("", text), func() bool {
		return ctx.Err() == nil && alive()
	})
}

func prependContext(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, r record.Record, alive func() bool) (*RecordOutput, error) {
	stale := func() bool { return alive != nil && !alive() }

	if stale() {
		return nil, nil
	}
	raw, err := loadRaw(ctx, st)
	if err != nil {
		return nil, err
	}

	entry, err := json.Marshal(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	list := make([]json.RawMessage, 0, len(raw)+1)
	list = append(list, entry)
	list = append(list, raw...)

	if stale() {
		return nil, nil
	}
	if err := saveRaw(ctx, st, list); err != nil {
		return nil, err
	}

	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	return &RecordOutput{Record: r, Total: len(list)}, nil
}
