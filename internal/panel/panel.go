// Package panel holds the state behind the panel view: the normalized
// record list, the selected tab, the input draft, the single edit session,
// the selection affordance and the transient copy status. The view renders
// Snapshot values and calls Controller methods for every user action.
package panel

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/clipboard"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/logging"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// DefaultCopyFeedback is how long a copy status stays visible.
const DefaultCopyFeedback = 1500 * time.Millisecond

// Status messages shown after a successful clipboard write.
const (
	StatusCopied       = "Copied!"
	StatusSkillApplied = "Skill Applied!"
)

// EditSession is the one record currently open for editing.
// Title, Body and Kind are the uncommitted draft.
type EditSession struct {
	ID    string
	Title string
	Body  string
	Kind  record.Kind
	// New is set when the session was opened by Add.
	New bool
}

// Affordance is the floating quick-add button shown over a text selection.
type Affordance struct {
	Visible bool
	X, Y    float64
	Text    string
}

// Snapshot is a consistent copy of the panel state.
type Snapshot struct {
	Records    []record.Record // stored order
	Kind       record.Kind
	Input      string
	Edit       *EditSession
	Affordance Affordance
	Status     string
	// Version increases on every state change.
	Version uint64
}

// Visible returns the records of the selected kind in display order.
func (s Snapshot) Visible() []record.Record {
	return record.SortForDisplay(record.FilterKind(s.Records, s.Kind))
}

// Count returns how many records of kind exist.
func (s Snapshot) Count(kind record.Kind) int {
	n := 0
	for _, r := range s.Records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// Options configures a Controller. Zero values are usable.
type Options struct {
	Clipboard    clipboard.Clipboard
	Logger       *zap.Logger
	CopyFeedback time.Duration
}

// Controller owns the panel state.
//
// Mutations build the next list from the in-memory one, save it, and only
// then adopt it, so a failed save leaves the state as it was. writeMu
// serializes the controller's own read-modify-write cycles; mu guards the
// state and is never held across a store call, which lets change
// notifications caused by the controller's own saves refresh it.
// writeSeq counts adopted saves; a refresh whose load started before one
// of them loads again instead of adopting an older list.
type Controller struct {
	st       store.Store
	clip     clipboard.Clipboard
	logger   *zap.Logger
	feedback time.Duration

	writeMu sync.Mutex

	mu          sync.Mutex
	records     []record.Record
	kind        record.Kind
	input       string
	edit        *EditSession
	affordance  Affordance
	status      string
	statusSeq   uint64
	statusTimer *time.Timer
	version     uint64
	writeSeq    uint64

	ctx         context.Context
	unsubscribe func()
}

// New returns a controller over st. Call Start before use.
func New(st store.Store, opts Options) *Controller {
	if opts.CopyFeedback <= 0 {
		opts.CopyFeedback = DefaultCopyFeedback
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.System{}
	}
	return &Controller{
		st:       st,
		clip:     opts.Clipboard,
		logger:   logging.OrNop(opts.Logger).Named("panel"),
		feedback: opts.CopyFeedback,
		kind:     record.KindContext,
		ctx:      context.Background(),
	}
}

// Start subscribes to store changes and loads the list.
// Refreshes triggered by change notifications use ctx.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx = context.WithoutCancel(ctx)
	c.unsubscribe = c.st.OnChange(c.onStoreChange)
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Close unsubscribes from the store and stops the status timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.statusTimer != nil {
		c.statusTimer.Stop()
		c.statusTimer = nil
	}
}

func (c *Controller) onStoreChange() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after store change failed", zap.Error(err))
	}
}

// HandleMessage reacts to a cross-context signal. Unknown actions are ignored.
func (c *Controller) HandleMessage(ctx context.Context, msg bus.Message) {
	if msg.Action != bus.ActionRefresh {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh on signal failed", zap.Error(err))
	}
}

// maxRefreshAttempts bounds how often Refresh reloads after being
// overtaken by the controller's own saves.
const maxRefreshAttempts = 3

// Refresh reloads and normalizes the persisted list. An edit session whose
// record no longer exists is closed. On failure the state is unchanged.
//
// A load that overlaps a save by the controller is retried, so the list
// adopted is never older than the controller's last save. When saves keep
// overtaking it, Refresh gives up and keeps the saved list.
func (c *Controller) Refresh(ctx context.Context) error {
	for range maxRefreshAttempts {
		c.mu.Lock()
		seq := c.writeSeq
		c.mu.Unlock()

		raw, err := c.st.Load(ctx)
		if err != nil {
			c.logger.Warn("load failed", zap.Error(err))
			return errors.NewStoreUnavailable("load", err)
		}
		records := record.Normalize(raw)

		c.mu.Lock()
		if c.writeSeq != seq {
			c.mu.Unlock()
			c.logger.Debug("refresh overtaken by save, reloading")
			continue
		}
		c.records = records
		if c.edit != nil && record.Find(records, c.edit.ID) < 0 {
			c.edit = nil
		}
		c.touch()
		c.mu.Unlock()
		return nil
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Records:    slices.Clone(c.records),
		Kind:       c.kind,
		Input:      c.input,
		Affordance: c.affordance,
		Status:     c.status,
		Version:    c.version,
	}
	if c.edit != nil {
		e := *c.edit
		s.Edit = &e
	}
	return s
}

// Version returns the current state version.
func (c *Controller) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SelectKind switches the visible tab.
func (c *Controller) SelectKind(kind record.Kind) error {
	parsed, ok := record.ParseKind(string(kind))
	if !ok {
		return errors.NewInvalidRequest("kind must be one of: context, rule, skill")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = parsed
	c.touch()
	return nil
}

// SetInput replaces the user input draft.
func (c *Controller) SetInput(input string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = input
	c.touch()
}

// SelectedKindList returns the records of the selected kind in display order.
func (c *Controller) SelectedKindList() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return record.SortForDisplay(record.FilterKind(c.records, c.kind))
}

// touch bumps the version. Callers hold mu.
func (c *Controller) touch() {
	c.version++
}
