// Package bus carries the fire-and-forget refresh signal between
// execution contexts. Delivery is at-least-once and possibly to
// unintended listeners, so handlers must be idempotent.
package bus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/logging"
)

// ActionRefresh asks every listening panel to reload the list.
const ActionRefresh = "refresh_memories"

// ErrNoListener is returned when a message had no receiver.
// Senders treat it as a non-error.
var ErrNoListener = errors.New("bus: no listener")

// Message is the single message shape on the channel.
type Message struct {
	Action string `json:"action"`
}

// Refresh is the refresh-requested message.
func Refresh() Message {
	return Message{Action: ActionRefresh}
}

// Notifier delivers a message to whoever is listening.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Bus is an in-process Notifier with any number of subscribers.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Message)
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]func(Message))}
}

// Subscribe registers fn for every message. The returned func removes it.
func (b *Bus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Notify delivers msg to every subscriber synchronously.
// Returns ErrNoListener when there are none.
func (b *Bus) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	fns := make([]func(Message), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	if len(fns) == 0 {
		return ErrNoListener
	}
	for _, fn := range fns {
		fn(msg)
	}
	return nil
}

// NotifyBestEffort sends msg and swallows any failure.
// A nil notifier is allowed and does nothing.
func NotifyBestEffort(ctx context.Context, n Notifier, msg Message, logger *zap.Logger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil && !errors.Is(err, ErrNoListener) {
		logging.OrNop(logger).Debug("notify failed", zap.String("action", msg.Action), zap.Error(err))
	}
}

// Multi fans a message out to several notifiers. It succeeds if any
// notifier delivered, and reports ErrNoListener if none had a receiver.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	delivered := false
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			if !errors.Is(err, ErrNoListener) {
				errs = append(errs, err)
			}
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return ErrNoListener
}
