// Package worker drains buffered audit events into a sink in the background.
package worker

import (
	"context"
	"log/slog"

	audit "crowdgate/pkg/platform/audit"
)

// Worker consumes audit events from a channel and appends them to a sink.
// It keeps event shipping off the purchase path without wiring a queue.
type Worker struct {
	sink   audit.Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(sink audit.Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run loops until the context is cancelled. Append failures are logged and
// skipped; the sale ledger, not the audit trail, is the system of record.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"event_id", event.ID,
					"error", err,
				)
			}
		}
	}
}

// Buffered wraps a channel-backed sink pair: Emit side and the worker inbox.
type Buffered struct {
	inbox chan audit.Event
}

// NewBuffered creates a buffered sink with the given capacity.
func NewBuffered(capacity int) *Buffered {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Buffered{inbox: make(chan audit.Event, capacity)}
}

// Append implements audit.Sink. When the buffer is full the event is dropped;
// emitters must never block the purchase path.
func (b *Buffered) Append(_ context.Context, event audit.Event) error {
	select {
	case b.inbox <- event:
	default:
	}
	return nil
}

// Inbox exposes the channel for the draining worker.
func (b *Buffered) Inbox() <-chan audit.Event {
	return b.inbox
}
