// Package publisher stamps and forwards audit events to a sink. It is the
// single entry point domain services use to emit events.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"

	audit "crowdgate/pkg/platform/audit"
)

// Publisher captures structured sale events. It is append-only and delegates
// persistence to the sink so tests can swap implementations easily.
type Publisher struct {
	sink audit.Sink
}

func New(sink audit.Sink) *Publisher {
	return &Publisher{sink: sink}
}

// Emit stamps the event with an id and timestamp when missing and hands it to
// the sink.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.sink.Append(ctx, event)
}
