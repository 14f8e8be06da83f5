package audit

import "context"

// Sink accepts events for persistence or shipping. Implementations must be
// safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be read back, used by tests and the status
// surface.
type Store interface {
	Sink
	List(ctx context.Context) ([]Event, error)
}

// MultiSink fans an event out to several sinks. The first failure aborts the
// append; earlier sinks keep the event.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, event Event) error {
	for _, sink := range m {
		if err := sink.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
