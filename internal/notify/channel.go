package notify

import (
	"context"
	"log/slog"
)

// ChannelNotifier buffers events on a channel for an in-process consumer
// (the rendering layer, or a Worker draining into a durable sink). Enqueue
// never blocks: when the buffer is full the event is dropped and counted,
// because a slow listener must not stall the write path.
type ChannelNotifier struct {
	events chan Event
	logger *slog.Logger
}

func NewChannelNotifier(buffer int, logger *slog.Logger) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{
		events: make(chan Event, buffer),
		logger: logger,
	}
}

func (n *ChannelNotifier) Notify(_ context.Context, event Event) {
	event = stamp(event)
	select {
	case n.events <- event:
	default:
		n.logger.Warn("notification buffer full, dropping event",
			"scope", event.Scope,
			"action", event.Action,
		)
	}
}

// Events exposes the consumer side of the channel.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

// Sink persists or forwards drained events.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Worker drains a ChannelNotifier into a Sink. It keeps background delivery
// testable without wiring a broker.
type Worker struct {
	inbox  <-chan Event
	sink   Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

// Run delivers until the context ends. Delivery failures are logged and the
// loop keeps going: notification is fire-and-forget from the engine's side.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Deliver(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"event_id", event.ID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
