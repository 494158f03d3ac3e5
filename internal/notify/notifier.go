// Package notify is the change-notification port consumed by rendering and
// other downstreams. The engine's contract is exactly one notification per
// logical public operation: never zero, even when the operation failed
// partway, and never two. Emission is fire-and-forget: the engine does not
// wait for listeners, and a failed listener never rolls back a persisted
// write.
package notify

//go:generate mockgen -destination=mocks/mocks.go -package=mocks cohere/internal/notify Notifier,Sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Actions tagged on events, one per public operation.
const (
	ActionMerge      = "merge"
	ActionSoftDelete = "soft-delete"
	ActionUndo       = "undo"
	ActionFinalize   = "finalize"
)

// Event describes one logical change. Scope is the collection the operation
// targeted.
type Event struct {
	ID        string         `json:"id"`
	Scope     string         `json:"scope"`
	Action    string         `json:"action"`
	RecordID  string         `json:"recordId,omitempty"`
	WinnerID  string         `json:"winnerId,omitempty"`
	LoserID   string         `json:"loserId,omitempty"`
	Failed    bool           `json:"failed,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier receives change events. Implementations must not block the caller
// beyond a bounded enqueue.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// stamp fills in identity and time if the producer left them zero.
func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// LogNotifier writes events to the logger; the dev-mode default sink.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	event = stamp(event)
	n.logger.InfoContext(ctx, "change notification",
		"scope", event.Scope,
		"action", event.Action,
		"record_id", event.RecordID,
		"failed", event.Failed,
	)
}
