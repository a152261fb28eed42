// Package notify delivers user-facing processing events. Delivery is
// fire and forget: a lost notification never blocks or fails the
// pipeline that emitted it.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/studyflow/processor/internal/core/domain"
)

// Event describes something a user may want to hear about.
type Event struct {
	ContentID string
	UserID    string
	Kind      EventKind
	Stage     domain.Stage
	Detail    string
	At        time.Time
}

type EventKind string

const (
	EventProcessingComplete EventKind = "processing_complete"
	EventProcessingPaused   EventKind = "processing_paused"
	EventProcessingResumed  EventKind = "processing_resumed"
	EventProcessingFailed   EventKind = "processing_failed"
)

// Notifier pushes events toward the user. Implementations must not block
// the caller on downstream delivery.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier records events to the structured log. It stands in for a
// push gateway in deployments that have none.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With("component", "notify")}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) {
	n.log.Info("notification",
		"kind", ev.Kind,
		"content", ev.ContentID,
		"user", ev.UserID,
		"stage", ev.Stage,
		"detail", ev.Detail,
	)
}

// Discard drops every event. Useful in tests.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}
