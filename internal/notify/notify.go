// Package notify defines the outbound notification port the engine emits
// threshold events through, plus the local slog-backed implementation.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

const (
	KindInfo  Kind = "info"
	KindWarn  Kind = "warn"
	KindError Kind = "error"
)

type Kind string

// Event is a single user-facing notification. Delivery is fire-and-forget
// from the engine's perspective; a failed Notify never blocks a recompute.
type Event struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes events to the structured log at the matching level.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	switch e.Kind {
	case KindError:
		n.logger.ErrorContext(ctx, e.Title, "detail", e.Detail, "kind", e.Kind)
	case KindWarn:
		n.logger.WarnContext(ctx, e.Title, "detail", e.Detail, "kind", e.Kind)
	default:
		n.logger.InfoContext(ctx, e.Title, "detail", e.Detail, "kind", e.Kind)
	}
	return nil
}

// Fanout delivers each event to every notifier, collecting failures so one
// broken sink does not silence the others.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
