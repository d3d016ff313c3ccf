package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/notify"
)

// NotificationRecord is a journaled threshold notification.
type NotificationRecord struct {
	ID         string
	Kind       notify.Kind
	Title      string
	Detail     string
	OccurredAt time.Time
}

// Journal persists notification records. The SQLite repository implements
// it; tests substitute an in-memory stub.
type Journal interface {
	AppendNotification(ctx context.Context, rec NotificationRecord) error
	PruneNotifications(ctx context.Context, olderThan time.Time) (int64, error)
}

// JournalWorker drains threshold messages off the queue and writes them to
// the notification journal, keeping persistence out of the refresh path.
type JournalWorker struct {
	journal   Journal
	retention time.Duration
}

func NewJournalWorker(journal Journal, retention time.Duration) *JournalWorker {
	return &JournalWorker{
		journal:   journal,
		retention: retention,
	}
}

// HandleThresholdMessage journals a single consumed threshold message
func (w *JournalWorker) HandleThresholdMessage(ctx context.Context, msg *amqp.ThresholdMessage) error {
	if msg.ID == "" || msg.Title == "" {
		return fmt.Errorf("malformed threshold message: id=%q title=%q", msg.ID, msg.Title)
	}

	rec := NotificationRecord{
		ID:         msg.ID,
		Kind:       msg.Kind,
		Title:      msg.Title,
		Detail:     msg.Detail,
		OccurredAt: msg.Timestamp,
	}

	if err := w.journal.AppendNotification(ctx, rec); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}

	slog.InfoContext(ctx, "Journaled threshold notification",
		"id", rec.ID,
		"kind", rec.Kind,
		"title", rec.Title)

	return nil
}

// PruneOldNotifications drops journal entries past the retention window.
// Called periodically so the journal does not grow without bound.
func (w *JournalWorker) PruneOldNotifications(ctx context.Context) error {
	if w.retention <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-w.retention)
	pruned, err := w.journal.PruneNotifications(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune notifications: %w", err)
	}

	if pruned > 0 {
		slog.InfoContext(ctx, "Pruned old notifications",
			"count", pruned,
			"cutoff", cutoff.Format(time.RFC3339))
	}

	return nil
}
