package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/notify"
)

var (
	ratioHalf     = decimal.NewFromFloat(0.5)
	ratioNear     = decimal.NewFromFloat(0.8)
	ratioExceeded = decimal.NewFromInt(1)
)

// ThresholdNotifier is the state machine watching the limit spend ratio.
// It emits at most one notification per threshold per limit lifetime, and
// at most one per recompute: the highest unfired threshold crossed. The
// notified flags are scoped to the current limit's identity and replaced
// wholesale when the limit changes.
type ThresholdNotifier struct {
	notifier notify.Notifier

	mu       sync.Mutex
	limitKey string
	state    core.ThresholdState
}

func NewThresholdNotifier(n notify.Notifier) *ThresholdNotifier {
	return &ThresholdNotifier{notifier: n}
}

// Check recomputes the threshold decision for the given limit and spend.
// The read-ratio, decide, flip-flag sequence runs under one lock so racing
// refreshes cannot double-fire a notification. Returns the state after the
// check and whether a notification fired.
func (t *ThresholdNotifier) Check(ctx context.Context, limit *core.SpendingLimit, spend decimal.Decimal) (core.ThresholdState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit == nil {
		t.limitKey = ""
		t.state = core.ThresholdState{}
		return t.state, false
	}

	// A replaced limit starts fresh regardless of what the prior one fired.
	if key := limit.Key(); key != t.limitKey {
		t.limitKey = key
		t.state = core.ThresholdState{}
	}

	ratio := LimitRatio(limit, spend)

	// Descending severity: only the highest unfired crossed threshold
	// emits, so a jump straight past several boundaries fires once.
	// Firing also marks every lower threshold notified, keeping the
	// sequence strictly increasing: a steady ratio must never fall
	// through to a lower boundary on a later recompute.
	switch {
	case ratio.GreaterThanOrEqual(ratioExceeded) && !t.state.NotifiedExceeded:
		t.emit(ctx, notify.Event{
			Kind:   notify.KindError,
			Title:  "You've exceeded your spending limit.",
			Detail: fmt.Sprintf("You've spent %s which is over your limit of %s.", spend.StringFixed(2), limit.Amount.StringFixed(2)),
		})
		t.state.NotifiedExceeded = true
		t.state.Notified80 = true
		t.state.NotifiedHalf = true
		return t.state, true
	case ratio.GreaterThanOrEqual(ratioNear) && !t.state.Notified80:
		t.emit(ctx, notify.Event{
			Kind:   notify.KindWarn,
			Title:  "You're almost at your spending limit.",
			Detail: "Your spending is near the limit, watch your spending!",
		})
		t.state.Notified80 = true
		t.state.NotifiedHalf = true
		return t.state, true
	case ratio.GreaterThanOrEqual(ratioHalf) && !t.state.NotifiedHalf:
		t.emit(ctx, notify.Event{
			Kind:   notify.KindInfo,
			Title:  "You've reached 50% of your spending limit!",
			Detail: "You've used half of your budget.",
		})
		t.state.NotifiedHalf = true
		return t.state, true
	}
	return t.state, false
}

// State returns the current notified flags.
func (t *ThresholdNotifier) State() core.ThresholdState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// emit delivers fire-and-forget: a broken notifier sink is logged and
// never blocks or fails the recompute.
func (t *ThresholdNotifier) emit(ctx context.Context, e notify.Event) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Threshold notification delivery failed",
			applog.FieldError, err, "kind", e.Kind, "title", e.Title)
	}
}
