package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// WindowResolver is the strategy interface for resolving a spending limit's
// period window start. Each period type encapsulates its own calendar math.
type WindowResolver interface {
	// WindowStart returns the moment the limit's current window opened,
	// recomputed from now on every call: period windows slide, they are
	// not frozen at limit creation.
	WindowStart(now time.Time, limit core.SpendingLimit) time.Time
}

// DailyWindow starts the window at today's local midnight.
type DailyWindow struct{}

func (DailyWindow) WindowStart(now time.Time, _ core.SpendingLimit) time.Time {
	return startOfDay(now)
}

// WeeklyWindow starts the window at the ISO week's Monday, local midnight.
type WeeklyWindow struct{}

func (WeeklyWindow) WindowStart(now time.Time, _ core.SpendingLimit) time.Time {
	day := startOfDay(now)
	wd := int(day.Weekday())
	if wd == 0 { // Sunday belongs to the week that started six days earlier
		wd = 7
	}
	return day.AddDate(0, 0, -(wd - 1))
}

// MonthlyWindow starts the window on the first of the current month.
type MonthlyWindow struct{}

func (MonthlyWindow) WindowStart(now time.Time, _ core.SpendingLimit) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// CustomWindow uses the fixed start date the user picked.
type CustomWindow struct{}

func (CustomWindow) WindowStart(_ time.Time, limit core.SpendingLimit) time.Time {
	return limit.StartDate
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var windowResolvers = map[core.LimitPeriod]WindowResolver{
	core.Daily:   DailyWindow{},
	core.Weekly:  WeeklyWindow{},
	core.Monthly: MonthlyWindow{},
	core.Custom:  CustomWindow{},
}

// GetWindowResolver returns the resolver for a limit period.
func GetWindowResolver(p core.LimitPeriod) (WindowResolver, error) {
	r, ok := windowResolvers[p]
	if !ok {
		return nil, fmt.Errorf("unknown limit period: %s", p)
	}
	return r, nil
}

// EffectiveThreshold resolves the moment from which expenses count against
// the limit: the later of the period window start and the limit's SetAt.
// A limit never counts expenses recorded before it was configured, even
// when its computed window opened earlier.
func EffectiveThreshold(limit core.SpendingLimit, now time.Time) time.Time {
	resolver, err := GetWindowResolver(limit.Period)
	if err != nil {
		// Invalid periods are rejected at limit creation; treat a stray one
		// as counting nothing rather than everything.
		return now
	}
	start := resolver.WindowStart(now, limit)
	if limit.SetAt.After(start) {
		return limit.SetAt
	}
	return start
}

// ComputeLimitSpend sums the expenses accrued against the limit's category
// since the effective threshold. Zero when no limit is active or nothing
// qualifies. Pure over its inputs.
func ComputeLimitSpend(limit *core.SpendingLimit, txs []core.Transaction, now time.Time) decimal.Decimal {
	if limit == nil {
		return decimal.Zero
	}
	threshold := EffectiveThreshold(*limit, now)
	spend := decimal.Zero
	for _, t := range txs {
		if t.Type != core.Expense || t.Category != limit.Category.Name {
			continue
		}
		if !t.HasValidDate() || t.Date.Before(threshold) {
			continue
		}
		spend = spend.Add(t.Amount)
	}
	return spend
}

// LimitRatio is spend over the limit amount, the value the threshold
// notifier watches. Limits with non-positive amounts never reach the
// engine, but a zero guard keeps the division total.
func LimitRatio(limit *core.SpendingLimit, spend decimal.Decimal) decimal.Decimal {
	if limit == nil || !limit.Amount.IsPositive() {
		return decimal.Zero
	}
	return spend.Div(limit.Amount)
}
