package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func foodLimit(amount int64, period core.LimitPeriod, setAt time.Time) core.SpendingLimit {
	return core.SpendingLimit{
		Amount:   decimal.NewFromInt(amount),
		Category: core.Category{ID: "1", Name: "Food"},
		Period:   period,
		SetAt:    setAt,
	}
}

func TestWindowStart(t *testing.T) {
	// Wednesday, 2025-06-18, mid-afternoon.
	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period core.LimitPeriod
		limit  core.SpendingLimit
		want   time.Time
	}{
		{
			name:   "daily starts at local midnight",
			period: core.Daily,
			want:   time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekly starts the preceding Monday",
			period: core.Weekly,
			want:   time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly starts the first of the month",
			period: core.Monthly,
			want:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "custom uses the fixed start date",
			period: core.Custom,
			limit:  core.SpendingLimit{StartDate: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)},
			want:   time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := GetWindowResolver(tt.period)
			if err != nil {
				t.Fatalf("GetWindowResolver(%s): %v", tt.period, err)
			}
			if got := r.WindowStart(now, tt.limit); !got.Equal(tt.want) {
				t.Errorf("WindowStart = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyWindowOnSunday(t *testing.T) {
	// Sunday belongs to the ISO week that started the previous Monday.
	sunday := time.Date(2025, 6, 22, 10, 0, 0, 0, time.UTC)
	r, _ := GetWindowResolver(core.Weekly)
	want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	if got := r.WindowStart(sunday, core.SpendingLimit{}); !got.Equal(want) {
		t.Fatalf("WindowStart(Sunday) = %v, want %v", got, want)
	}
}

func TestGetWindowResolverUnknownPeriod(t *testing.T) {
	if _, err := GetWindowResolver("yearly"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestComputeLimitSpendWeeklyWindow(t *testing.T) {
	// now = Wednesday; only expenses from the preceding Monday 00:00
	// onward count, and never before the limit was set.
	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	limit := foodLimit(200, core.Weekly, monday.Add(8*time.Hour)) // set Monday 08:00

	txs := []core.Transaction{
		tx(t, "40", core.Expense, "Food", monday.Add(12*time.Hour)),  // Monday noon: counts
		tx(t, "25", core.Expense, "Food", now.Add(-2*time.Hour)),     // Wednesday: counts
		tx(t, "30", core.Expense, "Food", monday.Add(-12*time.Hour)), // Sunday: outside window
		tx(t, "10", core.Expense, "Food", monday.Add(2*time.Hour)),   // Monday 02:00: before setAt
		tx(t, "99", core.Expense, "Transport", now.Add(-time.Hour)),  // wrong category
		tx(t, "99", core.Income, "Food", now.Add(-time.Hour)),        // wrong type
	}

	got := ComputeLimitSpend(&limit, txs, now)
	if !got.Equal(decimal.NewFromInt(65)) {
		t.Fatalf("spend = %s, want 65", got)
	}
}

func TestComputeLimitSpendMonthlySetAtFloor(t *testing.T) {
	// Limit set on day 5: the day-2 expense predates it and is excluded
	// even though the monthly window opened on day 1.
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	setAt := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	limit := foodLimit(200, core.Monthly, setAt)

	txs := []core.Transaction{
		tx(t, "80", core.Expense, "Food", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)),
		tx(t, "50", core.Expense, "Food", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
	}

	spend := ComputeLimitSpend(&limit, txs, now)
	if !spend.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("spend = %s, want 80", spend)
	}
	ratio := LimitRatio(&limit, spend)
	if !ratio.Equal(decimal.NewFromFloat(0.4)) {
		t.Fatalf("ratio = %s, want 0.4", ratio)
	}
}

func TestComputeLimitSpendSlidingWindow(t *testing.T) {
	// The period window recomputes from now each time: an expense inside
	// last week's window falls out once now moves to the next week.
	setAt := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) // Monday week 1
	limit := foodLimit(100, core.Weekly, setAt)
	spent := tx(t, "60", core.Expense, "Food", time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC))

	week1 := time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC) // Friday week 1
	week2 := time.Date(2025, 6, 17, 12, 0, 0, 0, time.UTC) // Tuesday week 2

	if got := ComputeLimitSpend(&limit, []core.Transaction{spent}, week1); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("week1 spend = %s, want 60", got)
	}
	if got := ComputeLimitSpend(&limit, []core.Transaction{spent}, week2); !got.IsZero() {
		t.Fatalf("week2 spend = %s, want 0 (window slid past the expense)", got)
	}
}

func TestComputeLimitSpendNoLimit(t *testing.T) {
	now := time.Now()
	txs := []core.Transaction{tx(t, "10", core.Expense, "Food", now)}
	if got := ComputeLimitSpend(nil, txs, now); !got.IsZero() {
		t.Fatalf("spend = %s, want 0 with no limit", got)
	}
}

func TestComputeLimitSpendIgnoresUndatedExpenses(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	limit := foodLimit(100, core.Daily, now.Add(-6*time.Hour))
	undated := tx(t, "10", core.Expense, "Food", time.Time{})
	if got := ComputeLimitSpend(&limit, []core.Transaction{undated}, now); !got.IsZero() {
		t.Fatalf("spend = %s, want 0 (no date means no window membership)", got)
	}
}
