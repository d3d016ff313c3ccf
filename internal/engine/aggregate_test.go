package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func TestGroupByCategoryFirstSeenOrder(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(t, "10", core.Expense, "Food", day),
		tx(t, "20", core.Expense, "Transport", day),
		tx(t, "5", core.Expense, "Food", day),
		tx(t, "500", core.Income, "Salary", day),
		tx(t, "15", core.Expense, "Bills", day),
	}

	rows := GroupByCategory(txs, core.Expense)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	wantOrder := []string{"Food", "Transport", "Bills"}
	for i, w := range wantOrder {
		if rows[i].Category != w {
			t.Fatalf("row %d category = %s, want %s", i, rows[i].Category, w)
		}
	}
	if !rows[0].Total.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("Food total = %s, want 15", rows[0].Total)
	}
	// Income must not leak in.
	for _, r := range rows {
		if r.Category == "Salary" {
			t.Fatal("income category leaked into expense aggregation")
		}
	}
}

func TestGroupByCategoryPercentagesSumToHundred(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(t, "33.33", core.Expense, "Food", day),
		tx(t, "33.33", core.Expense, "Transport", day),
		tx(t, "33.34", core.Expense, "Bills", day),
	}
	rows := GroupByCategory(txs, core.Expense)
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Percent)
	}
	eps := decimal.NewFromFloat(0.0001)
	if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(eps) {
		t.Fatalf("percentages sum = %s, want 100 ± %s", sum, eps)
	}
}

func TestGroupByCategoryZeroGrandTotal(t *testing.T) {
	rows := GroupByCategory(nil, core.Expense)
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}

	// Only income present: expense aggregation sees a zero grand total.
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{tx(t, "50", core.Income, "Salary", day)}
	rows = GroupByCategory(txs, core.Expense)
	for _, r := range rows {
		if !r.Percent.IsZero() {
			t.Fatalf("percent = %s, want 0 on zero grand total", r.Percent)
		}
	}
}

func TestGroupByDateBucketsAndInvalidSentinel(t *testing.T) {
	d1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	d1later := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	txs := []core.Transaction{
		tx(t, "10", core.Expense, "Food", d2), // out of order on purpose
		tx(t, "50", core.Income, "Salary", d1),
		tx(t, "5", core.Expense, "Food", d1later),
		tx(t, "7", core.Expense, "Bills", time.Time{}), // malformed date
	}

	buckets := GroupByDate(txs)
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}
	if buckets[0].Date != "3/1/2025" || buckets[1].Date != "3/2/2025" {
		t.Fatalf("bucket order = %s, %s", buckets[0].Date, buckets[1].Date)
	}
	if buckets[2].Date != core.InvalidDateLabel {
		t.Fatalf("last bucket = %s, want %s", buckets[2].Date, core.InvalidDateLabel)
	}
	// Same calendar day collapses into one bucket.
	if got := buckets[0].Net; !got.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("3/1 net = %s, want 45", got)
	}
	if len(buckets[2].Transactions) != 1 {
		t.Fatal("invalid-date transaction was dropped instead of bucketed")
	}
}

func TestBalanceSeries(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }
	// Unordered input; the series must sort first, fold second.
	txs := []core.Transaction{
		tx(t, "30", core.Expense, "Food", day(2)),
		tx(t, "50", core.Income, "Salary", day(1)),
		tx(t, "20", core.Income, "Gift", day(3)),
	}
	series := BalanceSeries(wallet(100), txs)
	want := []int64{100, 150, 120, 140}
	if len(series) != len(want) {
		t.Fatalf("series length = %d, want %d", len(series), len(want))
	}
	for i, w := range want {
		if !series[i].Equal(decimal.NewFromInt(w)) {
			t.Fatalf("series[%d] = %s, want %d", i, series[i], w)
		}
	}
}

func TestBalanceSeriesExcludesInvalidDates(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(t, "50", core.Income, "Salary", day),
		tx(t, "7", core.Expense, "Bills", time.Time{}),
	}
	series := BalanceSeries(wallet(100), txs)
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2 (undated tx has no point on a time axis)", len(series))
	}
	if !series[1].Equal(decimal.NewFromInt(150)) {
		t.Fatalf("series[1] = %s, want 150", series[1])
	}
}

func TestSortChronologicalStable(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := tx(t, "1", core.Expense, "Food", day)
	b := tx(t, "2", core.Expense, "Food", day)
	sorted := SortChronological([]core.Transaction{a, b})
	if sorted[0].ID != a.ID || sorted[1].ID != b.ID {
		t.Fatal("same-day transactions must keep input order")
	}
}
