package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategoryTotal is one row of a per-category aggregation: the summed amount
// and its share of the grand total.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Percent  decimal.Decimal
}

// DateBucket collects one calendar day's transactions under its display
// key. Transactions without a parseable date collapse into a single bucket
// keyed by the invalid-date sentinel rather than being dropped.
type DateBucket struct {
	Date         string
	Net          decimal.Decimal
	Transactions []core.Transaction
}

// GroupByCategory sums amounts per distinct category, restricted to one
// transaction type. Categories keep first-seen order so chart legends stay
// deterministic across recomputes. Percentages are of the grand total and
// zero when the grand total is zero.
func GroupByCategory(txs []core.Transaction, typ core.TransactionType) []CategoryTotal {
	var (
		order []string
		sums  = make(map[string]decimal.Decimal)
		grand = decimal.Zero
	)
	for _, t := range txs {
		if t.Type != typ {
			continue
		}
		if _, seen := sums[t.Category]; !seen {
			order = append(order, t.Category)
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
		grand = grand.Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		total := sums[cat]
		pct := decimal.Zero
		if grand.IsPositive() {
			pct = total.Mul(hundred).Div(grand)
		}
		out = append(out, CategoryTotal{Category: cat, Total: total, Percent: pct})
	}
	return out
}

// GroupByDate buckets transactions by calendar day in chronological order.
// The net per bucket is income minus expense. The invalid-date bucket, when
// present, sorts last.
func GroupByDate(txs []core.Transaction) []DateBucket {
	sorted := SortChronological(txs)

	var (
		order   []string
		buckets = make(map[string]*DateBucket)
	)
	for _, t := range sorted {
		key := t.DisplayDate()
		b, ok := buckets[key]
		if !ok {
			b = &DateBucket{Date: key, Net: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		b.Transactions = append(b.Transactions, t)
		switch t.Type {
		case core.Income:
			b.Net = b.Net.Add(t.Amount)
		case core.Expense:
			b.Net = b.Net.Sub(t.Amount)
		}
	}

	out := make([]DateBucket, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}

// BalanceSeries produces the cumulative running balance in chronological
// transaction order: point 0 is the initial balance, each further point
// applies one transaction. Input order is irrelevant; the series sorts
// first and folds second. Transactions without a valid date have no place
// on a time axis and are excluded.
func BalanceSeries(w core.Wallet, txs []core.Transaction) []decimal.Decimal {
	sorted := SortChronological(txs)

	series := []decimal.Decimal{w.InitialBalance}
	running := w.InitialBalance
	for _, t := range sorted {
		if !t.HasValidDate() {
			continue
		}
		switch t.Type {
		case core.Income:
			running = running.Add(t.Amount)
		case core.Expense:
			running = running.Sub(t.Amount)
		}
		series = append(series, running)
	}
	return series
}

// SortChronological returns a copy of the transaction set sorted ascending
// by date, with invalid dates last. The sort is stable so same-day
// transactions keep their relative input order.
func SortChronological(txs []core.Transaction) []core.Transaction {
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HasValidDate() != b.HasValidDate() {
			return a.HasValidDate()
		}
		return a.Date.Before(b.Date)
	})
	return sorted
}
