package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func tx(t *testing.T, amount string, typ core.TransactionType, category string, date time.Time) core.Transaction {
	t.Helper()
	out, err := core.NewTransaction(amount, category, "", date, typ)
	if err != nil {
		t.Fatalf("NewTransaction(%s): %v", amount, err)
	}
	return out
}

func wallet(initial int64) core.Wallet {
	return core.Wallet{ID: "w1", Name: "Main", Currency: "EUR", InitialBalance: decimal.NewFromInt(initial)}
}

func TestComputeBalance(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(t, "50", core.Income, "Salary", day),
		tx(t, "30", core.Expense, "Food", day),
	}
	got := ComputeBalance(wallet(100), txs)
	if !got.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("balance = %s, want 120", got)
	}
}

func TestComputeBalancePermutationInvariant(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }
	txs := []core.Transaction{
		tx(t, "50", core.Income, "Salary", day(1)),
		tx(t, "30.10", core.Expense, "Food", day(2)),
		tx(t, "0.01", core.Expense, "Food", day(3)),
		tx(t, "999.99", core.Income, "Bonus", day(4)),
		tx(t, "12.34", core.Expense, "Bills", day(5)),
	}
	want := ComputeBalance(wallet(100), txs)

	// A handful of hand-rolled permutations; the fold must not care.
	perms := [][]int{
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
		{1, 4, 0, 3, 2},
	}
	for _, p := range perms {
		shuffled := make([]core.Transaction, len(txs))
		for i, idx := range p {
			shuffled[i] = txs[idx]
		}
		if got := ComputeBalance(wallet(100), shuffled); !got.Equal(want) {
			t.Fatalf("permutation %v: balance = %s, want %s", p, got, want)
		}
	}
}

func TestComputeBalanceExactDecimalAccumulation(t *testing.T) {
	// 0.1 added ten times must be exactly 1, not 0.9999999999999999.
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var txs []core.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, tx(t, "0.1", core.Income, "Salary", day))
	}
	got := ComputeBalance(wallet(0), txs)
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("balance = %s, want exactly 1", got)
	}
}

func TestOversizedAmountNeverReachesAggregates(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := core.NewTransaction("300000000000000000000", "Food", "", day, core.Expense)
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("oversized amount error = %v, want ErrInvalidAmount", err)
	}

	// Only the two accepted transactions contribute.
	txs := []core.Transaction{
		tx(t, "50", core.Income, "Salary", day),
		tx(t, "30", core.Expense, "Food", day),
	}
	if got := ComputeBalance(wallet(100), txs); !got.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("balance = %s, want 120", got)
	}
}

func TestTotalByType(t *testing.T) {
	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(t, "50", core.Income, "Salary", day),
		tx(t, "30", core.Expense, "Food", day),
		tx(t, "20", core.Expense, "Bills", day),
	}
	if got := TotalByType(txs, core.Income); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("income = %s, want 50", got)
	}
	if got := TotalByType(txs, core.Expense); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expense = %s, want 50", got)
	}
}
