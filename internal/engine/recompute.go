package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Snapshot is one consistent view of store data, captured by the caller
// before a recompute. Wallet and Limit are nil when unset.
type Snapshot struct {
	Wallet       *core.Wallet
	Transactions []core.Transaction
	Limit        *core.SpendingLimit
	Now          time.Time
}

// DerivedState is everything a recompute derives from a snapshot. It is a
// value: recomputes replace it wholesale, they never patch it.
type DerivedState struct {
	Balance      decimal.Decimal
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal

	ExpenseByCategory []CategoryTotal
	IncomeByCategory  []CategoryTotal
	ByDate            []DateBucket
	Series            []decimal.Decimal

	LimitSpend decimal.Decimal
	LimitRatio decimal.Decimal

	ComputedAt time.Time
}

// Recompute derives the full state from a snapshot. Pure: no I/O, no
// mutation of the inputs, safe to re-run on every refresh.
func Recompute(snap Snapshot) DerivedState {
	ds := DerivedState{
		Balance:      decimal.Zero,
		TotalIncome:  TotalByType(snap.Transactions, core.Income),
		TotalExpense: TotalByType(snap.Transactions, core.Expense),

		ExpenseByCategory: GroupByCategory(snap.Transactions, core.Expense),
		IncomeByCategory:  GroupByCategory(snap.Transactions, core.Income),
		ByDate:            GroupByDate(snap.Transactions),

		LimitSpend: decimal.Zero,
		LimitRatio: decimal.Zero,
		ComputedAt: snap.Now,
	}

	if snap.Wallet != nil {
		ds.Balance = ComputeBalance(*snap.Wallet, snap.Transactions)
		ds.Series = BalanceSeries(*snap.Wallet, snap.Transactions)
	}
	if snap.Limit != nil {
		ds.LimitSpend = ComputeLimitSpend(snap.Limit, snap.Transactions, snap.Now)
		ds.LimitRatio = LimitRatio(snap.Limit, ds.LimitSpend)
	}
	return ds
}
