// Package engine derives everything the ledger presents from the raw
// transaction set: the running balance, category and date aggregations,
// spending accrued against the active limit, and the threshold-crossing
// notifications. Every computation here is a pure function over a snapshot
// of store data; the only mutable state lives in the threshold notifier.
package engine

import (
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// ComputeBalance folds the transaction set over the wallet's initial
// balance. The fold is commutative: income adds, expense subtracts, and
// the result does not depend on transaction order.
func ComputeBalance(w core.Wallet, txs []core.Transaction) decimal.Decimal {
	balance := w.InitialBalance
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			balance = balance.Add(t.Amount)
		case core.Expense:
			balance = balance.Sub(t.Amount)
		}
	}
	return balance
}

// TotalByType sums the amounts of one transaction type.
func TotalByType(txs []core.Transaction, typ core.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}
