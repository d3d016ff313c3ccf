package ledger

import (
	"context"
	"errors"
	"time"

	"saldo/internal/core"
)

var (
	// ErrNoActiveWallet signals that computations were requested before a
	// wallet exists. Callers treat it as an empty result, not a fault.
	ErrNoActiveWallet = errors.New("no active wallet")

	// ErrStoreUnavailable wraps store read failures. The engine performs no
	// computation and keeps its prior cached results when it sees this.
	ErrStoreUnavailable = errors.New("ledger store unavailable")

	// ErrNoLimit signals that no spending limit is currently configured.
	ErrNoLimit = errors.New("no spending limit set")
)

// Filter narrows a transaction listing. Zero values mean "no restriction".
// Listings carry no ordering guarantee; callers sort explicitly.
type Filter struct {
	Type     core.TransactionType
	Category string
	From     time.Time
	To       time.Time
}

// Matches reports whether a transaction passes the filter. Transactions
// without a valid date are excluded by any date-range restriction.
func (f Filter) Matches(t core.Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && (!t.HasValidDate() || t.Date.Before(f.From)) {
		return false
	}
	if !f.To.IsZero() && (!t.HasValidDate() || t.Date.After(f.To)) {
		return false
	}
	return true
}

// Ports for the ledger store collaborators.
type (
	WalletReader interface {
		// GetWallet returns the single active wallet or ErrNoActiveWallet.
		GetWallet(ctx context.Context) (*core.Wallet, error)
	}

	WalletWriter interface {
		// CreateWallet installs the active wallet, replacing any prior one.
		CreateWallet(ctx context.Context, w core.Wallet) (string, error)
	}

	TransactionLister interface {
		ListTransactions(ctx context.Context, f Filter) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (ref string, err error)
	}

	LimitReader interface {
		// GetLimit returns the active spending limit or ErrNoLimit.
		GetLimit(ctx context.Context) (*core.SpendingLimit, error)
	}

	LimitStore interface {
		LimitReader
		// SaveLimit replaces the active limit wholesale.
		SaveLimit(ctx context.Context, l core.SpendingLimit) error
	}

	// CategoryRegistry owns the ordered category set: builtins first, then
	// user-defined entries in first-seen order.
	CategoryRegistry interface {
		ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error)
		AddCategory(ctx context.Context, typ core.TransactionType, name string) (core.Category, error)
	}
)

// Store is the full read/write surface a backend provides.
type Store interface {
	WalletReader
	WalletWriter
	TransactionLister
	TransactionWriter
	LimitStore
	CategoryRegistry
}
