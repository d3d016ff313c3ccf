// Package memory provides an in-memory ledger store. It is the default
// backend for local runs and the store the engine tests run against.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

type Store struct {
	mu           sync.RWMutex
	wallet       *core.Wallet
	transactions []core.Transaction
	limit        *core.SpendingLimit
	categories   map[core.TransactionType][]core.Category
}

func NewStore() *Store {
	return &Store{
		categories: map[core.TransactionType][]core.Category{
			core.Expense: core.BuiltinCategories(core.Expense),
			core.Income:  core.BuiltinCategories(core.Income),
		},
	}
}

func (s *Store) GetWallet(ctx context.Context) (*core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wallet == nil {
		return nil, ledger.ErrNoActiveWallet
	}
	w := *s.wallet
	return &w, nil
}

// CreateWallet replaces any prior wallet; the design has exactly one
// active wallet at a time.
func (s *Store) CreateWallet(ctx context.Context, w core.Wallet) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = &w
	return w.ID, nil
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
	return "mem:" + strconv.Itoa(len(s.transactions)), nil
}

func (s *Store) GetLimit(ctx context.Context) (*core.SpendingLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.limit == nil {
		return nil, ledger.ErrNoLimit
	}
	l := *s.limit
	return &l, nil
}

func (s *Store) SaveLimit(ctx context.Context, l core.SpendingLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = &l
	return nil
}

func (s *Store) ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cats := s.categories[typ]
	out := make([]core.Category, len(cats))
	copy(out, cats)
	return out, nil
}

// AddCategory appends a user-defined category, de-duplicating
// case-insensitively against the existing set.
func (s *Store) AddCategory(ctx context.Context, typ core.TransactionType, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrMissingCategory
	}
	if !typ.IsValid() {
		return core.Category{}, core.ErrInvalidType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories[typ] {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	cat := core.Category{ID: uuid.NewString(), Name: name, Source: core.SourceCustom}
	s.categories[typ] = append(s.categories[typ], cat)
	return cat, nil
}
