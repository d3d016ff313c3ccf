package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/notify"
)

// ReadStore is the slice of the ledger store the refresh loop consumes.
// Refresh only ever reads the limit, so the write half stays out.
type ReadStore interface {
	ledger.WalletReader
	ledger.TransactionLister
	ledger.LimitReader
}

// Service drives the cooperative recompute model: every external refresh
// trigger reads a snapshot from the store, recomputes the derived state,
// and feeds the threshold notifier. Refreshes are serialized; the cached
// state only advances on success, so a store failure leaves the last good
// result in place rather than tearing it.
type Service struct {
	store      ReadStore
	thresholds *ThresholdNotifier
	now        func() time.Time

	mu     sync.Mutex
	cached *DerivedState
}

func NewService(store ReadStore, notifier notify.Notifier) *Service {
	return &Service{
		store:      store,
		thresholds: NewThresholdNotifier(notifier),
		now:        time.Now,
	}
}

// Refresh reads a fresh snapshot and recomputes. On ErrNoActiveWallet the
// zero state is returned along with the signal; on any other store failure
// the error wraps ErrStoreUnavailable and the prior cache is untouched.
func (s *Service) Refresh(ctx context.Context) (DerivedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, err := s.store.GetWallet(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrNoActiveWallet) {
			return DerivedState{}, ledger.ErrNoActiveWallet
		}
		return DerivedState{}, fmt.Errorf("%w: get wallet: %v", ledger.ErrStoreUnavailable, err)
	}

	txs, err := s.store.ListTransactions(ctx, ledger.Filter{})
	if err != nil {
		return DerivedState{}, fmt.Errorf("%w: list transactions: %v", ledger.ErrStoreUnavailable, err)
	}

	limit, err := s.store.GetLimit(ctx)
	if err != nil && !errors.Is(err, ledger.ErrNoLimit) {
		return DerivedState{}, fmt.Errorf("%w: get limit: %v", ledger.ErrStoreUnavailable, err)
	}

	ds := Recompute(Snapshot{
		Wallet:       wallet,
		Transactions: txs,
		Limit:        limit,
		Now:          s.now(),
	})

	if state, fired := s.thresholds.Check(ctx, limit, ds.LimitSpend); fired {
		slog.DebugContext(ctx, "Threshold notification fired",
			applog.FieldRatio, ds.LimitRatio.String(), "state", fmt.Sprintf("%+v", state))
	}

	// Last write wins: a refresh superseded by a newer trigger simply gets
	// overwritten here on the next pass.
	s.cached = &ds
	return ds, nil
}

// Cached returns the last successfully computed state, if any.
func (s *Service) Cached() (DerivedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return DerivedState{}, false
	}
	return *s.cached, true
}

// ThresholdState exposes the notifier's current flags, for status views.
func (s *Service) ThresholdState() core.ThresholdState {
	return s.thresholds.State()
}
