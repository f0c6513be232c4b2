// Package memory is an in-process implementation of the repositories and the
// unit of work. A transaction works on a private copy of the whole data set
// and swaps it in on commit; transactions are serialized, so a copy is never
// stale when it is published.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
)

type state struct {
	members      map[string]domain.Member
	loans        map[string]domain.Loan
	repayments   []domain.LoanRepayment
	savings      []domain.Saving
	histories    map[string]domain.SavingsHistory
	transactions []domain.SavingsTransaction
	nextSavingID int64
	nextSeq      int64
}

func newState() *state {
	return &state{
		members:   make(map[string]domain.Member),
		loans:     make(map[string]domain.Loan),
		histories: make(map[string]domain.SavingsHistory),
	}
}

func (s *state) clone() *state {
	return &state{
		members:      maps.Clone(s.members),
		loans:        maps.Clone(s.loans),
		repayments:   slices.Clone(s.repayments),
		savings:      slices.Clone(s.savings),
		histories:    maps.Clone(s.histories),
		transactions: slices.Clone(s.transactions),
		nextSavingID: s.nextSavingID,
		nextSeq:      s.nextSeq,
	}
}

type Store struct {
	txMu sync.Mutex   // one writer at a time
	mu   sync.RWMutex // guards data
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Repos() repository.Repos {
	return reposFor(&access{store: s})
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(reposFor(&access{store: s, tx: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func aborted(err error) error {
	return fmt.Errorf("%w: %w", repository.ErrTxAborted, err)
}

// access routes repository calls either to a transaction's private copy or,
// outside a transaction, to the shared data under the store's locks.
type access struct {
	store *Store
	tx    *state
}

func (a *access) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	if a.tx != nil {
		return fn(a.tx)
	}
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	return fn(a.store.data)
}

func (a *access) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	if a.tx != nil {
		return fn(a.tx)
	}
	a.store.txMu.Lock()
	defer a.store.txMu.Unlock()
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.data)
}

func reposFor(a *access) repository.Repos {
	return repository.Repos{
		Members:    &memberRepository{a},
		Loans:      &loanRepository{a},
		Repayments: &repaymentRepository{a},
		Savings:    &savingsRepository{a},
	}
}
