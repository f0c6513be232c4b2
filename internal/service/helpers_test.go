package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/documents"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
	"github.com/segyhp/sacco-ledger/internal/repository/memory"
)

var errInjected = errors.New("injected failure")

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			InitialDeposit:             "1000",
			DefaultMonthlyContribution: "1000",
			MinInterestRate:            "1",
			MaxInterestRate:            "100",
			MaxLoanTerm:                360,
			MaxDocumentSize:            1 << 10,
		},
	}
}

type fixture struct {
	store   *faultyStore
	members *MemberService
	loans   *LoanService
	savings *SavingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &faultyStore{Store: memory.NewStore()}
	cfg := testConfig()
	log := zap.NewNop()
	docs := documents.NewStore(afero.NewMemMapFs(), "/docs", cfg.Business.MaxDocumentSize)

	return &fixture{
		store:   store,
		members: NewMemberService(store, cache.Noop{}, cfg, log),
		loans:   NewLoanService(store, docs, cache.Noop{}, cfg, log),
		savings: NewSavingsService(store, cache.Noop{}, cfg, log),
	}
}

func (f *fixture) member(t *testing.T, email string) *domain.Member {
	t.Helper()
	m, err := f.members.CreateMember(context.Background(), &domain.CreateMemberRequest{
		Name:  "Member " + email,
		Email: email,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) activeLoan(t *testing.T, memberID, amount, rate string, term int) *domain.Loan {
	t.Helper()
	ctx := context.Background()
	loan, err := f.loans.CreateLoan(ctx, &domain.CreateLoanRequest{
		MemberID:     memberID,
		Amount:       money(amount),
		Purpose:      "school fees",
		LoanTerm:     term,
		InterestRate: money(rate),
	})
	require.NoError(t, err)

	loan, err = f.loans.ApproveLoan(ctx, loan.ID)
	require.NoError(t, err)
	return loan
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, got.Equal(money(want)), "want %s, got %s %v", want, got, msgAndArgs)
}

// faultyStore wraps the memory store and can fail chosen writes inside a
// unit of work.
type faultyStore struct {
	*memory.Store

	failLoanUpdateAt  int    // 1-based Loans.Update call to fail, 0 never
	failTransactionOf string // member whose savings transaction append fails
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return f.Store.WithinTx(ctx, func(r repository.Repos) error {
		r.Loans = &faultyLoans{LoanRepository: r.Loans, failAt: f.failLoanUpdateAt}
		r.Savings = &faultySavings{SavingsRepository: r.Savings, failMember: f.failTransactionOf}
		return fn(r)
	})
}

type faultyLoans struct {
	repository.LoanRepository
	failAt int
	calls  int
}

func (l *faultyLoans) Update(ctx context.Context, loan *domain.Loan) error {
	l.calls++
	if l.calls == l.failAt {
		return errInjected
	}
	return l.LoanRepository.Update(ctx, loan)
}

type faultySavings struct {
	repository.SavingsRepository
	failMember string
}

func (s *faultySavings) AppendTransaction(ctx context.Context, tx *domain.SavingsTransaction) error {
	if s.failMember != "" && tx.MemberID == s.failMember {
		return errInjected
	}
	return s.SavingsRepository.AppendTransaction(ctx, tx)
}

// ledgerSnapshot is every ledger row reachable from a set of members.
type ledgerSnapshot struct {
	Members      []*domain.Member
	Loans        []*domain.Loan
	Repayments   [][]*domain.LoanRepayment
	Histories    []*domain.SavingsHistory
	Transactions [][]*domain.SavingsTransaction
	Savings      []*domain.Saving
}

func snapshot(t *testing.T, store repository.Store, memberIDs ...string) ledgerSnapshot {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()
	var snap ledgerSnapshot

	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		m, err := repos.Members.GetByID(ctx, id)
		require.NoError(t, err)
		snap.Members = append(snap.Members, m)

		loans, err := repos.Loans.ListByMember(ctx, id)
		require.NoError(t, err)
		sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
		for _, l := range loans {
			snap.Loans = append(snap.Loans, l)
			rps, err := repos.Repayments.ListByLoan(ctx, l.ID)
			require.NoError(t, err)
			snap.Repayments = append(snap.Repayments, rps)
		}

		h, err := repos.Savings.GetHistory(ctx, id)
		require.NoError(t, err)
		snap.Histories = append(snap.Histories, h)

		txs, err := repos.Savings.ListTransactions(ctx, id)
		require.NoError(t, err)
		snap.Transactions = append(snap.Transactions, txs)
	}

	savings, err := repos.Savings.ListSavings(ctx)
	require.NoError(t, err)
	snap.Savings = savings
	return snap
}

// assertSavingsInvariant checks that the member balance, the history
// snapshot and the latest transaction agree, and that replaying the
// transactions gives the same balance.
func assertSavingsInvariant(t *testing.T, store repository.Store, memberID string) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()

	m, err := repos.Members.GetByID(ctx, memberID)
	require.NoError(t, err)
	h, err := repos.Savings.GetHistory(ctx, memberID)
	require.NoError(t, err)
	txs, err := repos.Savings.ListTransactions(ctx, memberID)
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	replayed := decimal.Zero
	for _, tx := range txs {
		replayed = replayed.Add(tx.Amount)
	}

	assertMoney(t, m.SavingsBalance.String(), h.CurrentSavingsBalance, "history")
	assertMoney(t, m.SavingsBalance.String(), txs[0].BalanceAfter, "latest transaction")
	assertMoney(t, m.SavingsBalance.String(), replayed, "replay")
}
