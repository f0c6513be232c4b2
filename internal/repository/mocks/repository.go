// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
)

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) ListActiveForUpdate(ctx context.Context) ([]*domain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockMemberRepository) SumSavings(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMemberRepository) Update(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListRepayableForUpdate(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

type MockRepaymentRepository struct {
	mock.Mock
}

func (m *MockRepaymentRepository) Create(ctx context.Context, repayment *domain.LoanRepayment) error {
	args := m.Called(ctx, repayment)
	return args.Error(0)
}

func (m *MockRepaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanRepayment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanRepayment), args.Error(1)
}

func (m *MockRepaymentRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.LoanRepayment, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanRepayment), args.Error(1)
}

type MockSavingsRepository struct {
	mock.Mock
}

func (m *MockSavingsRepository) CreateSaving(ctx context.Context, saving *domain.Saving) error {
	args := m.Called(ctx, saving)
	return args.Error(0)
}

func (m *MockSavingsRepository) GetSaving(ctx context.Context, id int64) (*domain.Saving, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Saving), args.Error(1)
}

func (m *MockSavingsRepository) ListSavings(ctx context.Context) ([]*domain.Saving, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Saving), args.Error(1)
}

func (m *MockSavingsRepository) SumContributionsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockSavingsRepository) GetHistory(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SavingsHistory), args.Error(1)
}

func (m *MockSavingsRepository) GetHistoryForUpdate(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SavingsHistory), args.Error(1)
}

func (m *MockSavingsRepository) CreateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockSavingsRepository) UpdateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockSavingsRepository) AppendTransaction(ctx context.Context, tx *domain.SavingsTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockSavingsRepository) ListTransactions(ctx context.Context, memberID string) ([]*domain.SavingsTransaction, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SavingsTransaction), args.Error(1)
}

// MockStore hands the same mocked repositories to transactional and
// non-transactional callers. The error configured on WithinTx is returned as
// a commit failure after fn succeeds.
type MockStore struct {
	mock.Mock

	Members    *MockMemberRepository
	Loans      *MockLoanRepository
	Repayments *MockRepaymentRepository
	Savings    *MockSavingsRepository
}

// NewMockStore creates a store backed by fresh repository mocks
func NewMockStore() *MockStore {
	return &MockStore{
		Members:    &MockMemberRepository{},
		Loans:      &MockLoanRepository{},
		Repayments: &MockRepaymentRepository{},
		Savings:    &MockSavingsRepository{},
	}
}

func (m *MockStore) Repos() repository.Repos {
	return repository.Repos{
		Members:    m.Members,
		Loans:      m.Loans,
		Repayments: m.Repayments,
		Savings:    m.Savings,
	}
}

func (m *MockStore) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	args := m.Called(ctx)
	if err := fn(m.Repos()); err != nil {
		return err
	}
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	return nil
}

// AssertExpectations checks the store and every repository mock.
func (m *MockStore) AssertExpectations(t mock.TestingT) bool {
	return m.Mock.AssertExpectations(t) &&
		m.Members.AssertExpectations(t) &&
		m.Loans.AssertExpectations(t) &&
		m.Repayments.AssertExpectations(t) &&
		m.Savings.AssertExpectations(t)
}
