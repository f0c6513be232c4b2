package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/internal/domain"
)

// Storage errors shared by every implementation. Missing rows are reported
// with sql.ErrNoRows.
var (
	// ErrVersionConflict is returned when an update lost a compare-and-swap on
	// the row version.
	ErrVersionConflict = errors.New("repository: version conflict")

	// ErrTxAborted is returned when the storage engine aborted the transaction
	// (serialization failure, deadlock, lock or statement timeout).
	ErrTxAborted = errors.New("repository: transaction aborted")

	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("repository: duplicate key")
)

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	// Create creates a new member
	Create(ctx context.Context, member *domain.Member) error

	// GetByID retrieves a member by ID
	GetByID(ctx context.Context, id string) (*domain.Member, error)

	// GetByIDForUpdate retrieves a member and holds its row lock until the
	// surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error)

	// List retrieves all members, most recently updated first
	List(ctx context.Context) ([]*domain.Member, error)

	// ListActiveForUpdate locks and returns every active member ordered by ID
	ListActiveForUpdate(ctx context.Context) ([]*domain.Member, error)

	// CountActive counts active members
	CountActive(ctx context.Context) (int, error)

	// SumSavings totals every member's savings balance
	SumSavings(ctx context.Context) (decimal.Decimal, error)

	// Update writes the member if its version still matches and bumps the version
	Update(ctx context.Context, member *domain.Member) error
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by ID
	GetByID(ctx context.Context, id string) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and holds its row lock
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error)

	// List retrieves all loans, most recently updated first
	List(ctx context.Context) ([]*domain.Loan, error)

	// ListByMember retrieves a member's loans, most recently updated first
	ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error)

	// ListRepayableForUpdate locks and returns every active loan whose member
	// is active, ordered by loan ID
	ListRepayableForUpdate(ctx context.Context) ([]*domain.Loan, error)

	// Update writes the loan if its version still matches and bumps the version
	Update(ctx context.Context, loan *domain.Loan) error
}

// RepaymentRepository defines the interface for the repayment ledger
type RepaymentRepository interface {
	// Create appends a repayment
	Create(ctx context.Context, repayment *domain.LoanRepayment) error

	// ListByLoan retrieves a loan's repayments, newest first
	ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanRepayment, error)

	// ListByMember retrieves repayments of all the member's loans, oldest first
	ListByMember(ctx context.Context, memberID string) ([]*domain.LoanRepayment, error)
}

// SavingsRepository defines the interface for the savings ledgers
type SavingsRepository interface {
	// CreateSaving appends a deposit record and assigns its ID
	CreateSaving(ctx context.Context, saving *domain.Saving) error

	// GetSaving retrieves one deposit record
	GetSaving(ctx context.Context, id int64) (*domain.Saving, error)

	// ListSavings retrieves deposit records, newest first
	ListSavings(ctx context.Context) ([]*domain.Saving, error)

	// SumContributionsSince totals completed monthly contributions dated on or after since
	SumContributionsSince(ctx context.Context, since time.Time) (decimal.Decimal, error)

	// GetHistory retrieves a member's savings snapshot
	GetHistory(ctx context.Context, memberID string) (*domain.SavingsHistory, error)

	// GetHistoryForUpdate retrieves a member's savings snapshot and holds its row lock
	GetHistoryForUpdate(ctx context.Context, memberID string) (*domain.SavingsHistory, error)

	// CreateHistory creates a member's savings snapshot
	CreateHistory(ctx context.Context, history *domain.SavingsHistory) error

	// UpdateHistory writes the snapshot if its version still matches
	UpdateHistory(ctx context.Context, history *domain.SavingsHistory) error

	// AppendTransaction appends to the savings audit trail and assigns Seq
	AppendTransaction(ctx context.Context, tx *domain.SavingsTransaction) error

	// ListTransactions retrieves a member's savings transactions, newest first
	ListTransactions(ctx context.Context, memberID string) ([]*domain.SavingsTransaction, error)
}
