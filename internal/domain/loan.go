package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanStatusPending  = "Pending"
	LoanStatusActive   = "Active"
	LoanStatusRejected = "Rejected"
	LoanStatusPaid     = "Paid"
)

const (
	RepaymentStatusCompleted = "Completed"
)

// Loan document kinds.
const (
	DocumentEmploymentContract = "employment-contract"
	DocumentBankStatements     = "bank-statements"
	DocumentIDDocument         = "id-document"
)

var loanTransitions = map[string][]string{
	LoanStatusPending: {LoanStatusActive, LoanStatusRejected},
	LoanStatusActive:  {LoanStatusActive, LoanStatusPaid},
}

// CanTransition reports whether a loan in status from may move to status to.
// Rejected and Paid are terminal.
func CanTransition(from, to string) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Loan represents a loan entity
type Loan struct {
	ID                 string          `json:"id" db:"id"`
	MemberID           string          `json:"member_id" db:"member_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	Purpose            string          `json:"purpose" db:"purpose"`
	Status             string          `json:"status" db:"status"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	LoanTerm           int             `json:"loan_term" db:"loan_term"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance" db:"remaining_balance"`
	ApplicationDate    time.Time       `json:"application_date" db:"application_date"`
	DateIssued         *time.Time      `json:"date_issued,omitempty" db:"date_issued"`
	DueDate            time.Time       `json:"due_date" db:"due_date"`
	EmploymentContract string          `json:"-" db:"employment_contract"`
	BankStatements     string          `json:"-" db:"bank_statements"`
	IDDocument         string          `json:"-" db:"id_document"`
	Version            int64           `json:"-" db:"version"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`

	Repayments []*LoanRepayment `json:"repayments,omitempty" db:"-"`
}

// DocumentRef returns the stored reference of a document kind and whether the
// kind is known at all.
func (l *Loan) DocumentRef(kind string) (string, bool) {
	switch kind {
	case DocumentEmploymentContract:
		return l.EmploymentContract, true
	case DocumentBankStatements:
		return l.BankStatements, true
	case DocumentIDDocument:
		return l.IDDocument, true
	}
	return "", false
}

// SetDocumentRef records ref against a document kind.
func (l *Loan) SetDocumentRef(kind, ref string) bool {
	switch kind {
	case DocumentEmploymentContract:
		l.EmploymentContract = ref
	case DocumentBankStatements:
		l.BankStatements = ref
	case DocumentIDDocument:
		l.IDDocument = ref
	default:
		return false
	}
	return true
}

// LoanRepayment is an append-only repayment ledger entry.
type LoanRepayment struct {
	ID            string          `json:"repayment_id" db:"id"`
	LoanID        string          `json:"loan_id" db:"loan_id"`
	Date          time.Time       `json:"date" db:"date"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PrincipalPaid decimal.Decimal `json:"principal_paid" db:"principal_paid"`
	InterestPaid  decimal.Decimal `json:"interest_paid" db:"interest_paid"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	MemberID     string          `json:"member_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Purpose      string          `json:"purpose" validate:"required"`
	LoanTerm     int             `json:"loan_term" validate:"gte=1"`
	InterestRate decimal.Decimal `json:"interest_rate" validate:"decimal_gt=0"`
}

type RecordRepaymentRequest struct {
	LoanID string          `json:"loan_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
}

type GroupRepaymentRequest struct {
	Date  string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Month string `json:"month"`
	Year  string `json:"year" validate:"omitempty,numeric,len=4"`
}

type MonthlyLoanBalance struct {
	Month       string          `json:"month"`
	LoanBalance decimal.Decimal `json:"loan_balance"`
}

// GroupRepaymentResult reports a cohort repayment run. Repayments are in
// processing order.
type GroupRepaymentResult struct {
	Period     string           `json:"period"`
	Date       time.Time        `json:"date"`
	Count      int              `json:"count"`
	Total      decimal.Decimal  `json:"total"`
	Repayments []*LoanRepayment `json:"repayments"`
}
