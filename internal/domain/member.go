package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MemberStatusActive   = "Active"
	MemberStatusInactive = "Inactive"
)

// Member is a cooperative member. SavingsBalance and LoansBalance mirror the
// savings ledger and the outstanding principal of the member's active loans;
// they only change inside the unit of work that writes the matching ledger entry.
type Member struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Email            string          `json:"email" db:"email"`
	PfNo             string          `json:"pf_no" db:"pf_no"`
	JobTitle         string          `json:"job_title" db:"job_title"`
	Phone            string          `json:"phone" db:"phone"`
	Address          string          `json:"address" db:"address"`
	JoinDate         time.Time       `json:"join_date" db:"join_date"`
	Status           string          `json:"status" db:"status"`
	SavingsBalance   decimal.Decimal `json:"savings_balance" db:"savings_balance"`
	LoansBalance     decimal.Decimal `json:"loans_balance" db:"loans_balance"`
	LastContribution *time.Time      `json:"last_contribution,omitempty" db:"last_contribution"`
	Version          int64           `json:"-" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the member may take part in contributions and loans.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// DTOs for requests and responses

type CreateMemberRequest struct {
	ID                string          `json:"id" validate:"omitempty,max=32"`
	Name              string          `json:"name" validate:"required"`
	Email             string          `json:"email" validate:"required,email"`
	PfNo              string          `json:"pf_no"`
	JobTitle          string          `json:"job_title"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	JoinDate          string          `json:"join_date" validate:"omitempty,datetime=2006-01-02"`
	MonthlySavingsAmt decimal.Decimal `json:"monthly_savings_amt" validate:"decimal_gte=0"`
}

type UpdateMemberRequest struct {
	Name              *string          `json:"name" validate:"omitempty,min=1"`
	Email             *string          `json:"email" validate:"omitempty,email"`
	PfNo              *string          `json:"pf_no"`
	JobTitle          *string          `json:"job_title"`
	Phone             *string          `json:"phone"`
	Address           *string          `json:"address"`
	Status            *string          `json:"status" validate:"omitempty,oneof=Active Inactive"`
	MonthlySavingsAmt *decimal.Decimal `json:"monthly_savings_amt" validate:"omitempty,decimal_gte=0"`
}

// MemberSummary is the cached balance view of a member.
type MemberSummary struct {
	MemberID         string          `json:"member_id"`
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	SavingsBalance   decimal.Decimal `json:"savings_balance"`
	LoansBalance     decimal.Decimal `json:"loans_balance"`
	ActiveLoans      int             `json:"active_loans"`
	PendingLoans     int             `json:"pending_loans"`
	LastContribution *time.Time      `json:"last_contribution,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// LedgerReport compares every balance mirror of a member with the ledgers
// that justify it.
type LedgerReport struct {
	MemberID string `json:"member_id"`

	SavingsBalance       decimal.Decimal `json:"savings_balance"`
	HistoryBalance       decimal.Decimal `json:"history_balance"`
	LatestBalanceAfter   decimal.Decimal `json:"latest_balance_after"`
	ReplayedBalance      decimal.Decimal `json:"replayed_balance"`
	TransactionCount     int             `json:"transaction_count"`
	LoansBalance         decimal.Decimal `json:"loans_balance"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`

	Discrepancies []string `json:"discrepancies,omitempty"`
}

// Consistent reports whether no discrepancy was found.
func (r *LedgerReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}
