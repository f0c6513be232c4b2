package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SavingTypeMonthlyContribution = "Monthly Contribution"
	SavingTypeEmergencyFund       = "Emergency Fund"
)

const (
	SavingStatusCompleted = "Completed"
)

const (
	TransactionTypeDeposit    = "Deposit"
	TransactionTypeWithdrawal = "Withdrawal"
)

// IsSavingType reports whether t is a known deposit type.
func IsSavingType(t string) bool {
	return t == SavingTypeMonthlyContribution || t == SavingTypeEmergencyFund
}

// Saving is one deposit event. Append-only.
type Saving struct {
	ID        int64           `json:"id" db:"id"`
	MemberID  string          `json:"member_id" db:"member_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Date      time.Time       `json:"date" db:"date"`
	Type      string          `json:"type" db:"type"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// SavingsHistory is the per-member savings snapshot. CurrentSavingsBalance
// always equals Member.SavingsBalance.
type SavingsHistory struct {
	MemberID              string          `json:"member_id" db:"member_id"`
	CurrentSavingsBalance decimal.Decimal `json:"current_savings_balance" db:"current_savings_balance"`
	MonthlySavingsAmt     decimal.Decimal `json:"monthly_savings_amt" db:"monthly_savings_amt"`
	AccountStatus         string          `json:"account_status" db:"account_status"`
	DateJoined            time.Time       `json:"date_joined" db:"date_joined"`
	Version               int64           `json:"-" db:"version"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// SavingsTransaction is the append-only savings audit trail. Amount is signed
// (withdrawals are negative) so balances can be rebuilt by summation.
type SavingsTransaction struct {
	TransactionNo   string          `json:"transaction_no" db:"transaction_no"`
	Seq             int64           `json:"-" db:"seq"`
	MemberID        string          `json:"member_id" db:"member_id"`
	TransactionDate time.Time       `json:"transaction_date" db:"transaction_date"`
	TransactionType string          `json:"transaction_type" db:"transaction_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after" db:"balance_after"`
	Notes           string          `json:"notes" db:"notes"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// DTOs for requests and responses

type DepositRequest struct {
	MemberID string          `json:"member_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Type     string          `json:"type" validate:"omitempty,oneof='Monthly Contribution' 'Emergency Fund'"`
}

type WithdrawalRequest struct {
	MemberID string          `json:"member_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Notes    string          `json:"notes" validate:"max=255"`
}

type GroupDepositRequest struct {
	Date   string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,decimal_gt=0"`
	Type   string           `json:"type" validate:"omitempty,oneof='Monthly Contribution' 'Emergency Fund'"`
	Month  string           `json:"month"`
	Year   string           `json:"year" validate:"omitempty,numeric,len=4"`
	Notes  string           `json:"notes" validate:"max=255"`
}

type MemberSavings struct {
	History      *SavingsHistory       `json:"history"`
	Transactions []*SavingsTransaction `json:"transactions"`
}

type SavingsStats struct {
	TotalSavings         decimal.Decimal `json:"total_savings"`
	ActiveMembers        int             `json:"active_members"`
	MonthlyContributions decimal.Decimal `json:"monthly_contributions"`
}

// SavingsReceipt is what one deposit or withdrawal wrote. Saving is nil for
// withdrawals.
type SavingsReceipt struct {
	Saving      *Saving             `json:"saving,omitempty"`
	Transaction *SavingsTransaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
}

// GroupDepositResult reports a cohort contribution run.
type GroupDepositResult struct {
	Period   string            `json:"period"`
	Date     time.Time         `json:"date"`
	Count    int               `json:"count"`
	Total    decimal.Decimal   `json:"total"`
	Receipts []*SavingsReceipt `json:"receipts"`
}
