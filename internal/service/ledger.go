package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
	"github.com/segyhp/sacco-ledger/pkg/amortization"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/utils"
)

// The functions in this file are the per-entity ledger writes shared by the
// single and cohort operations. They must run inside a unit of work on rows
// the caller has locked, and they update the passed structs in place so a
// cohort touching the same member twice keeps its version current.

// applyRepayment applies one payment to an active loan. A nil proposed amount
// pays the scheduled target.
func applyRepayment(
	ctx context.Context,
	r repository.Repos,
	loan *domain.Loan,
	member *domain.Member,
	proposed *decimal.Decimal,
	date, now time.Time,
) (*domain.LoanRepayment, error) {
	if loan.Status != domain.LoanStatusActive {
		return nil, customError.WrapLoanNotActive(loan.ID, loan.Status)
	}

	res, err := amortization.Calculate(amortization.Input{
		Principal:         loan.Amount,
		AnnualRatePercent: loan.InterestRate,
		TermMonths:        loan.LoanTerm,
		CurrentBalance:    loan.RemainingBalance,
		ProposedPayment:   proposed,
	})
	if err != nil {
		return nil, err
	}

	repayment := &domain.LoanRepayment{
		ID:            utils.NewID("R"),
		LoanID:        loan.ID,
		Date:          date,
		Amount:        res.ActualPayment,
		PrincipalPaid: res.PrincipalPaid,
		InterestPaid:  res.InterestPortion,
		BalanceAfter:  res.NewBalance,
		Status:        domain.RepaymentStatusCompleted,
		CreatedAt:     now,
	}
	if err := r.Repayments.Create(ctx, repayment); err != nil {
		return nil, err
	}

	next := domain.LoanStatusActive
	if res.NewBalance.IsZero() {
		next = domain.LoanStatusPaid
	}
	if !domain.CanTransition(loan.Status, next) {
		return nil, customError.WrapInvalidLoanState(loan.ID, loan.Status, "repay")
	}
	loan.RemainingBalance = res.NewBalance
	loan.Status = next
	if err := r.Loans.Update(ctx, loan); err != nil {
		return nil, err
	}

	member.LoansBalance = decimal.Max(decimal.Zero, member.LoansBalance.Sub(res.PrincipalPaid))
	if err := r.Members.Update(ctx, member); err != nil {
		return nil, err
	}

	return repayment, nil
}

// deposit credits amount to the member across every savings ledger. history
// may be nil, in which case the snapshot is created.
func deposit(
	ctx context.Context,
	r repository.Repos,
	member *domain.Member,
	history *domain.SavingsHistory,
	amount decimal.Decimal,
	savingType, notes string,
	date, now time.Time,
) (*domain.SavingsReceipt, error) {
	saving := &domain.Saving{
		MemberID:  member.ID,
		Amount:    amount,
		Date:      date,
		Type:      savingType,
		Status:    domain.SavingStatusCompleted,
		CreatedAt: now,
	}
	if err := r.Savings.CreateSaving(ctx, saving); err != nil {
		return nil, err
	}

	newBalance := member.SavingsBalance.Add(amount)
	member.SavingsBalance = newBalance
	member.LastContribution = &date
	if err := r.Members.Update(ctx, member); err != nil {
		return nil, err
	}

	monthly := decimal.Zero
	if savingType == domain.SavingTypeMonthlyContribution {
		monthly = amount
	}
	if err := syncHistory(ctx, r, member, history, monthly, now); err != nil {
		return nil, err
	}

	tx, err := appendTransaction(ctx, r, member.ID, domain.TransactionTypeDeposit, amount, newBalance, notes, date, now)
	if err != nil {
		return nil, err
	}

	return &domain.SavingsReceipt{Saving: saving, Transaction: tx, Balance: newBalance}, nil
}

// withdraw debits amount from the member. No Saving record is written; the
// transaction carries a negative amount.
func withdraw(
	ctx context.Context,
	r repository.Repos,
	member *domain.Member,
	history *domain.SavingsHistory,
	amount decimal.Decimal,
	notes string,
	date, now time.Time,
) (*domain.SavingsReceipt, error) {
	if amount.GreaterThan(member.SavingsBalance) {
		return nil, customError.WrapInsufficientBalance(member.ID, amount, member.SavingsBalance)
	}

	newBalance := member.SavingsBalance.Sub(amount)
	member.SavingsBalance = newBalance
	if err := r.Members.Update(ctx, member); err != nil {
		return nil, err
	}

	if err := syncHistory(ctx, r, member, history, decimal.Zero, now); err != nil {
		return nil, err
	}

	tx, err := appendTransaction(ctx, r, member.ID, domain.TransactionTypeWithdrawal, amount.Neg(), newBalance, notes, date, now)
	if err != nil {
		return nil, err
	}

	return &domain.SavingsReceipt{Transaction: tx, Balance: newBalance}, nil
}

// syncHistory mirrors member.SavingsBalance into the snapshot, creating it
// with monthly as the recurring amount when absent.
func syncHistory(
	ctx context.Context,
	r repository.Repos,
	member *domain.Member,
	history *domain.SavingsHistory,
	monthly decimal.Decimal,
	now time.Time,
) error {
	if history == nil {
		return r.Savings.CreateHistory(ctx, &domain.SavingsHistory{
			MemberID:              member.ID,
			CurrentSavingsBalance: member.SavingsBalance,
			MonthlySavingsAmt:     monthly,
			AccountStatus:         member.Status,
			DateJoined:            member.JoinDate,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
	}

	history.CurrentSavingsBalance = member.SavingsBalance
	history.AccountStatus = member.Status
	return r.Savings.UpdateHistory(ctx, history)
}

func appendTransaction(
	ctx context.Context,
	r repository.Repos,
	memberID, txType string,
	amount, balanceAfter decimal.Decimal,
	notes string,
	date, now time.Time,
) (*domain.SavingsTransaction, error) {
	tx := &domain.SavingsTransaction{
		TransactionNo:   utils.NewID("TX"),
		MemberID:        memberID,
		TransactionDate: date,
		TransactionType: txType,
		Amount:          amount,
		BalanceAfter:    balanceAfter,
		Notes:           notes,
		CreatedAt:       now,
	}
	if err := r.Savings.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
