// Package amortization implements the flat monthly amortizing-loan model used
// for every repayment: a fixed installment retires principal and interest over
// the loan term, interest accrues monthly on the outstanding balance, and the
// final installment is whatever clears the balance.
//
// Everything here is pure. Amounts are rounded to cents where they would be
// written to a ledger, so a Result can be persisted as-is.
package amortization

import (
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/utils"
)

// MaxAnnualRatePercent bounds the annual rate the calculator accepts.
var MaxAnnualRatePercent = decimal.NewFromInt(100)

// MaxTermMonths bounds the term the calculator accepts.
const MaxTermMonths = 1200

var (
	hundred     = decimal.NewFromInt(100)
	monthsInYr  = decimal.NewFromInt(12)
	factorScale = int32(16)
)

// Input describes the loan at the moment a payment is applied.
type Input struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
	CurrentBalance    decimal.Decimal

	// ProposedPayment is the amount a caller wants to apply. Nil means the
	// scheduled target payment is used.
	ProposedPayment *decimal.Decimal
}

// Result is the split of one payment.
type Result struct {
	FixedInstallment decimal.Decimal `json:"fixed_installment"`
	InterestDue      decimal.Decimal `json:"interest_due"`
	TargetPayment    decimal.Decimal `json:"target_payment"`
	ActualPayment    decimal.Decimal `json:"actual_payment"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PrincipalPaid    decimal.Decimal `json:"principal_paid"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	IsFinalPayment   bool            `json:"is_final_payment"`
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(monthsInYr)
}

// FixedInstallment returns the level monthly payment that retires principal
// over termMonths:
//
//	P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degenerates to P / n, rounded up so n payments always suffice.
func FixedInstallment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	r := MonthlyRate(annualRatePercent)
	n := decimal.NewFromInt(int64(termMonths))

	if r.IsZero() {
		return principal.Div(n).RoundUp(utils.MoneyPlaces)
	}

	// The base is always > 1, so PowInt32 cannot fail.
	factor, _ := decimal.NewFromInt(1).Add(r).PowInt32(int32(termMonths))
	factor = factor.Round(factorScale)

	installment := principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	return utils.RoundMoney(installment)
}

// InterestDue is one month of interest on balance, rounded to cents.
func InterestDue(balance, annualRatePercent decimal.Decimal) decimal.Decimal {
	return utils.RoundMoney(balance.Mul(MonthlyRate(annualRatePercent)))
}

// Calculate splits a payment into interest and principal. It never touches
// storage and returns the same Result for the same Input.
func Calculate(in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	installment := FixedInstallment(in.Principal, in.AnnualRatePercent, in.TermMonths)
	interestDue := InterestDue(in.CurrentBalance, in.AnnualRatePercent)
	obligation := in.CurrentBalance.Add(interestDue)

	isFinal := in.CurrentBalance.LessThanOrEqual(installment)
	target := installment
	if isFinal {
		target = obligation
	}

	actual := target
	if in.ProposedPayment != nil {
		proposed := utils.RoundMoney(*in.ProposedPayment)
		if !proposed.IsPositive() {
			return Result{}, customError.WrapInvalidAmount("payment", *in.ProposedPayment)
		}
		if proposed.GreaterThan(obligation) {
			return Result{}, customError.WrapPaymentExceedsObligation(proposed, obligation)
		}
		actual = proposed
	}

	principalPortion := decimal.Max(decimal.Zero, actual.Sub(interestDue))
	principalPaid := decimal.Min(principalPortion, in.CurrentBalance)
	newBalance := decimal.Max(decimal.Zero, in.CurrentBalance.Sub(principalPaid))

	return Result{
		FixedInstallment: installment,
		InterestDue:      interestDue,
		TargetPayment:    target,
		ActualPayment:    actual,
		InterestPortion:  actual.Sub(principalPaid),
		PrincipalPaid:    principalPaid,
		NewBalance:       newBalance,
		IsFinalPayment:   isFinal,
	}, nil
}

func validate(in Input) error {
	if !in.Principal.IsPositive() {
		return customError.WrapInvalidAmount("principal", in.Principal)
	}
	if in.AnnualRatePercent.IsNegative() || in.AnnualRatePercent.GreaterThan(MaxAnnualRatePercent) {
		return customError.WrapInvalidInterestRate(in.AnnualRatePercent, decimal.Zero, MaxAnnualRatePercent)
	}
	if in.TermMonths < 1 || in.TermMonths > MaxTermMonths {
		return customError.WrapInvalidLoanTerm(in.TermMonths, MaxTermMonths)
	}
	if in.CurrentBalance.IsNegative() || in.CurrentBalance.GreaterThan(in.Principal) {
		return customError.WrapValidation(
			"current balance must be between zero and the principal",
			customError.ErrInvalidAmount,
		)
	}
	return nil
}
