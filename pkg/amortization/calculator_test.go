package amortization

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/sacco-ledger/pkg/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestFixedInstallment(t *testing.T) {
	tests := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		term      int
		expected  decimal.Decimal
	}{
		{
			name:      "standard twelve month loan",
			principal: dec("50000"),
			rate:      dec("12"),
			term:      12,
			expected:  dec("4442.44"),
		},
		{
			name:      "two year loan at ten percent",
			principal: dec("100000"),
			rate:      dec("10"),
			term:      24,
			expected:  dec("4614.49"),
		},
		{
			name:      "single month term",
			principal: dec("1000"),
			rate:      dec("100"),
			term:      1,
			expected:  dec("1083.33"),
		},
		{
			name:      "zero rate splits evenly and rounds up",
			principal: dec("1000"),
			rate:      decimal.Zero,
			term:      3,
			expected:  dec("333.34"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixedInstallment(tt.principal, tt.rate, tt.term)
			assert.True(t, result.Equal(tt.expected),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestCalculate_FirstScheduledPayment(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("50000"),
		ProposedPayment:   ptr(dec("4442.44")),
	})
	require.NoError(t, err)

	assert.False(t, res.IsFinalPayment)
	assert.True(t, res.ActualPayment.Equal(dec("4442.44")))
	assert.True(t, res.InterestPortion.Equal(dec("500.00")), "interest %s", res.InterestPortion)
	assert.True(t, res.PrincipalPaid.Equal(dec("3942.44")), "principal %s", res.PrincipalPaid)
	assert.True(t, res.NewBalance.Equal(dec("46057.56")), "balance %s", res.NewBalance)
}

func TestCalculate_FinalPayment(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("3000"),
	})
	require.NoError(t, err)

	assert.True(t, res.IsFinalPayment)
	assert.True(t, res.FixedInstallment.Equal(dec("4442.44")))
	assert.True(t, res.InterestDue.Equal(dec("30.00")))
	assert.True(t, res.TargetPayment.Equal(dec("3030.00")))
	assert.True(t, res.ActualPayment.Equal(dec("3030.00")))
	assert.True(t, res.PrincipalPaid.Equal(dec("3000")))
	assert.True(t, res.NewBalance.IsZero())
}

func TestCalculate_ScheduledRunUsesInstallment(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("50000"),
	})
	require.NoError(t, err)

	assert.True(t, res.ActualPayment.Equal(res.FixedInstallment))
	assert.True(t, res.ActualPayment.Equal(res.TargetPayment))
}

func TestCalculate_PaymentBelowInterest(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("50000"),
		ProposedPayment:   ptr(dec("200")),
	})
	require.NoError(t, err)

	assert.True(t, res.PrincipalPaid.IsZero())
	assert.True(t, res.InterestPortion.Equal(dec("200")))
	assert.True(t, res.NewBalance.Equal(dec("50000")))
}

func TestCalculate_PaymentClearsBalanceExactly(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("10000"),
		ProposedPayment:   ptr(dec("10100")),
	})
	require.NoError(t, err)

	assert.True(t, res.NewBalance.IsZero())
	assert.True(t, res.PrincipalPaid.Equal(dec("10000")))
	assert.True(t, res.InterestPortion.Equal(dec("100")))
}

func TestCalculate_Errors(t *testing.T) {
	valid := Input{
		Principal:         dec("50000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        12,
		CurrentBalance:    dec("10000"),
	}

	tests := []struct {
		name     string
		mutate   func(in *Input)
		sentinel error
		kind     customError.Kind
	}{
		{
			name:     "payment above balance plus interest",
			mutate:   func(in *Input) { in.ProposedPayment = ptr(dec("10100.01")) },
			sentinel: customError.ErrPaymentExceedsObligation,
			kind:     customError.KindInsufficientFunds,
		},
		{
			name:     "zero payment",
			mutate:   func(in *Input) { in.ProposedPayment = ptr(decimal.Zero) },
			sentinel: customError.ErrInvalidAmount,
			kind:     customError.KindValidation,
		},
		{
			name:     "non positive principal",
			mutate:   func(in *Input) { in.Principal = decimal.Zero },
			sentinel: customError.ErrInvalidAmount,
			kind:     customError.KindValidation,
		},
		{
			name:     "rate above one hundred",
			mutate:   func(in *Input) { in.AnnualRatePercent = dec("100.5") },
			sentinel: customError.ErrInvalidInterestRate,
			kind:     customError.KindValidation,
		},
		{
			name:     "zero term",
			mutate:   func(in *Input) { in.TermMonths = 0 },
			sentinel: customError.ErrInvalidLoanTerm,
			kind:     customError.KindValidation,
		},
		{
			name:     "term above limit",
			mutate:   func(in *Input) { in.TermMonths = MaxTermMonths + 1 },
			sentinel: customError.ErrInvalidLoanTerm,
			kind:     customError.KindValidation,
		},
		{
			// 2^32+1 would wrap to a one-month exponent.
			name:     "term beyond int32",
			mutate:   func(in *Input) { in.TermMonths = 1<<32 + 1 },
			sentinel: customError.ErrInvalidLoanTerm,
			kind:     customError.KindValidation,
		},
		{
			name:     "balance above principal",
			mutate:   func(in *Input) { in.CurrentBalance = dec("50000.01") },
			sentinel: customError.ErrInvalidAmount,
			kind:     customError.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := Calculate(in)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Equal(t, tt.kind, customError.KindOf(err))
		})
	}
}

func TestCalculate_LongestTerm(t *testing.T) {
	res, err := Calculate(Input{
		Principal:         dec("1000000"),
		AnnualRatePercent: dec("12"),
		TermMonths:        MaxTermMonths,
		CurrentBalance:    dec("1000000"),
	})
	require.NoError(t, err)
	// Just above the monthly interest of 10000.00.
	assert.True(t, res.FixedInstallment.Equal(dec("10000.07")), "got %s", res.FixedInstallment)
	assert.True(t, res.PrincipalPaid.Equal(dec("0.07")), "got %s", res.PrincipalPaid)
}

func TestCalculate_SplitAlwaysAddsUp(t *testing.T) {
	balance := dec("50000")
	payments := []string{"4442.44", "100", "499.99", "500", "9000", "4442.44"}

	for _, p := range payments {
		res, err := Calculate(Input{
			Principal:         dec("50000"),
			AnnualRatePercent: dec("12"),
			TermMonths:        12,
			CurrentBalance:    balance,
			ProposedPayment:   ptr(dec(p)),
		})
		require.NoError(t, err)

		assert.True(t, res.PrincipalPaid.Add(res.InterestPortion).Equal(res.ActualPayment))
		assert.True(t, res.NewBalance.LessThanOrEqual(balance))
		assert.False(t, res.NewBalance.IsNegative())
		balance = res.NewBalance
	}
}

func TestProject(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	entries, err := Project(dec("50000"), dec("12"), 12, dec("50000"), start)
	require.NoError(t, err)
	require.Len(t, entries, 12)

	first := entries[0]
	assert.Equal(t, 1, first.Period)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), first.DueDate)
	assert.True(t, first.Payment.Equal(dec("4442.44")))
	assert.True(t, first.RemainingBalance.Equal(dec("46057.56")))

	last := entries[len(entries)-1]
	assert.True(t, last.RemainingBalance.IsZero())

	totalPrincipal := decimal.Zero
	for _, e := range entries {
		totalPrincipal = totalPrincipal.Add(e.Principal)
	}
	assert.True(t, totalPrincipal.Equal(dec("50000")))
}

func TestProject_ZeroRateKeepsTerm(t *testing.T) {
	entries, err := Project(dec("1000"), decimal.Zero, 3, dec("1000"), time.Now())
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.True(t, entries[2].Payment.Equal(dec("333.32")))
	assert.True(t, entries[2].RemainingBalance.IsZero())
}

func TestProject_PaidLoanIsEmpty(t *testing.T) {
	entries, err := Project(dec("1000"), dec("12"), 3, decimal.Zero, time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
