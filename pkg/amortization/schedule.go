package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/pkg/utils"
)

// maxPeriods caps a projection; a level installment always exceeds a month of
// interest, so real schedules end long before this.
const maxPeriods = 1200

// Entry is one projected installment.
type Entry struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Payment          decimal.Decimal `json:"payment"`
	Interest         decimal.Decimal `json:"interest"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Project lists the scheduled payments that would retire balance, starting one
// month after start. Each row is exactly what a scheduled cohort run would
// record for that month.
func Project(principal, annualRatePercent decimal.Decimal, termMonths int, balance decimal.Decimal, start time.Time) ([]Entry, error) {
	entries := make([]Entry, 0, termMonths)

	for period := 1; balance.IsPositive() && period <= maxPeriods; period++ {
		res, err := Calculate(Input{
			Principal:         principal,
			AnnualRatePercent: annualRatePercent,
			TermMonths:        termMonths,
			CurrentBalance:    balance,
		})
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Period:           period,
			DueDate:          utils.CalculateDueDate(start, period),
			Payment:          res.ActualPayment,
			Interest:         res.InterestPortion,
			Principal:        res.PrincipalPaid,
			RemainingBalance: res.NewBalance,
		})
		balance = res.NewBalance
	}

	return entries, nil
}
