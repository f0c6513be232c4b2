package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every ledger amount is stored with.
const MoneyPlaces = 2

// RoundMoney rounds an amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// CalculateDueDate returns the date a loan of the given term falls due.
// Month arithmetic follows time.AddDate, so Jan 31 + 1 month normalises to early March.
func CalculateDueDate(start time.Time, termMonths int) time.Time {
	return start.AddDate(0, termMonths, 0)
}

// StartOfMonth returns midnight on the first day of t's month, in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// PeriodLabel builds the bookkeeping label of a cohort run. Month and year
// default to the run date when empty.
func PeriodLabel(date time.Time, month, year string) string {
	if month == "" {
		month = date.Month().String()
	}
	if year == "" {
		year = date.Format("2006")
	}
	return month + " " + year
}

// NewID returns a prefixed, collision-free identifier such as L-3f2a9c1e4b7d.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(id[:12])
}
