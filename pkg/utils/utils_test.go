package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "rounds half up",
			input:    decimal.RequireFromString("4442.4394"),
			expected: decimal.RequireFromString("4442.44"),
		},
		{
			name:     "keeps cents",
			input:    decimal.RequireFromString("500.00"),
			expected: decimal.NewFromInt(500),
		},
		{
			name:     "rounds down",
			input:    decimal.RequireFromString("0.004"),
			expected: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundMoney(tt.input)
			assert.True(t, result.Equal(tt.expected),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestCalculateDueDate(t *testing.T) {
	baseDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		startDate  time.Time
		termMonths int
		expected   time.Time
	}{
		{
			name:       "one month",
			startDate:  baseDate,
			termMonths: 1,
			expected:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "twelve months",
			startDate:  baseDate,
			termMonths: 12,
			expected:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "end of month normalises",
			startDate:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			termMonths: 1,
			expected:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateDueDate(tt.startDate, tt.termMonths)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStartOfMonthAndMonthKey(t *testing.T) {
	date := time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(date))
	assert.Equal(t, "2024-05", MonthKey(date))
}

func TestPeriodLabel(t *testing.T) {
	date := time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "May 2024", PeriodLabel(date, "", ""))
	assert.Equal(t, "June 2023", PeriodLabel(date, "June", "2023"))
}

func TestNewID(t *testing.T) {
	first := NewID("L")
	second := NewID("L")

	require.True(t, strings.HasPrefix(first, "L-"))
	assert.Len(t, first, 14)
	assert.NotEqual(t, first, second)
}
