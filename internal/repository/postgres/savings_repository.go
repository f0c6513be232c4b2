package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/internal/domain"
)

const (
	savingColumns      = `id, member_id, amount, date, type, status, created_at`
	historyColumns     = `member_id, current_savings_balance, monthly_savings_amt, account_status, date_joined, version, created_at, updated_at`
	transactionColumns = `transaction_no, seq, member_id, transaction_date, transaction_type, amount, balance_after, notes, created_at`
)

type savingsRepository struct {
	db sqlx.ExtContext
}

func (r *savingsRepository) CreateSaving(ctx context.Context, saving *domain.Saving) error {
	query := `
		INSERT INTO savings (member_id, amount, date, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	row := r.db.QueryRowxContext(ctx, query,
		saving.MemberID,
		saving.Amount,
		saving.Date,
		saving.Type,
		saving.Status,
		saving.CreatedAt,
	)
	return classify(row.Scan(&saving.ID))
}

func (r *savingsRepository) GetSaving(ctx context.Context, id int64) (*domain.Saving, error) {
	var saving domain.Saving
	err := sqlx.GetContext(ctx, r.db, &saving, `SELECT `+savingColumns+` FROM savings WHERE id = $1`, id)
	if err != nil {
		return nil, classify(err)
	}
	return &saving, nil
}

func (r *savingsRepository) ListSavings(ctx context.Context) ([]*domain.Saving, error) {
	var savings []*domain.Saving
	err := sqlx.SelectContext(ctx, r.db, &savings, `SELECT `+savingColumns+` FROM savings ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, classify(err)
	}
	return savings, nil
}

func (r *savingsRepository) SumContributionsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM savings
		WHERE type = $1 AND status = $2 AND date >= $3
	`

	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &total, query,
		domain.SavingTypeMonthlyContribution, domain.SavingStatusCompleted, since)
	return total, classify(err)
}

func (r *savingsRepository) GetHistory(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	return r.getHistory(ctx, `SELECT `+historyColumns+` FROM savings_histories WHERE member_id = $1`, memberID)
}

func (r *savingsRepository) GetHistoryForUpdate(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	return r.getHistory(ctx, `SELECT `+historyColumns+` FROM savings_histories WHERE member_id = $1 FOR UPDATE`, memberID)
}

func (r *savingsRepository) getHistory(ctx context.Context, query, memberID string) (*domain.SavingsHistory, error) {
	var history domain.SavingsHistory
	if err := sqlx.GetContext(ctx, r.db, &history, query, memberID); err != nil {
		return nil, classify(err)
	}
	return &history, nil
}

func (r *savingsRepository) CreateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	query := `
		INSERT INTO savings_histories (member_id, current_savings_balance, monthly_savings_amt, account_status,
			date_joined, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		history.MemberID,
		history.CurrentSavingsBalance,
		history.MonthlySavingsAmt,
		history.AccountStatus,
		history.DateJoined,
		history.Version,
		history.CreatedAt,
		history.UpdatedAt,
	)
	return classify(err)
}

func (r *savingsRepository) UpdateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	query := `
		UPDATE savings_histories
		SET current_savings_balance = $3, monthly_savings_amt = $4, account_status = $5,
			version = version + 1, updated_at = $6
		WHERE member_id = $1 AND version = $2
	`

	now := time.Now()
	err := exactlyOne(r.db.ExecContext(ctx, query,
		history.MemberID,
		history.Version,
		history.CurrentSavingsBalance,
		history.MonthlySavingsAmt,
		history.AccountStatus,
		now,
	))
	if err != nil {
		return err
	}

	history.Version++
	history.UpdatedAt = now
	return nil
}

func (r *savingsRepository) AppendTransaction(ctx context.Context, tx *domain.SavingsTransaction) error {
	query := `
		INSERT INTO savings_transactions (transaction_no, member_id, transaction_date, transaction_type,
			amount, balance_after, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`

	row := r.db.QueryRowxContext(ctx, query,
		tx.TransactionNo,
		tx.MemberID,
		tx.TransactionDate,
		tx.TransactionType,
		tx.Amount,
		tx.BalanceAfter,
		tx.Notes,
		tx.CreatedAt,
	)
	return classify(row.Scan(&tx.Seq))
}

func (r *savingsRepository) ListTransactions(ctx context.Context, memberID string) ([]*domain.SavingsTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM savings_transactions WHERE member_id = $1 ORDER BY seq DESC`

	var txs []*domain.SavingsTransaction
	if err := sqlx.SelectContext(ctx, r.db, &txs, query, memberID); err != nil {
		return nil, classify(err)
	}
	return txs, nil
}
