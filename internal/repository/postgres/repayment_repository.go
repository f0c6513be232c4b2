package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/sacco-ledger/internal/domain"
)

const repaymentColumns = `id, loan_id, date, amount, principal_paid, interest_paid, balance_after, status, created_at`

type repaymentRepository struct {
	db sqlx.ExtContext
}

func (r *repaymentRepository) Create(ctx context.Context, repayment *domain.LoanRepayment) error {
	query := `
		INSERT INTO loan_repayments (id, loan_id, date, amount, principal_paid, interest_paid, balance_after, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		repayment.ID,
		repayment.LoanID,
		repayment.Date,
		repayment.Amount,
		repayment.PrincipalPaid,
		repayment.InterestPaid,
		repayment.BalanceAfter,
		repayment.Status,
		repayment.CreatedAt,
	)

	return classify(err)
}

func (r *repaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanRepayment, error) {
	query := `SELECT ` + repaymentColumns + ` FROM loan_repayments WHERE loan_id = $1 ORDER BY date DESC, created_at DESC`

	var repayments []*domain.LoanRepayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query, loanID); err != nil {
		return nil, classify(err)
	}
	return repayments, nil
}

func (r *repaymentRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.LoanRepayment, error) {
	query := `
		SELECT r.id, r.loan_id, r.date, r.amount, r.principal_paid, r.interest_paid, r.balance_after, r.status, r.created_at
		FROM loan_repayments r
		JOIN loans l ON l.id = r.loan_id
		WHERE l.member_id = $1
		ORDER BY r.date, r.created_at
	`

	var repayments []*domain.LoanRepayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query, memberID); err != nil {
		return nil, classify(err)
	}
	return repayments, nil
}
