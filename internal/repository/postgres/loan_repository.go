package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/sacco-ledger/internal/domain"
)

const loanColumns = `id, member_id, amount, purpose, status, interest_rate, loan_term, remaining_balance,
	application_date, date_issued, due_date, employment_contract, bank_statements, id_document,
	version, created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, member_id, amount, purpose, status, interest_rate, loan_term, remaining_balance,
			application_date, date_issued, due_date, employment_contract, bank_statements, id_document,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.MemberID,
		loan.Amount,
		loan.Purpose,
		loan.Status,
		loan.InterestRate,
		loan.LoanTerm,
		loan.RemainingBalance,
		loan.ApplicationDate,
		loan.DateIssued,
		loan.DueDate,
		loan.EmploymentContract,
		loan.BankStatements,
		loan.IDDocument,
		loan.Version,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return classify(err)
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) get(ctx context.Context, query, id string) (*domain.Loan, error) {
	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, classify(err)
	}
	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY updated_at DESC, id`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query); err != nil {
		return nil, classify(err)
	}
	return loans, nil
}

func (r *loanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE member_id = $1 ORDER BY updated_at DESC, id`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, memberID); err != nil {
		return nil, classify(err)
	}
	return loans, nil
}

func (r *loanRepository) ListRepayableForUpdate(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT l.id, l.member_id, l.amount, l.purpose, l.status, l.interest_rate, l.loan_term,
			l.remaining_balance, l.application_date, l.date_issued, l.due_date,
			l.employment_contract, l.bank_statements, l.id_document,
			l.version, l.created_at, l.updated_at
		FROM loans l
		JOIN members m ON m.id = l.member_id
		WHERE l.status = $1 AND m.status = $2
		ORDER BY l.id
		FOR UPDATE OF l, m
	`

	var loans []*domain.Loan
	err := sqlx.SelectContext(ctx, r.db, &loans, query, domain.LoanStatusActive, domain.MemberStatusActive)
	if err != nil {
		return nil, classify(err)
	}
	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET status = $3, remaining_balance = $4, date_issued = $5, due_date = $6,
			employment_contract = $7, bank_statements = $8, id_document = $9,
			version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $2
	`

	now := time.Now()
	err := exactlyOne(r.db.ExecContext(ctx, query,
		loan.ID,
		loan.Version,
		loan.Status,
		loan.RemainingBalance,
		loan.DateIssued,
		loan.DueDate,
		loan.EmploymentContract,
		loan.BankStatements,
		loan.IDDocument,
		now,
	))
	if err != nil {
		return err
	}

	loan.Version++
	loan.UpdatedAt = now
	return nil
}
