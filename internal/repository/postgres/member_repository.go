package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/internal/domain"
)

const memberColumns = `id, name, email, pf_no, job_title, phone, address, join_date, status,
	savings_balance, loans_balance, last_contribution, version, created_at, updated_at`

type memberRepository struct {
	db sqlx.ExtContext
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (id, name, email, pf_no, job_title, phone, address, join_date, status,
			savings_balance, loans_balance, last_contribution, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		member.ID,
		member.Name,
		member.Email,
		member.PfNo,
		member.JobTitle,
		member.Phone,
		member.Address,
		member.JoinDate,
		member.Status,
		member.SavingsBalance,
		member.LoansBalance,
		member.LastContribution,
		member.Version,
		member.CreatedAt,
		member.UpdatedAt,
	)

	return classify(err)
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	return r.get(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
}

func (r *memberRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error) {
	return r.get(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
}

func (r *memberRepository) get(ctx context.Context, query string, id string) (*domain.Member, error) {
	var member domain.Member
	if err := sqlx.GetContext(ctx, r.db, &member, query, id); err != nil {
		return nil, classify(err)
	}
	return &member, nil
}

func (r *memberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY updated_at DESC, id`

	var members []*domain.Member
	if err := sqlx.SelectContext(ctx, r.db, &members, query); err != nil {
		return nil, classify(err)
	}
	return members, nil
}

func (r *memberRepository) ListActiveForUpdate(ctx context.Context) ([]*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE status = $1 ORDER BY id FOR UPDATE`

	var members []*domain.Member
	if err := sqlx.SelectContext(ctx, r.db, &members, query, domain.MemberStatusActive); err != nil {
		return nil, classify(err)
	}
	return members, nil
}

func (r *memberRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM members WHERE status = $1`, domain.MemberStatusActive)
	return n, classify(err)
}

func (r *memberRepository) SumSavings(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &total, `SELECT COALESCE(SUM(savings_balance), 0) FROM members`)
	return total, classify(err)
}

func (r *memberRepository) Update(ctx context.Context, member *domain.Member) error {
	query := `
		UPDATE members
		SET name = $3, email = $4, pf_no = $5, job_title = $6, phone = $7, address = $8, status = $9,
			savings_balance = $10, loans_balance = $11, last_contribution = $12,
			version = version + 1, updated_at = $13
		WHERE id = $1 AND version = $2
	`

	now := time.Now()
	err := exactlyOne(r.db.ExecContext(ctx, query,
		member.ID,
		member.Version,
		member.Name,
		member.Email,
		member.PfNo,
		member.JobTitle,
		member.Phone,
		member.Address,
		member.Status,
		member.SavingsBalance,
		member.LoansBalance,
		member.LastContribution,
		now,
	))
	if err != nil {
		return err
	}

	member.Version++
	member.UpdatedAt = now
	return nil
}
