package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
)

// setupStore connects to TEST_DATABASE_URL, migrates and empties the ledger.
// Tests are skipped when it is unset.
func setupStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.DatabaseConfig{
		URL:              dsn,
		MaxOpenConns:     10,
		MaxIdleConns:     2,
		ConnMaxLifetime:  time.Minute,
		LockTimeout:      200 * time.Millisecond,
		StatementTimeout: 5 * time.Second,
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE savings_transactions, savings_histories, savings,
		loan_repayments, loans, members RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return NewStore(db, cfg, zap.NewNop()), db
}

func newMember(id, email string) *domain.Member {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Member{
		ID:             id,
		Name:           "Member " + id,
		Email:          email,
		JoinDate:       now,
		Status:         domain.MemberStatusActive,
		SavingsBalance: decimal.Zero,
		LoansBalance:   decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStore_CommitAndRollback(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(r repository.Repos) error {
		return r.Members.Create(ctx, newMember("M-1", "one@example.com"))
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(r repository.Repos) error {
		m, err := r.Members.GetByIDForUpdate(ctx, "M-1")
		if err != nil {
			return err
		}
		m.SavingsBalance = decimal.NewFromInt(500)
		if err := r.Members.Update(ctx, m); err != nil {
			return err
		}
		if err := r.Members.Create(ctx, newMember("M-2", "two@example.com")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := store.Repos().Members.GetByID(ctx, "M-1")
	require.NoError(t, err)
	assert.True(t, m.SavingsBalance.IsZero())
	assert.Equal(t, int64(0), m.Version)

	_, err = store.Repos().Members.GetByID(ctx, "M-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_VersionConflictAndDuplicates(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	repos := store.Repos()
	require.NoError(t, repos.Members.Create(ctx, newMember("M-1", "one@example.com")))

	first, err := repos.Members.GetByID(ctx, "M-1")
	require.NoError(t, err)
	stale, err := repos.Members.GetByID(ctx, "M-1")
	require.NoError(t, err)

	first.Phone = "+254700000001"
	require.NoError(t, repos.Members.Update(ctx, first))
	stale.Phone = "+254700000002"
	assert.ErrorIs(t, repos.Members.Update(ctx, stale), repository.ErrVersionConflict)

	err = repos.Members.Create(ctx, newMember("M-2", "one@example.com"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := store.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Members.Create(ctx, newMember("M-1", "one@example.com")); err != nil {
			return err
		}
		loan := &domain.Loan{
			ID: "L-1", MemberID: "M-1", Amount: decimal.NewFromInt(50000), Purpose: "dairy",
			Status: domain.LoanStatusActive, InterestRate: decimal.NewFromInt(12), LoanTerm: 12,
			RemainingBalance: decimal.NewFromInt(50000), ApplicationDate: now, DateIssued: &now,
			DueDate: now.AddDate(0, 12, 0), CreatedAt: now, UpdatedAt: now,
		}
		if err := r.Loans.Create(ctx, loan); err != nil {
			return err
		}
		if err := r.Repayments.Create(ctx, &domain.LoanRepayment{
			ID: "R-1", LoanID: "L-1", Date: now, Amount: decimal.RequireFromString("4442.44"),
			PrincipalPaid: decimal.RequireFromString("3942.44"), InterestPaid: decimal.NewFromInt(500),
			BalanceAfter: decimal.RequireFromString("46057.56"), Status: domain.RepaymentStatusCompleted, CreatedAt: now,
		}); err != nil {
			return err
		}
		loan.RemainingBalance = decimal.RequireFromString("46057.56")
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}

		saving := &domain.Saving{MemberID: "M-1", Amount: decimal.NewFromInt(1000), Date: now,
			Type: domain.SavingTypeMonthlyContribution, Status: domain.SavingStatusCompleted, CreatedAt: now}
		if err := r.Savings.CreateSaving(ctx, saving); err != nil {
			return err
		}
		return r.Savings.AppendTransaction(ctx, &domain.SavingsTransaction{
			TransactionNo: "TX-1", MemberID: "M-1", TransactionDate: now,
			TransactionType: domain.TransactionTypeDeposit, Amount: decimal.NewFromInt(1000),
			BalanceAfter: decimal.NewFromInt(1000), CreatedAt: now,
		})
	})
	require.NoError(t, err)

	repos := store.Repos()
	loans, err := repos.Loans.ListRepayableForUpdate(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.True(t, loans[0].RemainingBalance.Equal(decimal.RequireFromString("46057.56")))

	rps, err := repos.Repayments.ListByMember(ctx, "M-1")
	require.NoError(t, err)
	require.Len(t, rps, 1)
	assert.True(t, rps[0].PrincipalPaid.Equal(decimal.RequireFromString("3942.44")))

	txs, err := repos.Savings.ListTransactions(ctx, "M-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Positive(t, txs[0].Seq)

	total, err := repos.Savings.SumContributionsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(1000)))
}

func TestStore_LockTimeoutAbortsTransaction(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Repos().Members.Create(ctx, newMember("M-1", "one@example.com")))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithinTx(ctx, func(r repository.Repos) error {
			if _, err := r.Members.GetByIDForUpdate(ctx, "M-1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := store.WithinTx(ctx, func(r repository.Repos) error {
		_, err := r.Members.GetByIDForUpdate(ctx, "M-1")
		return err
	})
	close(release)

	assert.ErrorIs(t, err, repository.ErrTxAborted)
	require.NoError(t, <-done)
}
