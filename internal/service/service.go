package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
)

const dateLayout = "2006-01-02"

// runTx runs fn as one unit of work. Business errors returned by fn pass
// through unchanged; storage failures are mapped onto the error taxonomy.
func runTx(ctx context.Context, store repository.Store, fn func(r repository.Repos) error) error {
	return storageError(store.WithinTx(ctx, fn))
}

func storageError(err error) error {
	if err == nil {
		return nil
	}

	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}

	if errors.Is(err, repository.ErrVersionConflict) ||
		errors.Is(err, repository.ErrTxAborted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return customError.WrapTransactionAborted(err)
	}
	return customError.WrapDatabaseError(err)
}

func loadMember(ctx context.Context, members repository.MemberRepository, id string, forUpdate bool) (*domain.Member, error) {
	get := members.GetByID
	if forUpdate {
		get = members.GetByIDForUpdate
	}

	member, err := get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapMemberNotFound(id)
	}
	if err != nil {
		return nil, storageError(err)
	}
	return member, nil
}

func loadLoan(ctx context.Context, loans repository.LoanRepository, id string, forUpdate bool) (*domain.Loan, error) {
	get := loans.GetByID
	if forUpdate {
		get = loans.GetByIDForUpdate
	}

	loan, err := get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(id)
	}
	if err != nil {
		return nil, storageError(err)
	}
	return loan, nil
}

// loadHistory returns the member's savings snapshot, or nil if none exists yet.
func loadHistory(ctx context.Context, savings repository.SavingsRepository, memberID string) (*domain.SavingsHistory, error) {
	history, err := savings.GetHistoryForUpdate(ctx, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// parseRunDate parses an optional YYYY-MM-DD date; empty means now.
func parseRunDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	date, err := time.ParseInLocation(dateLayout, value, now.Location())
	if err != nil {
		return time.Time{}, customError.WrapValidation("date must be formatted as YYYY-MM-DD", customError.ErrInvalidInput)
	}
	return date, nil
}

// invalidate drops cached summaries after a commit. A failure only delays
// freshness until the entry expires, so it is logged and not returned.
func invalidate(ctx context.Context, c cache.MemberCache, log *zap.Logger, memberIDs ...string) {
	if err := c.Invalidate(ctx, memberIDs...); err != nil {
		log.Warn("member cache invalidation failed", zap.Strings("member_ids", memberIDs), zap.Error(err))
	}
}
