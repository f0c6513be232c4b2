// Package postgres implements the repositories and the unit of work on
// PostgreSQL through sqlx. Rows a unit of work mutates are read with
// SELECT ... FOR UPDATE and written with a version compare-and-swap, so two
// concurrent operations on the same member or loan serialize instead of
// losing an update.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/repository"
)

// SQLSTATE codes that abort a transaction without it being the caller's fault.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeUniqueViolation      = "23505"
)

type Store struct {
	db               *sqlx.DB
	log              *zap.Logger
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Connect opens the connection pool described by cfg.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func NewStore(db *sqlx.DB, cfg config.DatabaseConfig, log *zap.Logger) *Store {
	return &Store{
		db:               db,
		log:              log,
		lockTimeout:      cfg.LockTimeout,
		statementTimeout: cfg.StatementTimeout,
	}
}

func (s *Store) Repos() repository.Repos {
	return reposFor(s.db)
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = s.applyTimeouts(ctx, tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}

	if err = fn(reposFor(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return classify(err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", repository.ErrTxAborted, err)
	}
	return nil
}

func (s *Store) applyTimeouts(ctx context.Context, tx *sqlx.Tx) error {
	if s.lockTimeout > 0 {
		q := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	if s.statementTimeout > 0 {
		q := fmt.Sprintf("SET LOCAL statement_timeout = %d", s.statementTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func reposFor(q sqlx.ExtContext) repository.Repos {
	return repository.Repos{
		Members:    &memberRepository{db: q},
		Loans:      &loanRepository{db: q},
		Repayments: &repaymentRepository{db: q},
		Savings:    &savingsRepository{db: q},
	}
}

// classify maps driver errors onto the repository sentinels and leaves every
// other error untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrTxAborted) || errors.Is(err, repository.ErrDuplicate) ||
		errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", repository.ErrTxAborted, err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
		return fmt.Errorf("%w: %w", repository.ErrTxAborted, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	}
	return err
}

// exactlyOne turns a zero-row update into a version conflict.
func exactlyOne(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return repository.ErrVersionConflict
	}
	return nil
}
