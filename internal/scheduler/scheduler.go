// Package scheduler runs the monthly cohort jobs: the group loan repayment
// and the group savings contribution.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/domain"
)

const (
	JobGroupRepayment = "group-repayment"
	JobGroupDeposit   = "group-deposit"
)

type RepaymentRunner interface {
	RecordGroupRepayment(ctx context.Context, request *domain.GroupRepaymentRequest) (*domain.GroupRepaymentResult, error)
}

type DepositRunner interface {
	RecordGroupDeposit(ctx context.Context, request *domain.GroupDepositRequest) (*domain.GroupDepositResult, error)
}

// Locker hands out the run lock that keeps replicas from running a period twice.
type Locker interface {
	Acquire(ctx context.Context, key string) (*cache.Lock, error)
}

type Scheduler struct {
	cron     *cron.Cron
	loans    RepaymentRunner
	savings  DepositRunner
	locker   Locker
	location *time.Location
	log      *zap.Logger
	now      func() time.Time
}

// New registers the enabled jobs. Nothing runs until Start.
func New(cfg *config.Config, loans RepaymentRunner, savings DepositRunner, locker Locker, log *zap.Logger) (*Scheduler, error) {
	loc := cfg.GetSchedulerLocation()
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		loans:    loans,
		savings:  savings,
		locker:   locker,
		location: loc,
		log:      log.Named("scheduler"),
		now:      time.Now,
	}

	if cfg.Scheduler.RepaymentEnabled {
		if _, err := s.cron.AddFunc(cfg.Scheduler.RepaymentSpec, s.job(JobGroupRepayment, s.RunGroupRepayment)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", JobGroupRepayment, err)
		}
		s.log.Info("job scheduled", zap.String("job", JobGroupRepayment), zap.String("spec", cfg.Scheduler.RepaymentSpec))
	}
	if cfg.Scheduler.DepositEnabled {
		if _, err := s.cron.AddFunc(cfg.Scheduler.DepositSpec, s.job(JobGroupDeposit, s.RunGroupDeposit)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", JobGroupDeposit, err)
		}
		s.log.Info("job scheduled", zap.String("job", JobGroupDeposit), zap.String("spec", cfg.Scheduler.DepositSpec))
	}
	return s, nil
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) job(name string, run func(ctx context.Context) error) func() {
	return func() {
		if err := run(context.Background()); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// RunGroupRepayment pays this month's installment of every repayable loan,
// unless another replica already holds the month's lock.
func (s *Scheduler) RunGroupRepayment(ctx context.Context) error {
	today := s.now().In(s.location)
	return s.locked(ctx, JobGroupRepayment, today, func() error {
		result, err := s.loans.RecordGroupRepayment(ctx, &domain.GroupRepaymentRequest{Date: today.Format("2006-01-02")})
		if err != nil {
			return err
		}
		s.log.Info("group repayment finished",
			zap.String("period", result.Period),
			zap.Int("loans", result.Count),
			zap.Stringer("total", result.Total))
		return nil
	})
}

// RunGroupDeposit books this month's contribution for every active member.
func (s *Scheduler) RunGroupDeposit(ctx context.Context) error {
	today := s.now().In(s.location)
	return s.locked(ctx, JobGroupDeposit, today, func() error {
		result, err := s.savings.RecordGroupDeposit(ctx, &domain.GroupDepositRequest{Date: today.Format("2006-01-02")})
		if err != nil {
			return err
		}
		s.log.Info("group deposit finished",
			zap.String("period", result.Period),
			zap.Int("members", result.Count),
			zap.Stringer("total", result.Total))
		return nil
	})
}

func (s *Scheduler) locked(ctx context.Context, job string, period time.Time, run func() error) error {
	if s.locker == nil {
		return run()
	}

	key := job + ":" + period.Format("2006-01")
	lock, err := s.locker.Acquire(ctx, key)
	if errors.Is(err, cache.ErrLockHeld) {
		s.log.Info("job already running or done for period", zap.String("job", job), zap.String("key", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}

	// A successful run keeps the lock until it expires so a replica whose
	// tick fires late still skips the period. Failures release it for a retry.
	if err := run(); err != nil {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			s.log.Warn("lock release failed", zap.String("key", key), zap.Error(releaseErr))
		}
		return err
	}
	return nil
}
