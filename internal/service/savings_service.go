package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/utils"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

type SavingsService struct {
	store    repository.Store
	cache    cache.MemberCache
	config   *config.Config
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewSavingsService(
	store repository.Store,
	memberCache cache.MemberCache,
	config *config.Config,
	log *zap.Logger,
) *SavingsService {
	return &SavingsService{
		store:    store,
		cache:    memberCache,
		config:   config,
		log:      log.Named("savings"),
		validate: validation.New(),
		now:      time.Now,
	}
}

// RecordDeposit credits an active member's savings.
func (s *SavingsService) RecordDeposit(ctx context.Context, request *domain.DepositRequest) (*domain.SavingsReceipt, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	savingType := request.Type
	if savingType == "" {
		savingType = domain.SavingTypeMonthlyContribution
	}
	if !domain.IsSavingType(savingType) {
		return nil, customError.WrapInvalidDepositType(savingType)
	}
	amount := utils.RoundMoney(request.Amount)
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount("amount", request.Amount)
	}

	var receipt *domain.SavingsReceipt
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		member, err := loadMember(ctx, r.Members, request.MemberID, true)
		if err != nil {
			return err
		}
		if !member.IsActive() {
			return customError.WrapMemberInactive(member.ID)
		}

		history, err := loadHistory(ctx, r.Savings, member.ID)
		if err != nil {
			return err
		}

		now := s.now()
		receipt, err = deposit(ctx, r, member, history, amount, savingType, "", now, now)
		return err
	})
	if err != nil {
		s.log.Warn("deposit rolled back", zap.String("member_id", request.MemberID), zap.Error(err))
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, request.MemberID)
	s.log.Info("deposit recorded",
		zap.String("member_id", request.MemberID),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", receipt.Balance))
	return receipt, nil
}

// ProcessWithdrawal debits a member's savings. The member need not be active
// but must hold at least the requested amount.
func (s *SavingsService) ProcessWithdrawal(ctx context.Context, request *domain.WithdrawalRequest) (*domain.SavingsReceipt, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	amount := utils.RoundMoney(request.Amount)
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount("amount", request.Amount)
	}

	notes := request.Notes
	if notes == "" {
		notes = "Withdrawal"
	}

	var receipt *domain.SavingsReceipt
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		member, err := loadMember(ctx, r.Members, request.MemberID, true)
		if err != nil {
			return err
		}

		history, err := loadHistory(ctx, r.Savings, member.ID)
		if err != nil {
			return err
		}

		now := s.now()
		receipt, err = withdraw(ctx, r, member, history, amount, notes, now, now)
		return err
	})
	if err != nil {
		s.log.Warn("withdrawal rolled back", zap.String("member_id", request.MemberID), zap.Error(err))
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, request.MemberID)
	s.log.Info("withdrawal processed",
		zap.String("member_id", request.MemberID),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", receipt.Balance))
	return receipt, nil
}

// RecordGroupDeposit credits a contribution to every active member. Each
// member pays the requested flat amount, else their configured monthly
// amount, else the configured default. The whole cohort commits or none of
// it does.
func (s *SavingsService) RecordGroupDeposit(ctx context.Context, request *domain.GroupDepositRequest) (*domain.GroupDepositResult, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	savingType := request.Type
	if savingType == "" {
		savingType = domain.SavingTypeMonthlyContribution
	}
	if !domain.IsSavingType(savingType) {
		return nil, customError.WrapInvalidDepositType(savingType)
	}

	now := s.now()
	date, err := parseRunDate(request.Date, now)
	if err != nil {
		return nil, err
	}

	period := utils.PeriodLabel(date, request.Month, request.Year)
	notes := request.Notes
	if notes == "" {
		notes = "Group deposit for " + period
	}

	result := &domain.GroupDepositResult{
		Period:   period,
		Date:     date,
		Total:    decimal.Zero,
		Receipts: []*domain.SavingsReceipt{},
	}
	var memberIDs []string

	err = runTx(ctx, s.store, func(r repository.Repos) error {
		members, err := r.Members.ListActiveForUpdate(ctx)
		if err != nil {
			return err
		}

		for _, member := range members {
			history, err := loadHistory(ctx, r.Savings, member.ID)
			if err != nil {
				return err
			}

			amount := s.contribution(request.Amount, history)
			receipt, err := deposit(ctx, r, member, history, amount, savingType, notes, date, now)
			if err != nil {
				s.log.Warn("group deposit aborted", zap.String("member_id", member.ID), zap.Error(err))
				return err
			}
			result.Receipts = append(result.Receipts, receipt)
			memberIDs = append(memberIDs, member.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, receipt := range result.Receipts {
		result.Total = result.Total.Add(receipt.Transaction.Amount)
	}
	result.Count = len(result.Receipts)

	invalidate(ctx, s.cache, s.log, memberIDs...)
	s.log.Info("group deposit recorded",
		zap.String("period", result.Period),
		zap.Int("members", result.Count),
		zap.Stringer("total", result.Total))
	return result, nil
}

func (s *SavingsService) contribution(flat *decimal.Decimal, history *domain.SavingsHistory) decimal.Decimal {
	if flat != nil && flat.IsPositive() {
		return utils.RoundMoney(*flat)
	}
	if history != nil && history.MonthlySavingsAmt.IsPositive() {
		return history.MonthlySavingsAmt
	}
	return s.config.GetDefaultMonthlyContribution()
}

// GetMemberSavings returns the member's snapshot and transactions, newest
// first. History is nil when the member never saved.
func (s *SavingsService) GetMemberSavings(ctx context.Context, memberID string) (*domain.MemberSavings, error) {
	repos := s.store.Repos()
	if _, err := loadMember(ctx, repos.Members, memberID, false); err != nil {
		return nil, err
	}

	history, err := repos.Savings.GetHistory(ctx, memberID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storageError(err)
	}

	txs, err := repos.Savings.ListTransactions(ctx, memberID)
	if err != nil {
		return nil, storageError(err)
	}
	if txs == nil {
		txs = []*domain.SavingsTransaction{}
	}

	return &domain.MemberSavings{History: history, Transactions: txs}, nil
}

func (s *SavingsService) GetSaving(ctx context.Context, id int64) (*domain.Saving, error) {
	saving, err := s.store.Repos().Savings.GetSaving(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapSavingNotFound(id)
	}
	if err != nil {
		return nil, storageError(err)
	}
	return saving, nil
}

func (s *SavingsService) ListSavings(ctx context.Context) ([]*domain.Saving, error) {
	savings, err := s.store.Repos().Savings.ListSavings(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return savings, nil
}

// GetSavingsStats totals savings across members, counts active members, and
// sums the monthly contributions made since the first of the current month.
func (s *SavingsService) GetSavingsStats(ctx context.Context) (*domain.SavingsStats, error) {
	repos := s.store.Repos()

	total, err := repos.Members.SumSavings(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	active, err := repos.Members.CountActive(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	monthly, err := repos.Savings.SumContributionsSince(ctx, utils.StartOfMonth(s.now()))
	if err != nil {
		return nil, storageError(err)
	}

	return &domain.SavingsStats{
		TotalSavings:         total,
		ActiveMembers:        active,
		MonthlyContributions: monthly,
	}, nil
}
