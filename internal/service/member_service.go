package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const initialDepositNotes = "Initial membership deposit"

type MemberService struct {
	store    repository.Store
	cache    cache.MemberCache
	config   *config.Config
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewMemberService(
	store repository.Store,
	memberCache cache.MemberCache,
	config *config.Config,
	log *zap.Logger,
) *MemberService {
	return &MemberService{
		store:    store,
		cache:    memberCache,
		config:   config,
		log:      log.Named("members"),
		validate: validation.New(),
		now:      time.Now,
	}
}

// CreateMember registers an active member and books the initial deposit
// through the savings ledgers in the same unit of work.
func (s *MemberService) CreateMember(ctx context.Context, request *domain.CreateMemberRequest) (*domain.Member, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	now := s.now()
	joinDate, err := parseRunDate(request.JoinDate, now)
	if err != nil {
		return nil, err
	}

	id := request.ID
	if id == "" {
		id = utils.NewID("M")
	}

	monthly := utils.RoundMoney(request.MonthlySavingsAmt)
	if !monthly.IsPositive() {
		monthly = s.config.GetDefaultMonthlyContribution()
	}

	member := &domain.Member{
		ID:             id,
		Name:           request.Name,
		Email:          strings.ToLower(request.Email),
		PfNo:           request.PfNo,
		JobTitle:       request.JobTitle,
		Phone:          request.Phone,
		Address:        request.Address,
		JoinDate:       joinDate,
		Status:         domain.MemberStatusActive,
		SavingsBalance: decimal.Zero,
		LoansBalance:   decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = runTx(ctx, s.store, func(r repository.Repos) error {
		if err := r.Members.Create(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return customError.WrapMemberAlreadyExists(member.Email)
			}
			return err
		}

		history := &domain.SavingsHistory{
			MemberID:              member.ID,
			CurrentSavingsBalance: decimal.Zero,
			MonthlySavingsAmt:     monthly,
			AccountStatus:         member.Status,
			DateJoined:            joinDate,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := r.Savings.CreateHistory(ctx, history); err != nil {
			return err
		}

		initial := s.config.GetInitialDeposit()
		if !initial.IsPositive() {
			return nil
		}
		_, err := deposit(ctx, r, member, history, initial,
			domain.SavingTypeMonthlyContribution, initialDepositNotes, now, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("member created",
		zap.String("member_id", member.ID),
		zap.Stringer("savings_balance", member.SavingsBalance))
	return member, nil
}

func (s *MemberService) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	return loadMember(ctx, s.store.Repos().Members, memberID, false)
}

func (s *MemberService) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	members, err := s.store.Repos().Members.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return members, nil
}

// UpdateMember changes profile fields, status and the recurring contribution.
// Balances are never written here.
func (s *MemberService) UpdateMember(ctx context.Context, memberID string, request *domain.UpdateMemberRequest) (*domain.Member, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	var member *domain.Member
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		var err error
		member, err = loadMember(ctx, r.Members, memberID, true)
		if err != nil {
			return err
		}

		setIf(&member.Name, request.Name)
		if request.Email != nil {
			member.Email = strings.ToLower(*request.Email)
		}
		setIf(&member.PfNo, request.PfNo)
		setIf(&member.JobTitle, request.JobTitle)
		setIf(&member.Phone, request.Phone)
		setIf(&member.Address, request.Address)
		setIf(&member.Status, request.Status)

		if err := r.Members.Update(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return customError.WrapMemberAlreadyExists(member.Email)
			}
			return err
		}

		if request.Status == nil && request.MonthlySavingsAmt == nil {
			return nil
		}

		history, err := loadHistory(ctx, r.Savings, member.ID)
		if err != nil {
			return err
		}
		monthly := decimal.Zero
		if history != nil {
			monthly = history.MonthlySavingsAmt
		}
		if request.MonthlySavingsAmt != nil {
			monthly = utils.RoundMoney(*request.MonthlySavingsAmt)
		}
		if history != nil {
			history.MonthlySavingsAmt = monthly
		}
		return syncHistory(ctx, r, member, history, monthly, s.now())
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, member.ID)
	s.log.Info("member updated", zap.String("member_id", member.ID), zap.String("status", member.Status))
	return member, nil
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// GetMemberSummary returns the member's balance view, served from cache when
// possible.
func (s *MemberService) GetMemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error) {
	summary, found, err := s.cache.GetSummary(ctx, memberID)
	if err != nil {
		s.log.Warn("member cache read failed", zap.String("member_id", memberID), zap.Error(err))
	}
	if found {
		return summary, nil
	}

	repos := s.store.Repos()
	member, err := loadMember(ctx, repos.Members, memberID, false)
	if err != nil {
		return nil, err
	}
	loans, err := repos.Loans.ListByMember(ctx, memberID)
	if err != nil {
		return nil, storageError(err)
	}

	summary = &domain.MemberSummary{
		MemberID:         member.ID,
		Name:             member.Name,
		Status:           member.Status,
		SavingsBalance:   member.SavingsBalance,
		LoansBalance:     member.LoansBalance,
		LastContribution: member.LastContribution,
		GeneratedAt:      s.now(),
	}
	for _, loan := range loans {
		switch loan.Status {
		case domain.LoanStatusActive:
			summary.ActiveLoans++
		case domain.LoanStatusPending:
			summary.PendingLoans++
		}
	}

	if err := s.cache.SetSummary(ctx, summary); err != nil {
		s.log.Warn("member cache write failed", zap.String("member_id", memberID), zap.Error(err))
	}
	return summary, nil
}

// VerifyMemberLedger rebuilds the member's balances from the append-only
// ledgers and lists every mirror that disagrees. The member row is locked so
// the ledgers are read at one point in time.
func (s *MemberService) VerifyMemberLedger(ctx context.Context, memberID string) (*domain.LedgerReport, error) {
	report := &domain.LedgerReport{MemberID: memberID}

	err := runTx(ctx, s.store, func(r repository.Repos) error {
		member, err := loadMember(ctx, r.Members, memberID, true)
		if err != nil {
			return err
		}
		report.SavingsBalance = member.SavingsBalance
		report.LoansBalance = member.LoansBalance

		history, err := loadHistory(ctx, r.Savings, memberID)
		if err != nil {
			return err
		}

		txs, err := r.Savings.ListTransactions(ctx, memberID)
		if err != nil {
			return err
		}

		loans, err := r.Loans.ListByMember(ctx, memberID)
		if err != nil {
			return err
		}

		report.ReplayedBalance = decimal.Zero
		for _, tx := range txs {
			report.ReplayedBalance = report.ReplayedBalance.Add(tx.Amount)
		}
		report.TransactionCount = len(txs)
		report.LatestBalanceAfter = decimal.Zero
		if len(txs) > 0 {
			report.LatestBalanceAfter = txs[0].BalanceAfter
		}

		report.HistoryBalance = decimal.Zero
		if history != nil {
			report.HistoryBalance = history.CurrentSavingsBalance
		} else if len(txs) > 0 {
			report.Discrepancies = append(report.Discrepancies, "savings history missing")
		}

		report.OutstandingPrincipal = decimal.Zero
		for _, loan := range loans {
			if loan.Status == domain.LoanStatusActive {
				report.OutstandingPrincipal = report.OutstandingPrincipal.Add(loan.RemainingBalance)
			}
			if loan.RemainingBalance.IsZero() != (loan.Status == domain.LoanStatusPaid) {
				report.Discrepancies = append(report.Discrepancies,
					fmt.Sprintf("loan %s is %s with remaining balance %s", loan.ID, loan.Status, loan.RemainingBalance))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	check := func(name string, got decimal.Decimal, want decimal.Decimal) {
		if !got.Equal(want) {
			report.Discrepancies = append(report.Discrepancies,
				fmt.Sprintf("%s %s does not match %s", name, got, want))
		}
	}
	check("savings history balance", report.HistoryBalance, report.SavingsBalance)
	check("latest transaction balance", report.LatestBalanceAfter, report.SavingsBalance)
	check("replayed savings balance", report.ReplayedBalance, report.SavingsBalance)
	check("outstanding principal", report.OutstandingPrincipal, report.LoansBalance)

	if !report.Consistent() {
		s.log.Warn("member ledger inconsistent", zap.String("member_id", memberID), zap.Strings("discrepancies", report.Discrepancies))
	}
	return report, nil
}
