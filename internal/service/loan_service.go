package service

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
	"github.com/segyhp/sacco-ledger/pkg/amortization"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/utils"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

// DocumentStore keeps loan attachments.
type DocumentStore interface {
	Save(loanID, kind, filename string, r io.Reader) (string, error)
	Prune(loanID, kind, keep string) error
	Open(ref string) (afero.File, error)
}

type LoanService struct {
	store    repository.Store
	docs     DocumentStore
	cache    cache.MemberCache
	config   *config.Config
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewLoanService(
	store repository.Store,
	docs DocumentStore,
	memberCache cache.MemberCache,
	config *config.Config,
	log *zap.Logger,
) *LoanService {
	return &LoanService{
		store:    store,
		docs:     docs,
		cache:    memberCache,
		config:   config,
		log:      log.Named("loans"),
		validate: validation.New(),
		now:      time.Now,
	}
}

// CreateLoan files a Pending loan application for an active member.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	minRate, maxRate := s.config.GetMinInterestRate(), s.config.GetMaxInterestRate()
	if request.InterestRate.LessThan(minRate) || request.InterestRate.GreaterThan(maxRate) {
		return nil, customError.WrapInvalidInterestRate(request.InterestRate, minRate, maxRate)
	}
	if maxTerm := s.config.GetMaxLoanTerm(); request.LoanTerm > maxTerm {
		return nil, customError.WrapInvalidLoanTerm(request.LoanTerm, maxTerm)
	}
	amount := utils.RoundMoney(request.Amount)
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount("amount", request.Amount)
	}

	now := s.now()
	loan := &domain.Loan{
		ID:              utils.NewID("L"),
		MemberID:        request.MemberID,
		Amount:          amount,
		Purpose:         request.Purpose,
		Status:          domain.LoanStatusPending,
		InterestRate:    request.InterestRate,
		LoanTerm:        request.LoanTerm,
		ApplicationDate: now,
		DueDate:         utils.CalculateDueDate(now, request.LoanTerm),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	loan.RemainingBalance = loan.Amount

	err := runTx(ctx, s.store, func(r repository.Repos) error {
		member, err := loadMember(ctx, r.Members, request.MemberID, false)
		if err != nil {
			return err
		}
		if !member.IsActive() {
			return customError.WrapMemberInactive(member.ID)
		}
		return r.Loans.Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, loan.MemberID)
	s.log.Info("loan application created",
		zap.String("loan_id", loan.ID),
		zap.String("member_id", loan.MemberID),
		zap.Stringer("amount", loan.Amount),
		zap.Int("term_months", loan.LoanTerm))
	return loan, nil
}

// ApproveLoan activates a Pending loan and adds its principal to the
// member's loans balance.
func (s *LoanService) ApproveLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		var err error
		loan, err = loadLoan(ctx, r.Loans, loanID, true)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusPending {
			return customError.WrapInvalidLoanState(loan.ID, loan.Status, "approve")
		}

		member, err := loadMember(ctx, r.Members, loan.MemberID, true)
		if err != nil {
			return err
		}

		issued := s.now()
		loan.Status = domain.LoanStatusActive
		loan.DateIssued = &issued
		loan.DueDate = utils.CalculateDueDate(issued, loan.LoanTerm)
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}

		member.LoansBalance = member.LoansBalance.Add(loan.RemainingBalance)
		return r.Members.Update(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, loan.MemberID)
	s.log.Info("loan approved", zap.String("loan_id", loan.ID), zap.String("member_id", loan.MemberID))
	return loan, nil
}

// RejectLoan closes a Pending loan without touching any balance.
func (s *LoanService) RejectLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		var err error
		loan, err = loadLoan(ctx, r.Loans, loanID, true)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusPending {
			return customError.WrapInvalidLoanState(loan.ID, loan.Status, "reject")
		}

		loan.Status = domain.LoanStatusRejected
		return r.Loans.Update(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, loan.MemberID)
	s.log.Info("loan rejected", zap.String("loan_id", loan.ID))
	return loan, nil
}

// RecordRepayment applies a caller-chosen amount to an active loan. The
// amount may not exceed the remaining balance plus this month's interest.
func (s *LoanService) RecordRepayment(ctx context.Context, request *domain.RecordRepaymentRequest) (*domain.LoanRepayment, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	var (
		repayment *domain.LoanRepayment
		memberID  string
	)
	err := runTx(ctx, s.store, func(r repository.Repos) error {
		loan, err := loadLoan(ctx, r.Loans, request.LoanID, true)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusActive {
			return customError.WrapLoanNotActive(loan.ID, loan.Status)
		}

		member, err := loadMember(ctx, r.Members, loan.MemberID, true)
		if err != nil {
			return err
		}
		memberID = member.ID

		now := s.now()
		amount := request.Amount
		repayment, err = applyRepayment(ctx, r, loan, member, &amount, now, now)
		return err
	})
	if err != nil {
		s.log.Warn("repayment rolled back", zap.String("loan_id", request.LoanID), zap.Error(err))
		return nil, err
	}

	invalidate(ctx, s.cache, s.log, memberID)
	s.log.Info("repayment recorded",
		zap.String("loan_id", repayment.LoanID),
		zap.String("repayment_id", repayment.ID),
		zap.Stringer("amount", repayment.Amount),
		zap.Stringer("principal", repayment.PrincipalPaid),
		zap.Stringer("interest", repayment.InterestPaid),
		zap.Stringer("balance_after", repayment.BalanceAfter))
	return repayment, nil
}

// RecordGroupRepayment pays the scheduled installment of every active loan
// held by an active member. The whole cohort commits or none of it does.
func (s *LoanService) RecordGroupRepayment(ctx context.Context, request *domain.GroupRepaymentRequest) (*domain.GroupRepaymentResult, error) {
	if err := validation.Struct(s.validate, request); err != nil {
		return nil, err
	}

	now := s.now()
	date, err := parseRunDate(request.Date, now)
	if err != nil {
		return nil, err
	}

	result := &domain.GroupRepaymentResult{
		Period:     utils.PeriodLabel(date, request.Month, request.Year),
		Date:       date,
		Total:      decimal.Zero,
		Repayments: []*domain.LoanRepayment{},
	}
	var memberIDs []string

	err = runTx(ctx, s.store, func(r repository.Repos) error {
		loans, err := r.Loans.ListRepayableForUpdate(ctx)
		if err != nil {
			return err
		}

		members := make(map[string]*domain.Member)
		for _, loan := range loans {
			member, ok := members[loan.MemberID]
			if !ok {
				member, err = loadMember(ctx, r.Members, loan.MemberID, true)
				if err != nil {
					return err
				}
				members[member.ID] = member
				memberIDs = append(memberIDs, member.ID)
			}

			repayment, err := applyRepayment(ctx, r, loan, member, nil, date, now)
			if err != nil {
				s.log.Warn("group repayment aborted", zap.String("loan_id", loan.ID), zap.Error(err))
				return err
			}
			result.Repayments = append(result.Repayments, repayment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rp := range result.Repayments {
		result.Total = result.Total.Add(rp.Amount)
	}
	result.Count = len(result.Repayments)

	invalidate(ctx, s.cache, s.log, memberIDs...)
	s.log.Info("group repayment recorded",
		zap.String("period", result.Period),
		zap.Int("loans", result.Count),
		zap.Stringer("total", result.Total))
	return result, nil
}

// GetLoan returns a loan with its repayments, newest first.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	repos := s.store.Repos()

	loan, err := loadLoan(ctx, repos.Loans, loanID, false)
	if err != nil {
		return nil, err
	}

	loan.Repayments, err = repos.Repayments.ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, storageError(err)
	}
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := s.store.Repos().Loans.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return loans, nil
}

func (s *LoanService) ListMemberLoans(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	repos := s.store.Repos()
	if _, err := loadMember(ctx, repos.Members, memberID, false); err != nil {
		return nil, err
	}

	loans, err := repos.Loans.ListByMember(ctx, memberID)
	if err != nil {
		return nil, storageError(err)
	}
	return loans, nil
}

// GetLoanSchedule projects the scheduled payments that would retire the
// loan's current balance. Rejected and paid loans have no schedule.
func (s *LoanService) GetLoanSchedule(ctx context.Context, loanID string) ([]amortization.Entry, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	switch loan.Status {
	case domain.LoanStatusRejected, domain.LoanStatusPaid:
		return []amortization.Entry{}, nil
	}

	start := s.now()
	switch {
	case len(loan.Repayments) > 0:
		start = loan.Repayments[0].Date
	case loan.DateIssued != nil:
		start = *loan.DateIssued
	}

	return amortization.Project(loan.Amount, loan.InterestRate, loan.LoanTerm, loan.RemainingBalance, start)
}

// GetMemberMonthlyLoanBalances reports, for every month with a repayment,
// the sum over the member's loans of each loan's latest balance after that
// month's repayments.
func (s *LoanService) GetMemberMonthlyLoanBalances(ctx context.Context, memberID string) ([]domain.MonthlyLoanBalance, error) {
	repos := s.store.Repos()
	if _, err := loadMember(ctx, repos.Members, memberID, false); err != nil {
		return nil, err
	}

	repayments, err := repos.Repayments.ListByMember(ctx, memberID)
	if err != nil {
		return nil, storageError(err)
	}

	latest := make(map[string]decimal.Decimal)
	balances := []domain.MonthlyLoanBalance{}
	for i, rp := range repayments {
		latest[rp.LoanID] = rp.BalanceAfter

		month := utils.MonthKey(rp.Date)
		if i+1 < len(repayments) && utils.MonthKey(repayments[i+1].Date) == month {
			continue
		}

		total := decimal.Zero
		for _, balance := range latest {
			total = total.Add(balance)
		}
		balances = append(balances, domain.MonthlyLoanBalance{Month: month, LoanBalance: total})
	}
	return balances, nil
}

// AttachDocument stores an application document and records its reference
// on the loan.
func (s *LoanService) AttachDocument(ctx context.Context, loanID, kind, filename string, body io.Reader) (*domain.Loan, error) {
	if _, err := loadLoan(ctx, s.store.Repos().Loans, loanID, false); err != nil {
		return nil, err
	}

	ref, err := s.docs.Save(loanID, kind, filename, body)
	if err != nil {
		var be *customError.BusinessError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, customError.WrapDatabaseError(err)
	}

	var loan *domain.Loan
	err = runTx(ctx, s.store, func(r repository.Repos) error {
		var err error
		loan, err = loadLoan(ctx, r.Loans, loanID, true)
		if err != nil {
			return err
		}
		loan.SetDocumentRef(kind, ref)
		return r.Loans.Update(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	if err := s.docs.Prune(loanID, kind, ref); err != nil {
		s.log.Warn("stale loan documents not removed", zap.String("loan_id", loanID), zap.String("type", kind), zap.Error(err))
	}
	s.log.Info("loan document attached", zap.String("loan_id", loanID), zap.String("type", kind))
	return loan, nil
}

// OpenDocument returns the stored kind document of a loan.
func (s *LoanService) OpenDocument(ctx context.Context, loanID, kind string) (afero.File, string, error) {
	loan, err := loadLoan(ctx, s.store.Repos().Loans, loanID, false)
	if err != nil {
		return nil, "", err
	}

	ref, known := loan.DocumentRef(kind)
	if !known {
		return nil, "", customError.WrapValidation("unknown document type "+kind, nil)
	}
	if ref == "" {
		return nil, "", customError.WrapDocumentNotFound(loanID, kind)
	}

	f, err := s.docs.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", customError.WrapDocumentNotFound(loanID, kind)
	}
	if err != nil {
		return nil, "", customError.WrapDatabaseError(err)
	}
	return f, ref, nil
}
