package memory

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository"
)

type memberRepository struct{ *access }

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.members[member.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, m := range st.members {
			if strings.EqualFold(m.Email, member.Email) {
				return repository.ErrDuplicate
			}
		}
		st.members[member.ID] = *member
		return nil
	})
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	var out *domain.Member
	err := r.read(ctx, func(st *state) error {
		m, ok := st.members[id]
		if !ok {
			return sql.ErrNoRows
		}
		out = &m
		return nil
	})
	return out, err
}

func (r *memberRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error) {
	return r.GetByID(ctx, id)
}

func (r *memberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	return r.list(ctx, func(*domain.Member) bool { return true }, byUpdatedDesc)
}

func (r *memberRepository) ListActiveForUpdate(ctx context.Context) ([]*domain.Member, error) {
	return r.list(ctx, (*domain.Member).IsActive, func(a, b *domain.Member) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func byUpdatedDesc(a, b *domain.Member) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *memberRepository) list(ctx context.Context, keep func(*domain.Member) bool, order func(a, b *domain.Member) int) ([]*domain.Member, error) {
	var out []*domain.Member
	err := r.read(ctx, func(st *state) error {
		for _, m := range st.members {
			if keep(&m) {
				out = append(out, &m)
			}
		}
		return nil
	})
	slices.SortFunc(out, order)
	return out, err
}

func (r *memberRepository) CountActive(ctx context.Context) (int, error) {
	active, err := r.list(ctx, (*domain.Member).IsActive, byUpdatedDesc)
	return len(active), err
}

func (r *memberRepository) SumSavings(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.read(ctx, func(st *state) error {
		for _, m := range st.members {
			total = total.Add(m.SavingsBalance)
		}
		return nil
	})
	return total, err
}

func (r *memberRepository) Update(ctx context.Context, member *domain.Member) error {
	return r.write(ctx, func(st *state) error {
		stored, ok := st.members[member.ID]
		if !ok || stored.Version != member.Version {
			return repository.ErrVersionConflict
		}
		for id, m := range st.members {
			if id != member.ID && strings.EqualFold(m.Email, member.Email) {
				return repository.ErrDuplicate
			}
		}
		member.Version++
		member.UpdatedAt = time.Now()
		st.members[member.ID] = *member
		return nil
	})
}

type loanRepository struct{ *access }

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.loans[loan.ID]; ok {
			return repository.ErrDuplicate
		}
		st.loans[loan.ID] = stripLoan(loan)
		return nil
	})
}

// stripLoan drops the repayments attached for presentation.
func stripLoan(loan *domain.Loan) domain.Loan {
	l := *loan
	l.Repayments = nil
	return l
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	var out *domain.Loan
	err := r.read(ctx, func(st *state) error {
		l, ok := st.loans[id]
		if !ok {
			return sql.ErrNoRows
		}
		out = &l
		return nil
	})
	return out, err
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func loansByUpdatedDesc(a, b *domain.Loan) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *loanRepository) list(ctx context.Context, keep func(st *state, l *domain.Loan) bool, order func(a, b *domain.Loan) int) ([]*domain.Loan, error) {
	var out []*domain.Loan
	err := r.read(ctx, func(st *state) error {
		for _, l := range st.loans {
			if keep(st, &l) {
				out = append(out, &l)
			}
		}
		return nil
	})
	slices.SortFunc(out, order)
	return out, err
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	return r.list(ctx, func(*state, *domain.Loan) bool { return true }, loansByUpdatedDesc)
}

func (r *loanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	return r.list(ctx, func(_ *state, l *domain.Loan) bool { return l.MemberID == memberID }, loansByUpdatedDesc)
}

func (r *loanRepository) ListRepayableForUpdate(ctx context.Context) ([]*domain.Loan, error) {
	return r.list(ctx, func(st *state, l *domain.Loan) bool {
		m, ok := st.members[l.MemberID]
		return ok && m.IsActive() && l.Status == domain.LoanStatusActive
	}, func(a, b *domain.Loan) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	return r.write(ctx, func(st *state) error {
		stored, ok := st.loans[loan.ID]
		if !ok || stored.Version != loan.Version {
			return repository.ErrVersionConflict
		}
		loan.Version++
		loan.UpdatedAt = time.Now()
		st.loans[loan.ID] = stripLoan(loan)
		return nil
	})
}

type repaymentRepository struct{ *access }

func (r *repaymentRepository) Create(ctx context.Context, repayment *domain.LoanRepayment) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.loans[repayment.LoanID]; !ok {
			return sql.ErrNoRows
		}
		for _, existing := range st.repayments {
			if existing.ID == repayment.ID {
				return repository.ErrDuplicate
			}
		}
		st.repayments = append(st.repayments, *repayment)
		return nil
	})
}

func (r *repaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanRepayment, error) {
	var out []*domain.LoanRepayment
	err := r.read(ctx, func(st *state) error {
		for i := len(st.repayments) - 1; i >= 0; i-- {
			if rp := st.repayments[i]; rp.LoanID == loanID {
				out = append(out, &rp)
			}
		}
		return nil
	})
	slices.SortStableFunc(out, func(a, b *domain.LoanRepayment) int {
		return b.Date.Compare(a.Date)
	})
	return out, err
}

func (r *repaymentRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.LoanRepayment, error) {
	var out []*domain.LoanRepayment
	err := r.read(ctx, func(st *state) error {
		for _, rp := range st.repayments {
			if st.loans[rp.LoanID].MemberID == memberID {
				out = append(out, &rp)
			}
		}
		return nil
	})
	slices.SortStableFunc(out, func(a, b *domain.LoanRepayment) int {
		return a.Date.Compare(b.Date)
	})
	return out, err
}

type savingsRepository struct{ *access }

func (r *savingsRepository) CreateSaving(ctx context.Context, saving *domain.Saving) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.members[saving.MemberID]; !ok {
			return sql.ErrNoRows
		}
		st.nextSavingID++
		saving.ID = st.nextSavingID
		st.savings = append(st.savings, *saving)
		return nil
	})
}

func (r *savingsRepository) GetSaving(ctx context.Context, id int64) (*domain.Saving, error) {
	var out *domain.Saving
	err := r.read(ctx, func(st *state) error {
		for _, s := range st.savings {
			if s.ID == id {
				out = &s
				return nil
			}
		}
		return sql.ErrNoRows
	})
	return out, err
}

func (r *savingsRepository) ListSavings(ctx context.Context) ([]*domain.Saving, error) {
	var out []*domain.Saving
	err := r.read(ctx, func(st *state) error {
		for _, s := range st.savings {
			out = append(out, &s)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *domain.Saving) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, err
}

func (r *savingsRepository) SumContributionsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.read(ctx, func(st *state) error {
		for _, s := range st.savings {
			if s.Type == domain.SavingTypeMonthlyContribution &&
				s.Status == domain.SavingStatusCompleted && !s.Date.Before(since) {
				total = total.Add(s.Amount)
			}
		}
		return nil
	})
	return total, err
}

func (r *savingsRepository) GetHistory(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	var out *domain.SavingsHistory
	err := r.read(ctx, func(st *state) error {
		h, ok := st.histories[memberID]
		if !ok {
			return sql.ErrNoRows
		}
		out = &h
		return nil
	})
	return out, err
}

func (r *savingsRepository) GetHistoryForUpdate(ctx context.Context, memberID string) (*domain.SavingsHistory, error) {
	return r.GetHistory(ctx, memberID)
}

func (r *savingsRepository) CreateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.members[history.MemberID]; !ok {
			return sql.ErrNoRows
		}
		if _, ok := st.histories[history.MemberID]; ok {
			return repository.ErrDuplicate
		}
		st.histories[history.MemberID] = *history
		return nil
	})
}

func (r *savingsRepository) UpdateHistory(ctx context.Context, history *domain.SavingsHistory) error {
	return r.write(ctx, func(st *state) error {
		stored, ok := st.histories[history.MemberID]
		if !ok || stored.Version != history.Version {
			return repository.ErrVersionConflict
		}
		history.Version++
		history.UpdatedAt = time.Now()
		st.histories[history.MemberID] = *history
		return nil
	})
}

func (r *savingsRepository) AppendTransaction(ctx context.Context, tx *domain.SavingsTransaction) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.members[tx.MemberID]; !ok {
			return sql.ErrNoRows
		}
		for _, existing := range st.transactions {
			if existing.TransactionNo == tx.TransactionNo {
				return repository.ErrDuplicate
			}
		}
		st.nextSeq++
		tx.Seq = st.nextSeq
		st.transactions = append(st.transactions, *tx)
		return nil
	})
}

func (r *savingsRepository) ListTransactions(ctx context.Context, memberID string) ([]*domain.SavingsTransaction, error) {
	var out []*domain.SavingsTransaction
	err := r.read(ctx, func(st *state) error {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			if t := st.transactions[i]; t.MemberID == memberID {
				out = append(out, &t)
			}
		}
		return nil
	})
	return out, err
}
