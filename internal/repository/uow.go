package repository

import "context"

// Repos bundles the repositories that share one transaction.
type Repos struct {
	Members    MemberRepository
	Loans      LoanRepository
	Repayments RepaymentRepository
	Savings    SavingsRepository
}

// Store is the unit-of-work boundary. Writes made through the Repos handed to
// fn are committed together when fn returns nil and discarded otherwise.
type Store interface {
	// Repos returns repositories that run outside any transaction
	Repos() Repos

	// WithinTx runs fn inside one transaction
	WithinTx(ctx context.Context, fn func(r Repos) error) error

	// Ping checks the storage backend
	Ping(ctx context.Context) error

	Close() error
}
