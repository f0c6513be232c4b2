package errors

import (
	"errors"
	"fmt"
)

// Kind groups business errors by how a caller should react to them.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindStateConflict      Kind = "state_conflict"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindTransactionAborted Kind = "transaction_aborted"
)

// Domain errors
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInterestRate = errors.New("invalid interest rate")
	ErrInvalidLoanTerm     = errors.New("invalid loan term")
	ErrInvalidDepositType  = errors.New("invalid deposit type")
	ErrInvalidInput        = errors.New("invalid input")

	ErrMemberNotFound   = errors.New("member not found")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrSavingNotFound   = errors.New("savings record not found")
	ErrDocumentNotFound = errors.New("document not found")

	ErrMemberAlreadyExists = errors.New("member already exists")
	ErrInvalidLoanState    = errors.New("invalid loan state transition")
	ErrLoanNotActive       = errors.New("loan is not active")
	ErrMemberInactive      = errors.New("member is not active")

	ErrPaymentExceedsObligation = errors.New("payment exceeds remaining balance plus current interest")
	ErrInsufficientBalance      = errors.New("insufficient savings balance")

	ErrTransactionAborted = errors.New("transaction aborted")
	ErrDatabase           = errors.New("database error")
	ErrCache              = errors.New("cache error")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Kind    Kind
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, kind Kind, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInvalidInterestRate = "INVALID_INTEREST_RATE"
	ErrCodeInvalidLoanTerm     = "INVALID_LOAN_TERM"
	ErrCodeInvalidDepositType  = "INVALID_DEPOSIT_TYPE"
	ErrCodeMemberNotFound      = "MEMBER_NOT_FOUND"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeSavingNotFound      = "SAVING_NOT_FOUND"
	ErrCodeDocumentNotFound    = "DOCUMENT_NOT_FOUND"
	ErrCodeMemberAlreadyExists = "MEMBER_ALREADY_EXISTS"
	ErrCodeInvalidLoanState    = "INVALID_LOAN_STATE"
	ErrCodeLoanNotActive       = "LOAN_NOT_ACTIVE"
	ErrCodeMemberInactive      = "MEMBER_INACTIVE"
	ErrCodePaymentExceeds      = "PAYMENT_EXCEEDS_OBLIGATION"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeTransactionAborted  = "TRANSACTION_ABORTED"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
)

// KindOf reports the Kind of err. Errors that carry no business context are
// storage failures as far as a caller is concerned.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *BusinessError
	if errors.As(err, &be) && be.Kind != "" {
		return be.Kind
	}
	return KindTransactionAborted
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func WrapValidation(message string, err error) *BusinessError {
	if err == nil {
		err = ErrInvalidInput
	}
	return NewBusinessError(ErrCodeValidation, message, KindValidation, err)
}

func WrapInvalidAmount(field string, amount fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("%s must be greater than zero, got %s", field, amount),
		KindValidation,
		ErrInvalidAmount,
	)
}

func WrapInvalidInterestRate(rate fmt.Stringer, min, max fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInterestRate,
		fmt.Sprintf("Interest rate %s must be between %s%% and %s%%", rate, min, max),
		KindValidation,
		ErrInvalidInterestRate,
	)
}

func WrapInvalidLoanTerm(term, limit int) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerm,
		fmt.Sprintf("Loan term must be between 1 and %d months, got %d", limit, term),
		KindValidation,
		ErrInvalidLoanTerm,
	)
}

func WrapInvalidDepositType(depositType string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidDepositType,
		fmt.Sprintf("Unknown deposit type %q", depositType),
		KindValidation,
		ErrInvalidDepositType,
	)
}

func WrapMemberNotFound(memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberNotFound,
		fmt.Sprintf("Member with ID %s not found", memberID),
		KindNotFound,
		ErrMemberNotFound,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		KindNotFound,
		ErrLoanNotFound,
	)
}

func WrapSavingNotFound(id int64) *BusinessError {
	return NewBusinessError(
		ErrCodeSavingNotFound,
		fmt.Sprintf("Savings record %d not found", id),
		KindNotFound,
		ErrSavingNotFound,
	)
}

func WrapDocumentNotFound(loanID, documentType string) *BusinessError {
	return NewBusinessError(
		ErrCodeDocumentNotFound,
		fmt.Sprintf("Loan %s has no %s document", loanID, documentType),
		KindNotFound,
		ErrDocumentNotFound,
	)
}

func WrapMemberAlreadyExists(key string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberAlreadyExists,
		fmt.Sprintf("Member %s already exists", key),
		KindStateConflict,
		ErrMemberAlreadyExists,
	)
}

func WrapInvalidLoanState(loanID, current, action string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanState,
		fmt.Sprintf("Cannot %s loan %s in status %s", action, loanID, current),
		KindStateConflict,
		ErrInvalidLoanState,
	)
}

func WrapLoanNotActive(loanID, current string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan %s is %s, repayments require an active loan", loanID, current),
		KindStateConflict,
		ErrLoanNotActive,
	)
}

func WrapMemberInactive(memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberInactive,
		fmt.Sprintf("Member %s is not active", memberID),
		KindStateConflict,
		ErrMemberInactive,
	)
}

func WrapPaymentExceedsObligation(amount, obligation fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentExceeds,
		fmt.Sprintf("Payment %s exceeds remaining balance plus current month's interest %s", amount, obligation),
		KindInsufficientFunds,
		ErrPaymentExceedsObligation,
	)
}

func WrapInsufficientBalance(memberID string, requested, available fmt.Stringer) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientBalance,
		fmt.Sprintf("Member %s requested %s but only %s is available", memberID, requested, available),
		KindInsufficientFunds,
		ErrInsufficientBalance,
	)
}

func WrapTransactionAborted(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeTransactionAborted,
		"transaction aborted, no changes were applied",
		KindTransactionAborted,
		errors.Join(ErrTransactionAborted, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		KindTransactionAborted,
		errors.Join(ErrDatabase, err),
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		KindTransactionAborted,
		errors.Join(ErrCache, err),
	)
}
