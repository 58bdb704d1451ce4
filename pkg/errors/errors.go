package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidWindow         = errors.New("outside request window")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrConcurrencyConflict   = errors.New("concurrency conflict")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrNotFound              = errors.New("not found")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
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
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInvalidWindow         = "INVALID_WINDOW"
	ErrCodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	ErrCodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	ErrCodeInvalidTransition     = "INVALID_TRANSITION"
	ErrCodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	ErrCodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

func WrapValidation(format string, args ...any) *BusinessError {
	return NewBusinessError(ErrCodeValidation, fmt.Sprintf(format, args...), ErrValidation)
}

func WrapInvalidWindow(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidWindow, message, ErrInvalidWindow)
}

func WrapInsufficientBalance(available, requested string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientBalance,
		fmt.Sprintf("Requested %s exceeds available balance %s", requested, available),
		ErrInsufficientBalance,
	)
}

func WrapInsufficientAllowance(available, requested, message string) *BusinessError {
	msg := fmt.Sprintf("Requested %s exceeds available allowance %s", requested, available)
	if message != "" {
		msg += ": " + message
	}
	return NewBusinessError(ErrCodeInsufficientAllowance, msg, ErrInsufficientAllowance)
}

func WrapInvalidTransition(id, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Request %s: %s", id, reason),
		ErrInvalidTransition,
	)
}

func WrapConcurrencyConflict(lockKey string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrencyConflict,
		fmt.Sprintf("Concurrent update on %s, retry from a fresh read", lockKey),
		errors.Join(ErrConcurrencyConflict, err),
	)
}

func WrapStorageUnavailable(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStorageUnavailable,
		"persistent store unavailable",
		errors.Join(ErrStorageUnavailable, err),
	)
}

func WrapNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", entity, id),
		ErrNotFound,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

// Kind returns the code of the outermost BusinessError in err's chain.
func Kind(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	if err == nil {
		return ""
	}
	return ErrCodeInternal
}

// IsRetryable reports whether the whole check-then-act sequence may be rerun.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
