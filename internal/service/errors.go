package service

import (
	"context"
	"errors"

	"branch-ledger/internal/core/domain"
	"branch-ledger/pkg/apperror"
)

// toAppError maps store outcomes onto coded application errors.
func toAppError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperror.ErrAccountNotFound()
	case errors.Is(err, domain.ErrTransactionNotFound):
		return apperror.ErrNotFound("transaction")
	case errors.Is(err, domain.ErrDuplicateAccount):
		return apperror.ErrDuplicateAccount()
	case errors.Is(err, domain.ErrNonZeroBalance):
		return apperror.ErrNonZeroBalance()
	case errors.Is(err, domain.ErrNotClosed):
		return apperror.ErrNotClosed()
	case errors.Is(err, domain.ErrAccountClosed):
		return apperror.ErrAccountClosed()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return apperror.ErrInsufficientBalance()
	case errors.Is(err, domain.ErrConcurrentModification):
		return apperror.ErrConcurrentModification()
	case errors.Is(err, domain.ErrUnknownAccountStatus):
		return apperror.Validation("account status must be ACTIVE or CLOSED")
	case errors.Is(err, domain.ErrInvalidAmount):
		return apperror.ErrInvalidAmount()
	case errors.Is(err, domain.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrLockTimeout(err)
	}
	return apperror.ErrDatabaseError(err)
}

// failureReason is the human-readable detail stored on a Failed audit entry.
func failureReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
