package domain

import "errors"

// Store-level outcomes. Services translate these into coded application errors.
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrDuplicateAccount       = errors.New("duplicate account number")
	ErrNonZeroBalance         = errors.New("account balance is not zero")
	ErrNotClosed              = errors.New("account is not closed")
	ErrAccountClosed          = errors.New("account is closed")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("account state changed concurrently")
	ErrTransactionFinalized   = errors.New("transaction already finalized")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidAmount          = errors.New("amount must be positive with at most two decimal places")
	ErrUnknownAccountStatus   = errors.New("unknown account status")
	ErrUnknownTypeCode        = errors.New("unknown transaction type code")
	ErrUnknownRole            = errors.New("unknown role")
	ErrLockTimeout            = errors.New("lock acquisition timed out")
	ErrDuplicateUsername      = errors.New("username already exists")
	ErrUserNotFound           = errors.New("user not found")
)
