package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account is a customer account held at one branch.
// Balance never goes below zero; a closed account holds exactly zero.
type Account struct {
	Number     string          `json:"account_number"`
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	BranchCode string          `json:"branch_code"`
	OpenedAt   time.Time       `json:"opened_at"`
	Status     AccountStatus   `json:"status"`
}

// IsActive returns true if the account accepts debits and credits.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanDebit checks that amount may be taken from the account right now.
func (a *Account) CanDebit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return ErrAccountClosed
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	return nil
}

// CanCredit checks that the account may receive money.
func (a *Account) CanCredit() error {
	if !a.IsActive() {
		return ErrAccountClosed
	}
	return nil
}

// Debit subtracts amount after CanDebit passes.
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := a.CanDebit(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Credit adds amount to an active account.
func (a *Account) Credit(amount decimal.Decimal) error {
	if err := a.CanCredit(); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Close moves an active, empty account to Closed.
func (a *Account) Close() error {
	if a.Status == AccountStatusClosed {
		return ErrAccountClosed
	}
	if !a.Balance.IsZero() {
		return ErrNonZeroBalance
	}
	a.Status = AccountStatusClosed
	return nil
}

// Reopen moves a closed account back to Active.
func (a *Account) Reopen() error {
	if a.Status != AccountStatusClosed {
		return ErrNotClosed
	}
	a.Status = AccountStatusActive
	return nil
}

// SetBalanceAndStatus overwrites balance and status while keeping a closed
// account frozen at zero. The account is unchanged on error.
func (a *Account) SetBalanceAndStatus(balance decimal.Decimal, status AccountStatus) error {
	switch {
	case balance.IsNegative():
		return ErrInsufficientBalance
	case status != AccountStatusActive && status != AccountStatusClosed:
		return ErrUnknownAccountStatus
	case a.Status == AccountStatusClosed && status == AccountStatusClosed && !balance.Equal(a.Balance):
		return ErrAccountClosed
	case status == AccountStatusClosed && !balance.IsZero():
		return ErrNonZeroBalance
	}
	a.Balance = balance
	a.Status = status
	return nil
}

// CanDelete reports whether the account may be physically removed.
func (a *Account) CanDelete() error {
	if !a.Balance.IsZero() {
		return ErrNonZeroBalance
	}
	return nil
}

// ValidateAmount rejects non-positive amounts and sub-cent precision.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}
