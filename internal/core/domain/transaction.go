package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the stored type code of an audit entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "GT"
	TransactionTypeWithdrawal TransactionType = "RT"
	TransactionTypeTransfer   TransactionType = "CK"

	// legacyTransferCode is still present in older rows.
	legacyTransferCode = "CT"
)

// TransferTypeCodes lists every stored code that means a transfer.
var TransferTypeCodes = []string{string(TransactionTypeTransfer), legacyTransferCode}

// ParseTypeCode maps a stored code to its canonical type.
func ParseTypeCode(code string) (TransactionType, error) {
	switch code {
	case string(TransactionTypeDeposit):
		return TransactionTypeDeposit, nil
	case string(TransactionTypeWithdrawal):
		return TransactionTypeWithdrawal, nil
	case string(TransactionTypeTransfer), legacyTransferCode:
		return TransactionTypeTransfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTypeCode, code)
}

// Label returns a human-readable name.
func (t TransactionType) Label() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdrawal:
		return "withdrawal"
	case TransactionTypeTransfer:
		return "transfer"
	}
	return string(t)
}

// TransactionStatus represents the lifecycle state of an audit entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one audit entry for an attempted deposit, withdrawal or transfer.
// Once Completed or Failed it is never changed again.
type Transaction struct {
	ID                 int64             `json:"id"`
	BranchCode         string            `json:"branch_code"`
	Account            string            `json:"account_number"`
	Type               TransactionType   `json:"type"`
	Amount             decimal.Decimal   `json:"amount"`
	CreatedAt          time.Time         `json:"created_at"`
	EmployeeID         string            `json:"employee_id,omitempty"`
	DestinationAccount *string           `json:"destination_account,omitempty"`
	Status             TransactionStatus `json:"status"`
	ErrorDetail        *string           `json:"error_detail,omitempty"`
}

// NewTransaction builds a Pending entry.
func NewTransaction(branch, account string, typ TransactionType, amount decimal.Decimal, employeeID string, now time.Time) *Transaction {
	return &Transaction{
		BranchCode: branch,
		Account:    account,
		Type:       typ,
		Amount:     amount,
		CreatedAt:  now.UTC(),
		EmployeeID: employeeID,
		Status:     TransactionStatusPending,
	}
}

// NewTransfer builds a Pending transfer entry from source to destination.
func NewTransfer(branch, from, to string, amount decimal.Decimal, employeeID string, now time.Time) *Transaction {
	t := NewTransaction(branch, from, TransactionTypeTransfer, amount, employeeID, now)
	dest := to
	t.DestinationAccount = &dest
	return t
}

// IsTerminal returns true if the entry is Completed or Failed.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// Complete marks a pending entry as successful.
func (t *Transaction) Complete() error {
	if t.IsTerminal() {
		return ErrTransactionFinalized
	}
	t.Status = TransactionStatusCompleted
	return nil
}

// Fail marks a pending entry as failed with a reason.
func (t *Transaction) Fail(reason string) error {
	if t.IsTerminal() {
		return ErrTransactionFinalized
	}
	t.Status = TransactionStatusFailed
	t.ErrorDetail = &reason
	return nil
}

// Involves reports whether account is the source or destination.
func (t *Transaction) Involves(account string) bool {
	return t.Account == account || (t.DestinationAccount != nil && *t.DestinationAccount == account)
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.DestinationAccount != nil {
		d := *t.DestinationAccount
		c.DestinationAccount = &d
	}
	if t.ErrorDetail != nil {
		e := *t.ErrorDetail
		c.ErrorDetail = &e
	}
	return &c
}

// DayBounds returns [start, start+24h) of the UTC day containing day.
func DayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// DailyTotals is the per-day aggregate of completed outgoing money for an account.
type DailyTotals struct {
	Account     string           `json:"account_number"`
	Date        string           `json:"date"`
	Withdrawals decimal.Decimal  `json:"withdrawals"`
	Transfers   decimal.Decimal  `json:"transfers"`
	Limit       *decimal.Decimal `json:"limit,omitempty"`
}
