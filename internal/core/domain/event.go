package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent is published once an audit entry is finalized.
type LedgerEvent struct {
	TransactionID      int64             `json:"transaction_id"`
	BranchCode         string            `json:"branch_code"`
	Type               string            `json:"type"`
	Account            string            `json:"account_number"`
	DestinationAccount string            `json:"destination_account,omitempty"`
	Amount             decimal.Decimal   `json:"amount"`
	Status             TransactionStatus `json:"status"`
	ErrorDetail        string            `json:"error_detail,omitempty"`
	EmployeeID         string            `json:"employee_id,omitempty"`
	OccurredAt         time.Time         `json:"occurred_at"`
}

// NewLedgerEvent projects a finalized entry.
func NewLedgerEvent(t *Transaction) LedgerEvent {
	e := LedgerEvent{
		TransactionID: t.ID,
		BranchCode:    t.BranchCode,
		Type:          t.Type.Label(),
		Account:       t.Account,
		Amount:        t.Amount,
		Status:        t.Status,
		EmployeeID:    t.EmployeeID,
		OccurredAt:    t.CreatedAt,
	}
	if t.DestinationAccount != nil {
		e.DestinationAccount = *t.DestinationAccount
	}
	if t.ErrorDetail != nil {
		e.ErrorDetail = *t.ErrorDetail
	}
	return e
}
