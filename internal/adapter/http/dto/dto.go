package dto

import (
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" normalize:"-"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string       `json:"token"`
	Expiry int64        `json:"expiry"` // Unix timestamp
	Actor  domain.Actor `json:"actor"`
}

// RegisterRequest is the request body for creating a directory user.
type RegisterRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Password   string `json:"password" binding:"required,min=8,max=128" normalize:"-"`
	Role       string `json:"role" binding:"required,oneof=BANK BRANCH CUSTOMER" normalize:"upper"`
	BranchCode string `json:"branch_code" binding:"required" normalize:"upper"`
	CustomerID string `json:"customer_id,omitempty" binding:"omitempty,customer_id"`
	EmployeeID string `json:"employee_id,omitempty" binding:"max=20"`
}

// UserResponse is the public view of a directory user.
type UserResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	BranchCode string  `json:"branch_code"`
	CustomerID *string `json:"customer_id,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// OpenAccountRequest is the request body for opening an account.
type OpenAccountRequest struct {
	AccountNumber  string          `json:"account_number" binding:"required,account_number" normalize:"upper"`
	CustomerID     string          `json:"customer_id" binding:"required,customer_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// AmountRequest is the request body for deposits and withdrawals.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest is the request body for a transfer. ToBranch defaults to
// the branch in the path.
type TransferRequest struct {
	FromAccount string          `json:"from_account" binding:"required,account_number" normalize:"upper"`
	ToAccount   string          `json:"to_account" binding:"required,account_number" normalize:"upper"`
	ToBranch    string          `json:"to_branch,omitempty" binding:"omitempty,branch_code" normalize:"upper"`
	Amount      decimal.Decimal `json:"amount"`
}

// AccountResponse is the response body for an account.
type AccountResponse struct {
	AccountNumber string `json:"account_number"`
	CustomerID    string `json:"customer_id"`
	BranchCode    string `json:"branch_code"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
	OpenedAt      string `json:"opened_at"`
}

// TransactionResponse is the response body for an audit entry.
type TransactionResponse struct {
	ID                 int64   `json:"id"`
	BranchCode         string  `json:"branch_code"`
	AccountNumber      string  `json:"account_number"`
	DestinationAccount *string `json:"destination_account,omitempty"`
	Type               string  `json:"type"`
	TypeCode           string  `json:"type_code"`
	Amount             string  `json:"amount"`
	Status             string  `json:"status"`
	EmployeeID         string  `json:"employee_id,omitempty"`
	ErrorDetail        *string `json:"error_detail,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// TransactionListResponse wraps a list of audit entries.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int                   `json:"total"`
}

// DailyTotalsResponse is the response body for a daily totals query.
type DailyTotalsResponse struct {
	AccountNumber string  `json:"account_number"`
	Date          string  `json:"date"`
	Withdrawals   string  `json:"withdrawals"`
	Transfers     string  `json:"transfers"`
	Limit         *string `json:"limit,omitempty"`
}

// NewAccountResponse maps a domain account to its response body.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.Number,
		CustomerID:    a.CustomerID,
		BranchCode:    a.BranchCode,
		Balance:       a.Balance.StringFixed(2),
		Status:        string(a.Status),
		OpenedAt:      a.OpenedAt.UTC().Format(time.RFC3339),
	}
}

// NewAccountList maps a slice of accounts.
func NewAccountList(accounts []domain.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i]))
	}
	return out
}

// NewTransactionResponse maps an audit entry to its response body.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                 t.ID,
		BranchCode:         t.BranchCode,
		AccountNumber:      t.Account,
		DestinationAccount: t.DestinationAccount,
		Type:               t.Type.Label(),
		TypeCode:           string(t.Type),
		Amount:             t.Amount.StringFixed(2),
		Status:             string(t.Status),
		EmployeeID:         t.EmployeeID,
		ErrorDetail:        t.ErrorDetail,
		CreatedAt:          t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewTransactionList maps a slice of audit entries.
func NewTransactionList(txns []domain.Transaction) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, NewTransactionResponse(&txns[i]))
	}
	return TransactionListResponse{Items: items, Total: len(items)}
}

// NewDailyTotalsResponse maps daily totals to their response body.
func NewDailyTotalsResponse(d *domain.DailyTotals) DailyTotalsResponse {
	resp := DailyTotalsResponse{
		AccountNumber: d.Account,
		Date:          d.Date,
		Withdrawals:   d.Withdrawals.StringFixed(2),
		Transfers:     d.Transfers.StringFixed(2),
	}
	if d.Limit != nil {
		limit := d.Limit.StringFixed(2)
		resp.Limit = &limit
	}
	return resp
}

// NewUserResponse maps a directory user to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Role:       string(u.Role),
		BranchCode: u.BranchCode,
		CustomerID: u.CustomerID,
		EmployeeID: u.EmployeeID,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
