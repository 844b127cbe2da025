package handler

import (
	"context"
	"strings"

	"branch-ledger/internal/adapter/http/dto"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles account lifecycle and single-account money movement.
type AccountHandler struct {
	ledgerSvc ports.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledgerSvc ports.LedgerService) *AccountHandler {
	return &AccountHandler{ledgerSvc: ledgerSvc}
}

// List handles GET /api/v1/branches/:branch/accounts. The branch may be ALL.
func (h *AccountHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	accounts, err := h.ledgerSvc.ListAccounts(c.Request.Context(), actor, branchParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountList(accounts))
}

// ListByCustomer handles GET /api/v1/customers/:customer_id/accounts.
func (h *AccountHandler) ListByCustomer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	accounts, err := h.ledgerSvc.ListCustomerAccounts(c.Request.Context(), actor, strings.TrimSpace(c.Param("customer_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountList(accounts))
}

// Get handles GET /api/v1/branches/:branch/accounts/:number.
func (h *AccountHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	account, err := h.ledgerSvc.GetAccount(c.Request.Context(), actor, branchParam(c), accountParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// Open handles POST /api/v1/branches/:branch/accounts.
func (h *AccountHandler) Open(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.OpenAccountRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.ledgerSvc.OpenAccount(c.Request.Context(), actor, ports.OpenAccountRequest{
		Branch:         branchParam(c),
		Number:         req.AccountNumber,
		CustomerID:     req.CustomerID,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAccountResponse(account))
}

// Close handles POST /api/v1/branches/:branch/accounts/:number/close.
func (h *AccountHandler) Close(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	account, err := h.ledgerSvc.CloseAccount(c.Request.Context(), actor, branchParam(c), accountParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// Reopen handles POST /api/v1/branches/:branch/accounts/:number/reopen.
func (h *AccountHandler) Reopen(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	account, err := h.ledgerSvc.ReopenAccount(c.Request.Context(), actor, branchParam(c), accountParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// Delete handles DELETE /api/v1/branches/:branch/accounts/:number.
func (h *AccountHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	number := accountParam(c)
	if err := h.ledgerSvc.DeleteAccount(c.Request.Context(), actor, branchParam(c), number); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"account_number": number, "deleted": true})
}

// Deposit handles POST /api/v1/branches/:branch/accounts/:number/deposits.
func (h *AccountHandler) Deposit(c *gin.Context) {
	h.move(c, h.ledgerSvc.Deposit)
}

// Withdraw handles POST /api/v1/branches/:branch/accounts/:number/withdrawals.
func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.move(c, h.ledgerSvc.Withdraw)
}

type moneyOperation func(ctx context.Context, actor domain.Actor, req ports.MoneyRequest) (*domain.Transaction, error)

func (h *AccountHandler) move(c *gin.Context, op moneyOperation) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	txn, err := op(c.Request.Context(), actor, ports.MoneyRequest{
		Branch:  branchParam(c),
		Account: accountParam(c),
		Amount:  req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}
