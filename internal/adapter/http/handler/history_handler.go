package handler

import (
	"time"

	"branch-ledger/internal/adapter/http/dto"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves audit log queries.
type HistoryHandler struct {
	historySvc ports.HistoryService
	now        func() time.Time
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historySvc ports.HistoryService) *HistoryHandler {
	return &HistoryHandler{historySvc: historySvc, now: time.Now}
}

// AccountTransactions handles GET /api/v1/branches/:branch/accounts/:number/transactions.
func (h *HistoryHandler) AccountTransactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	txns, err := h.historySvc.AccountTransactions(c.Request.Context(), actor, branchParam(c), accountParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionList(txns))
}

// BranchTransactions handles GET /api/v1/branches/:branch/transactions?from=&to=.
func (h *HistoryHandler) BranchTransactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	from, err := timeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, err := h.historySvc.BranchTransactions(c.Request.Context(), actor, branchParam(c), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionList(txns))
}

// DailyTotals handles GET /api/v1/branches/:branch/accounts/:number/daily-totals?date=.
// The date defaults to today (UTC).
func (h *HistoryHandler) DailyTotals(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	day := h.now().UTC()
	if d, err := timeQuery(c, "date"); err != nil {
		response.Error(c, err)
		return
	} else if d != nil {
		day = *d
	}

	totals, err := h.historySvc.DailyTotals(c.Request.Context(), actor, branchParam(c), accountParam(c), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDailyTotalsResponse(totals))
}
