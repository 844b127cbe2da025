package handler

import (
	"strings"

	"branch-ledger/internal/adapter/http/dto"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/apperror"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry a transfer without moving money twice.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// TransferHandler handles transfers between accounts.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/branches/:branch/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	var req dto.TransferRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.transferSvc.Transfer(c.Request.Context(), actor, ports.TransferRequest{
		Branch:         branchParam(c),
		From:           req.FromAccount,
		ToBranch:       req.ToBranch,
		To:             req.ToAccount,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}
