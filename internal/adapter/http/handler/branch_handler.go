package handler

import (
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// BranchHandler serves the branch reference set.
type BranchHandler struct {
	branches ports.BranchDirectory
}

func NewBranchHandler(branches ports.BranchDirectory) *BranchHandler {
	return &BranchHandler{branches: branches}
}

// List handles GET /api/v1/branches.
func (h *BranchHandler) List(c *gin.Context) {
	response.OK(c, h.branches.Branches())
}
