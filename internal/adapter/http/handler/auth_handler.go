package handler

import (
	"branch-ledger/internal/adapter/http/dto"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register. Only bank-level users reach it.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username:   req.Username,
		Password:   req.Password,
		Role:       domain.Role(req.Role),
		BranchCode: req.BranchCode,
		CustomerID: req.CustomerID,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewUserResponse(user))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	token, expiry, actor, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
		Actor:  *actor,
	})
}

// Me handles GET /api/v1/auth/me and echoes the session with the selected branch applied.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	response.OK(c, actor)
}
