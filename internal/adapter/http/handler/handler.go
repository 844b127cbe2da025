package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"branch-ledger/internal/adapter/http/dto"
	"branch-ledger/internal/adapter/http/middleware"
	"branch-ledger/internal/core/domain"
	"branch-ledger/pkg/apperror"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// currentActor returns the signed-in actor or writes an auth error.
func currentActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes the body, normalizes it and only then validates, so
// lower-case account numbers pass the format checks.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ErrBodyTooLarge()
		}
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is required")
		}
		return apperror.Validation(err.Error())
	}
	dto.NormalizeStruct(req)
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func branchParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("branch")))
}

func accountParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("number")))
}

// timeQuery parses an optional RFC 3339 timestamp or YYYY-MM-DD date.
func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be RFC 3339 or YYYY-MM-DD")
	}
	return &t, nil
}
