package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/internal/core/ports/mocks"
	"branch-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	transfers := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(transfers)

	transfers.EXPECT().Transfer(gomock.Any(), westTeller, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Actor, req ports.TransferRequest) (*domain.Transaction, error) {
			assert.Equal(t, "WEST", req.Branch)
			assert.Equal(t, "A00000001", req.From)
			assert.Equal(t, "B00000002", req.To)
			assert.Empty(t, req.ToBranch)
			assert.Equal(t, "key-123", req.IdempotencyKey)
			assert.True(t, req.Amount.Equal(dec("30")))

			txn := domain.NewTransfer(req.Branch, req.From, req.To, req.Amount, "E0001", time.Now())
			txn.ID = 11
			_ = txn.Complete()
			return txn, nil
		})

	c, w := newContext(http.MethodPost, "/", `{"from_account":"A00000001","to_account":"b00000002","amount":"30"}`,
		&westTeller, gin.Param{Key: "branch", Value: "WEST"})
	c.Request.Header.Set(HeaderIdempotencyKey, " key-123 ")
	h.Transfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var data map[string]interface{}
	decodeData(t, w, &data)
	assert.Equal(t, "transfer", data["type"])
	assert.Equal(t, "B00000002", data["destination_account"])
	assert.Equal(t, "30.00", data["amount"])
}

func TestTransfer_ServiceErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantRetry bool
	}{
		{"self transfer", apperror.ErrSelfTransfer(), http.StatusBadRequest, false},
		{"insufficient balance", apperror.ErrInsufficientBalance(), http.StatusUnprocessableEntity, false},
		{"cross store", apperror.ErrCrossStoreTransfer(), http.StatusUnprocessableEntity, false},
		{"concurrent modification", apperror.ErrConcurrentModification(), http.StatusConflict, true},
		{"in flight", apperror.ErrRequestInFlight(), http.StatusConflict, true},
		{"lock timeout", apperror.ErrLockTimeout(context.DeadlineExceeded), http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transfers := mocks.NewMockTransferService(ctrl)
			transfers.EXPECT().Transfer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newContext(http.MethodPost, "/", `{"from_account":"A00000001","to_account":"B00000002","amount":"1"}`,
				&westTeller, gin.Param{Key: "branch", Value: "WEST"})
			NewTransferHandler(transfers).Transfer(c)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantRetry, decodeError(t, w).Retryable)
		})
	}
}

func TestTransfer_RejectedBeforeService(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{"missing destination", `{"from_account":"A00000001","amount":"1"}`, ""},
		{"to branch ALL", `{"from_account":"A00000001","to_account":"B00000002","to_branch":"all","amount":"1"}`, ""},
		{"idempotency key too long", `{"from_account":"A00000001","to_account":"B00000002","amount":"1"}`, strings.Repeat("k", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewTransferHandler(mocks.NewMockTransferService(ctrl))

			c, w := newContext(http.MethodPost, "/", tt.body, &westTeller, gin.Param{Key: "branch", Value: "WEST"})
			if tt.key != "" {
				c.Request.Header.Set(HeaderIdempotencyKey, tt.key)
			}
			h.Transfer(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
