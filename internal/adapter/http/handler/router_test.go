package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"branch-ledger/config"
	"branch-ledger/internal/adapter/http/middleware"
	redisStore "branch-ledger/internal/adapter/storage/redis"
	"branch-ledger/internal/branch"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports/mocks"
	"branch-ledger/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	engine    *gin.Engine
	auth      *mocks.MockAuthService
	ledger    *mocks.MockLedgerService
	transfers *mocks.MockTransferService
	history   *mocks.MockHistoryService
	tokens    *mocks.MockTokenService
}

func newRouterFixture(t *testing.T, withRateLimit bool) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	dir, err := branch.NewDirectory(config.DatabaseConfig{Host: "db", DBName: "bank_central"}, []config.BranchConfig{
		{Code: "WEST", Name: "West"},
		{Code: "EAST", Name: "East"},
	})
	require.NoError(t, err)

	f := &routerFixture{
		auth:      mocks.NewMockAuthService(ctrl),
		ledger:    mocks.NewMockLedgerService(ctrl),
		transfers: mocks.NewMockTransferService(ctrl),
		history:   mocks.NewMockHistoryService(ctrl),
		tokens:    mocks.NewMockTokenService(ctrl),
	}
	deps := RouterDeps{
		AuthSvc:     f.auth,
		LedgerSvc:   f.ledger,
		TransferSvc: f.transfers,
		HistorySvc:  f.history,
		TokenSvc:    f.tokens,
		Branches:    dir,
		Logger:      zerolog.Nop(),
	}
	if withRateLimit {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		deps.RateLimitStore = redisStore.NewRateLimitStore(client)
	}
	f.engine = SetupRouter(deps)
	return f
}

// signIn makes token resolve to actor.
func (f *routerFixture) signIn(token string, actor domain.Actor) {
	f.tokens.EXPECT().Validate(token).DoAndReturn(func(string) (*domain.Actor, error) {
		a := actor
		return &a, nil
	}).AnyTimes()
}

func (f *routerFixture) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	observability.Init()
	f := newRouterFixture(t, false)

	w := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = f.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")

	w = f.do(http.MethodGet, "/swagger/spec", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newRouterFixture(t, false)

	for _, path := range []string{"/api/v1/branches", "/api/v1/branches/WEST/accounts", "/api/v1/auth/me"} {
		w := f.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_ListBranches(t *testing.T) {
	f := newRouterFixture(t, false)
	f.signIn("teller", westTeller)

	w := f.do(http.MethodGet, "/api/v1/branches", "teller", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data []domain.Branch
	decodeData(t, w, &data)
	require.Len(t, data, 2)
	assert.Equal(t, "EAST", data[0].Code)
	assert.Equal(t, "WEST", data[1].Code)
}

func TestRouter_BankSelectsBranch(t *testing.T) {
	f := newRouterFixture(t, false)
	f.signIn("bank", bankAdmin)

	selected := bankAdmin.WithSelectedBranch("EAST")
	f.ledger.EXPECT().GetAccount(gomock.Any(), selected, "EAST", "A00000001").Return(sampleAccount("A00000001", "1"), nil)

	w := f.do(http.MethodGet, "/api/v1/branches/EAST/accounts/A00000001", "bank", "", middleware.HeaderBranch, "east")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/branches/EAST/accounts/A00000001", "bank", "", middleware.HeaderBranch, "NORTH")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RegisterIsBankOnly(t *testing.T) {
	f := newRouterFixture(t, false)
	f.signIn("teller", westTeller)

	body := `{"username":"new","password":"password123","role":"BRANCH","branch_code":"WEST"}`
	w := f.do(http.MethodPost, "/api/v1/auth/register", "teller", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_TransferWithIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t, false)
	f.signIn("teller", westTeller)

	txn := domain.NewTransfer("WEST", "A00000001", "B00000002", dec("5"), "E0001", time.Now())
	_ = txn.Complete()
	f.transfers.EXPECT().Transfer(gomock.Any(), westTeller, gomock.Any()).Return(txn, nil)

	w := f.do(http.MethodPost, "/api/v1/branches/WEST/transfers", "teller",
		`{"from_account":"A00000001","to_account":"B00000002","amount":"5"}`, HeaderIdempotencyKey, "abc")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_RateLimitsLogin(t *testing.T) {
	f := newRouterFixture(t, true)
	limit := int(middleware.DefaultRateLimitRules()["auth_login"].Limit)
	body := `{"username":"x"}` // rejected by validation, still counted
	for i := 0; i < limit; i++ {
		w := f.do(http.MethodPost, "/api/v1/auth/login", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code, "request %d", i+1)
	}

	w := f.do(http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
