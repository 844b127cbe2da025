package handler

import (
	"branch-ledger/internal/adapter/http/middleware"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	TransferSvc    ports.TransferService
	HistorySvc     ports.HistoryService
	TokenSvc       ports.TokenService
	Branches       ports.BranchDirectory
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Branches, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/register", jwtAuth, middleware.RequireRole(domain.RoleBank), rl("auth_register"), authHandler.Register)
		auth.GET("/me", jwtAuth, authHandler.Me)
	}

	branchHandler := NewBranchHandler(deps.Branches)
	accountHandler := NewAccountHandler(deps.LedgerSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc)
	historyHandler := NewHistoryHandler(deps.HistorySvc)

	v1.GET("/branches", jwtAuth, rl("reads"), branchHandler.List)
	v1.GET("/customers/:customer_id/accounts", jwtAuth, rl("reads"), accountHandler.ListByCustomer)

	branch := v1.Group("/branches/:branch", jwtAuth)
	{
		branch.GET("/accounts", rl("reads"), accountHandler.List)
		branch.POST("/accounts", rl("accounts"), accountHandler.Open)
		branch.GET("/transactions", rl("reads"), historyHandler.BranchTransactions)
		branch.POST("/transfers", rl("transfers"), transferHandler.Transfer)

		account := branch.Group("/accounts/:number")
		{
			account.GET("", rl("reads"), accountHandler.Get)
			account.DELETE("", rl("accounts"), accountHandler.Delete)
			account.POST("/close", rl("accounts"), accountHandler.Close)
			account.POST("/reopen", rl("accounts"), accountHandler.Reopen)
			account.POST("/deposits", rl("money"), accountHandler.Deposit)
			account.POST("/withdrawals", rl("money"), accountHandler.Withdraw)
			account.GET("/transactions", rl("reads"), historyHandler.AccountTransactions)
			account.GET("/daily-totals", rl("reads"), historyHandler.DailyTotals)
		}
	}

	return r
}
