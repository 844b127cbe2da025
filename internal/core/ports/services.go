package ports

import (
	"context"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
	// NeedsRehash reports whether hash was made with outdated cost settings.
	NeedsRehash(hash string) bool
}

// TokenService issues and validates session tokens carrying the actor.
type TokenService interface {
	Generate(actor domain.Actor) (string, time.Time, error)
	Validate(tokenString string) (*domain.Actor, error)
}

// IdempotencyCache is the Redis-layer replay cache for transfers.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Reserve marks key as in flight. It returns false if another request holds it.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key in a fixed window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// EventPublisher ships finalized ledger entries to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// LedgerService manages account lifecycle and single-account money movement.
type LedgerService interface {
	ListAccounts(ctx context.Context, actor domain.Actor, branch string) ([]domain.Account, error)
	ListCustomerAccounts(ctx context.Context, actor domain.Actor, customerID string) ([]domain.Account, error)
	GetAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error)
	OpenAccount(ctx context.Context, actor domain.Actor, req OpenAccountRequest) (*domain.Account, error)
	CloseAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error)
	ReopenAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, actor domain.Actor, branch, number string) error
	Deposit(ctx context.Context, actor domain.Actor, req MoneyRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, actor domain.Actor, req MoneyRequest) (*domain.Transaction, error)
}

// OpenAccountRequest holds input for opening an account.
type OpenAccountRequest struct {
	Branch         string
	Number         string
	CustomerID     string
	OpeningBalance decimal.Decimal
}

// MoneyRequest holds input for a deposit or withdrawal.
type MoneyRequest struct {
	Branch  string
	Account string
	Amount  decimal.Decimal
}

// TransferService moves money between two accounts atomically.
type TransferService interface {
	Transfer(ctx context.Context, actor domain.Actor, req TransferRequest) (*domain.Transaction, error)
}

// TransferRequest holds input for a transfer. ToBranch defaults to Branch.
type TransferRequest struct {
	Branch         string
	From           string
	ToBranch       string
	To             string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// HistoryService answers audit log queries.
type HistoryService interface {
	AccountTransactions(ctx context.Context, actor domain.Actor, branch, number string) ([]domain.Transaction, error)
	BranchTransactions(ctx context.Context, actor domain.Actor, branch string, from, to *time.Time) ([]domain.Transaction, error)
	DailyTotals(ctx context.Context, actor domain.Actor, branch, number string, day time.Time) (*domain.DailyTotals, error)
}

// AuthService authenticates users of the central directory.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, *domain.Actor, error) // token, expiry, actor, error
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
}

// RegisterRequest holds input for creating a directory user.
type RegisterRequest struct {
	Username   string
	Password   string
	Role       domain.Role
	BranchCode string
	CustomerID string
	EmployeeID string
}
