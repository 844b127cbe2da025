package ports

import (
	"context"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// LedgerStore owns the accounts of one underlying store.
// Every mutation is serialized per store: a single lock for the in-process
// store, a transaction with row locks for the database store.
// Lookups return domain.ErrAccountNotFound for unknown accounts.
type LedgerStore interface {
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	// ListByBranch returns accounts of branch; domain.AllBranches returns every account in the store.
	ListByBranch(ctx context.Context, branch string) ([]domain.Account, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error)
	// Create fails with domain.ErrDuplicateAccount when the number is taken.
	Create(ctx context.Context, account *domain.Account) error
	UpdateBalanceAndStatus(ctx context.Context, number string, balance decimal.Decimal, status domain.AccountStatus) error
	// Delete, Close and Reopen re-check the balance and status at mutation time.
	Delete(ctx context.Context, number string) error
	Close(ctx context.Context, number string) error
	Reopen(ctx context.Context, number string) error
	// Atomic runs fn as one indivisible unit. If fn returns an error no
	// balance change survives.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the view of a LedgerStore inside an atomic section.
type LedgerTx interface {
	// Lock acquires the accounts in a stable order. Unknown accounts yield domain.ErrAccountNotFound.
	Lock(ctx context.Context, numbers ...string) error
	// Debit succeeds only if the account is active and holds at least amount;
	// otherwise it returns domain.ErrConcurrentModification.
	Debit(ctx context.Context, number string, amount decimal.Decimal) error
	// Credit succeeds only if the account is active; otherwise domain.ErrConcurrentModification.
	Credit(ctx context.Context, number string, amount decimal.Decimal) error
	// Append and Finalize record audit entries as part of the unit.
	Append(ctx context.Context, txn *domain.Transaction) error
	Finalize(ctx context.Context, txn *domain.Transaction) error
}

// AuditLog is the append-only record of ledger operation attempts.
type AuditLog interface {
	// Append stores a new entry and assigns its ID.
	Append(ctx context.Context, txn *domain.Transaction) error
	// Finalize persists the terminal status of a pending entry.
	// A non-pending entry yields domain.ErrTransactionFinalized.
	Finalize(ctx context.Context, txn *domain.Transaction) error
	// ListByAccount returns entries where the account is source or destination, newest first.
	ListByAccount(ctx context.Context, number string) ([]domain.Transaction, error)
	// ListByBranch returns entries of branch with from <= created_at < to, newest first.
	ListByBranch(ctx context.Context, branch string, from, to *time.Time) ([]domain.Transaction, error)
	// DailyWithdrawalTotal sums completed withdrawals of the UTC day containing day.
	DailyWithdrawalTotal(ctx context.Context, number string, day time.Time) (decimal.Decimal, error)
	// DailyTransferTotal sums completed outgoing transfers of the UTC day containing day.
	DailyTransferTotal(ctx context.Context, number string, day time.Time) (decimal.Decimal, error)
}

// Backend pairs the ledger and audit log that share one underlying store.
type Backend struct {
	Name  string
	Store LedgerStore
	Audit AuditLog
}

// BranchDirectory resolves branch codes to their connection targets.
type BranchDirectory interface {
	BranchExists(code string) bool
	Branch(code string) (domain.Branch, bool)
	Branches() []domain.Branch
	ResolveTarget(code string) (domain.ConnectionTarget, error)
	ResolveCentralTarget() domain.ConnectionTarget
}

// UserRepository is the central user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// GetByUsername returns nil, nil when the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// UpdatePasswordHash returns domain.ErrUserNotFound for unknown users.
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}
