package service

import (
	"context"
	"testing"

	"branch-ledger/config"
	"branch-ledger/internal/adapter/storage/memory"
	"branch-ledger/internal/branch"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ledgerFixture wires the services over memory stores. WEST has a store of
// its own; EAST and SOUTH share the central one.
type ledgerFixture struct {
	dir       *branch.Directory
	router    *LedgerRouter
	ledger    *LedgerServiceImpl
	transfers *TransferServiceImpl
	history   *HistoryServiceImpl
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	central := config.DatabaseConfig{Host: "db", Port: 5432, DBName: "bank_central"}
	west := central
	west.DBName = "bank_west"

	dir, err := branch.NewDirectory(central, []config.BranchConfig{
		{Code: "WEST", Name: "West", Database: west},
		{Code: "EAST", Name: "East"},
		{Code: "SOUTH", Name: "South"},
	})
	require.NoError(t, err)

	router, err := NewLedgerRouter(context.Background(), dir, func(_ context.Context, target domain.ConnectionTarget) (ports.Backend, error) {
		return memory.NewBackend(target.Name), nil
	})
	require.NoError(t, err)

	return &ledgerFixture{
		dir:       dir,
		router:    router,
		ledger:    NewLedgerService(router, dir, nil, zerolog.Nop()),
		transfers: NewTransferService(router, nil, nil, zerolog.Nop()),
		history:   NewHistoryService(router, nil),
	}
}

func (f *ledgerFixture) backend(t *testing.T, branch string) ports.Backend {
	t.Helper()
	b, err := f.router.Resolve(branch)
	require.NoError(t, err)
	return b
}

// seed creates an active account directly in the store.
func (f *ledgerFixture) seed(t *testing.T, branch, number, customerID, balance string) {
	t.Helper()
	err := f.backend(t, branch).Store.Create(context.Background(), &domain.Account{
		Number:     number,
		CustomerID: customerID,
		Balance:    dec(balance),
		BranchCode: branch,
		Status:     domain.AccountStatusActive,
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) balance(t *testing.T, branch, number string) decimal.Decimal {
	t.Helper()
	a, err := f.backend(t, branch).Store.GetAccount(context.Background(), number)
	require.NoError(t, err)
	return a.Balance
}

func (f *ledgerFixture) entries(t *testing.T, branch, number string) []domain.Transaction {
	t.Helper()
	txns, err := f.backend(t, branch).Audit.ListByAccount(context.Background(), number)
	require.NoError(t, err)
	return txns
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func eastTeller() domain.Actor {
	return domain.Actor{UserID: "t-east", Username: "teller2", Role: domain.RoleBranch, Branch: "EAST", EmployeeID: "E0002"}
}
