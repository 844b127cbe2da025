package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, s *LedgerStore, number, customer, branch, balance string) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &domain.Account{
		Number:     number,
		CustomerID: customer,
		BranchCode: branch,
		Balance:    dec(balance),
		OpenedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:     domain.AccountStatusActive,
	}))
}

func TestLedgerStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "100")

	a, err := s.GetAccount(ctx, "A00000001")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("100")))

	again, err := s.GetAccount(ctx, "A00000001")
	require.NoError(t, err)
	assert.Equal(t, a, again, "repeated reads return identical data")

	a.Balance = dec("999")
	fresh, _ := s.GetAccount(ctx, "A00000001")
	assert.True(t, fresh.Balance.Equal(dec("100")), "callers get copies")

	err = s.Create(ctx, &domain.Account{Number: "A00000001"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)

	_, err = s.GetAccount(ctx, "NOPE00000")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLedgerStore_Lists(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "B00000002", "0000000001", "CN2", "1")
	seed(t, s, "A00000001", "0000000001", "CN1", "1")
	seed(t, s, "C00000003", "0000000002", "CN1", "1")

	cn1, err := s.ListByBranch(ctx, "CN1")
	require.NoError(t, err)
	require.Len(t, cn1, 2)
	assert.Equal(t, "A00000001", cn1[0].Number)
	assert.Equal(t, "C00000003", cn1[1].Number)

	all, err := s.ListByBranch(ctx, domain.AllBranches)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListByCustomer(ctx, "0000000001")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "A00000001", mine[0].Number)

	none, err := s.ListByBranch(ctx, "CN9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLedgerStore_CloseReopenDelete(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "10")

	assert.ErrorIs(t, s.Close(ctx, "A00000001"), domain.ErrNonZeroBalance)
	assert.ErrorIs(t, s.Delete(ctx, "A00000001"), domain.ErrNonZeroBalance)
	a, _ := s.GetAccount(ctx, "A00000001")
	assert.Equal(t, domain.AccountStatusActive, a.Status, "failed close leaves account unchanged")

	require.NoError(t, s.UpdateBalanceAndStatus(ctx, "A00000001", decimal.Zero, domain.AccountStatusActive))
	require.NoError(t, s.Close(ctx, "A00000001"))
	assert.ErrorIs(t, s.Close(ctx, "A00000001"), domain.ErrAccountClosed)
	require.NoError(t, s.Reopen(ctx, "A00000001"))
	assert.ErrorIs(t, s.Reopen(ctx, "A00000001"), domain.ErrNotClosed)

	require.NoError(t, s.Delete(ctx, "A00000001"))
	assert.ErrorIs(t, s.Delete(ctx, "A00000001"), domain.ErrAccountNotFound)
	assert.ErrorIs(t, s.Close(ctx, "A00000001"), domain.ErrAccountNotFound)
	assert.ErrorIs(t, s.UpdateBalanceAndStatus(ctx, "A00000001", decimal.Zero, domain.AccountStatusActive), domain.ErrAccountNotFound)
}

func TestLedgerStore_UpdateBalanceAndStatus_RejectsNegative(t *testing.T) {
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "10")

	err := s.UpdateBalanceAndStatus(context.Background(), "A00000001", dec("-1"), domain.AccountStatusActive)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestLedgerStore_UpdateBalanceAndStatus_KeepsClosedAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "0")
	seed(t, s, "B00000002", "0000000001", "CN1", "25")
	require.NoError(t, s.Close(ctx, "A00000001"))

	err := s.UpdateBalanceAndStatus(ctx, "A00000001", dec("42.10"), domain.AccountStatusClosed)
	assert.ErrorIs(t, err, domain.ErrAccountClosed)
	err = s.UpdateBalanceAndStatus(ctx, "B00000002", dec("25"), domain.AccountStatusClosed)
	assert.ErrorIs(t, err, domain.ErrNonZeroBalance)

	a, err := s.GetAccount(ctx, "A00000001")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, a.Status)
	assert.True(t, a.Balance.IsZero())

	b, err := s.GetAccount(ctx, "B00000002")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, b.Status)
	assert.True(t, b.Balance.Equal(dec("25")))

	require.NoError(t, s.UpdateBalanceAndStatus(ctx, "A00000001", dec("42.10"), domain.AccountStatusActive))
	a, _ = s.GetAccount(ctx, "A00000001")
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.True(t, a.Balance.Equal(dec("42.10")))
}

func TestLedgerStore_Atomic_CommitsAndWritesAudit(t *testing.T) {
	ctx := context.Background()
	audit := NewAuditLog()
	s := NewLedgerStore(audit)
	seed(t, s, "A00000001", "0000000001", "CN1", "1000000")
	seed(t, s, "B00000002", "0000000002", "CN1", "200000")

	entry := domain.NewTransfer("CN1", "A00000001", "B00000002", dec("500000"), "NV01", time.Now())
	require.NoError(t, entry.Complete())

	err := s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Lock(ctx, "A00000001", "B00000002"); err != nil {
			return err
		}
		if err := tx.Debit(ctx, "A00000001", dec("500000")); err != nil {
			return err
		}
		if err := tx.Credit(ctx, "B00000002", dec("500000")); err != nil {
			return err
		}
		return tx.Append(ctx, entry)
	})
	require.NoError(t, err)

	a, _ := s.GetAccount(ctx, "A00000001")
	b, _ := s.GetAccount(ctx, "B00000002")
	assert.True(t, a.Balance.Equal(dec("500000")))
	assert.True(t, b.Balance.Equal(dec("700000")))

	assert.NotZero(t, entry.ID)
	hist, _ := audit.ListByAccount(ctx, "B00000002")
	require.Len(t, hist, 1)
	assert.Equal(t, domain.TransactionStatusCompleted, hist[0].Status)
}

func TestLedgerStore_Atomic_RollsBackOnCreditFailure(t *testing.T) {
	ctx := context.Background()
	audit := NewAuditLog()
	s := NewLedgerStore(audit)
	seed(t, s, "A00000001", "0000000001", "CN1", "100")
	seed(t, s, "B00000002", "0000000002", "CN1", "0")
	require.NoError(t, s.Close(ctx, "B00000002"))

	err := s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Debit(ctx, "A00000001", dec("60")); err != nil {
			return err
		}
		if err := tx.Credit(ctx, "B00000002", dec("60")); err != nil {
			return err
		}
		return tx.Append(ctx, domain.NewTransfer("CN1", "A00000001", "B00000002", dec("60"), "", time.Now()))
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	a, _ := s.GetAccount(ctx, "A00000001")
	assert.True(t, a.Balance.Equal(dec("100")), "debit must not survive")
	hist, _ := audit.ListByAccount(ctx, "A00000001")
	assert.Empty(t, hist, "queued audit writes are dropped on failure")
}

func TestLedgerStore_Atomic_DebitRechecksBalance(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "100")

	err := s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		require.NoError(t, tx.Debit(ctx, "A00000001", dec("70")))
		return tx.Debit(ctx, "A00000001", dec("70"))
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	err = s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Lock(ctx, "A00000001", "MISSING00")
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLedgerStore_Atomic_FinalizeInsideUnit(t *testing.T) {
	ctx := context.Background()
	audit := NewAuditLog()
	s := NewLedgerStore(audit)
	seed(t, s, "A00000001", "0000000001", "CN1", "5")

	entry := domain.NewTransaction("CN1", "A00000001", domain.TransactionTypeDeposit, dec("5"), "NV01", time.Now())
	require.NoError(t, audit.Append(ctx, entry))

	done := entry.Clone()
	require.NoError(t, done.Complete())
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Credit(ctx, "A00000001", dec("5")); err != nil {
			return err
		}
		return tx.Finalize(ctx, done)
	}))

	hist, _ := audit.ListByAccount(ctx, "A00000001")
	require.Len(t, hist, 1)
	assert.Equal(t, domain.TransactionStatusCompleted, hist[0].Status)

	err := s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Finalize(ctx, done)
	})
	assert.ErrorIs(t, err, domain.ErrTransactionFinalized)
}

func TestLedgerStore_LockHonoursCancellation(t *testing.T) {
	s := NewLedgerStore(NewAuditLog())
	seed(t, s, "A00000001", "0000000001", "CN1", "5")

	held := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Atomic(context.Background(), func(ctx context.Context, tx ports.LedgerTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Debit(ctx, "A00000001", dec("5"))
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	wg.Wait()

	a, err := s.GetAccount(context.Background(), "A00000001")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("5")), "cancelled call leaves the ledger unchanged")
}
