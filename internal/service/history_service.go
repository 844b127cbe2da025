package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// HistoryServiceImpl implements ports.HistoryService.
type HistoryServiceImpl struct {
	router     *LedgerRouter
	dailyLimit *decimal.Decimal
}

// NewHistoryService creates a new HistoryServiceImpl. dailyLimit is reported
// alongside daily totals and may be nil.
func NewHistoryService(router *LedgerRouter, dailyLimit *decimal.Decimal) *HistoryServiceImpl {
	return &HistoryServiceImpl{router: router, dailyLimit: dailyLimit}
}

// AccountTransactions lists entries where the account is source or destination, newest first.
func (s *HistoryServiceImpl) AccountTransactions(ctx context.Context, actor domain.Actor, branch, number string) ([]domain.Transaction, error) {
	backend, err := s.readableAccount(ctx, actor, branch, number)
	if err != nil {
		return nil, err
	}

	txns, err := backend.Audit.ListByAccount(ctx, number)
	if err != nil {
		return nil, toAppError(err)
	}
	return txns, nil
}

// BranchTransactions lists entries of branch in [from, to). ALL merges every store.
func (s *HistoryServiceImpl) BranchTransactions(ctx context.Context, actor domain.Actor, branch string, from, to *time.Time) ([]domain.Transaction, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return nil, apperror.Validation("from must be before to")
	}
	if err := NewGate(actor).RequireReadBranch(branch); err != nil {
		return nil, err
	}

	backends, err := s.router.Backends(branch)
	if err != nil {
		return nil, err
	}

	results := make([][]domain.Transaction, len(backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		g.Go(func() error {
			txns, err := b.Audit.ListByBranch(gctx, branch, from, to)
			if err != nil {
				return fmt.Errorf("list transactions in %s: %w", b.Name, err)
			}
			results[i] = txns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, toAppError(err)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return mergeNewestFirst(backends, results), nil
}

// mergeNewestFirst merges per-store listings by created_at and id, both
// descending. IDs are only unique within a store, so the store name breaks
// the remaining ties.
func mergeNewestFirst(backends []ports.Backend, results [][]domain.Transaction) []domain.Transaction {
	type entry struct {
		store string
		txn   domain.Transaction
	}
	var merged []entry
	for i, r := range results {
		for _, t := range r {
			merged = append(merged, entry{store: backends[i].Name, txn: t})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		switch {
		case !a.txn.CreatedAt.Equal(b.txn.CreatedAt):
			return a.txn.CreatedAt.After(b.txn.CreatedAt)
		case a.txn.ID != b.txn.ID:
			return a.txn.ID > b.txn.ID
		}
		return a.store < b.store
	})

	out := make([]domain.Transaction, len(merged))
	for i, e := range merged {
		out[i] = e.txn
	}
	return out
}

// DailyTotals sums completed withdrawals and outgoing transfers for the UTC day.
func (s *HistoryServiceImpl) DailyTotals(ctx context.Context, actor domain.Actor, branch, number string, day time.Time) (*domain.DailyTotals, error) {
	backend, err := s.readableAccount(ctx, actor, branch, number)
	if err != nil {
		return nil, err
	}

	var withdrawals, transfers decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		withdrawals, err = backend.Audit.DailyWithdrawalTotal(gctx, number, day)
		return err
	})
	g.Go(func() error {
		var err error
		transfers, err = backend.Audit.DailyTransferTotal(gctx, number, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, toAppError(err)
	}

	start, _ := domain.DayBounds(day)
	return &domain.DailyTotals{
		Account:     number,
		Date:        start.Format(time.DateOnly),
		Withdrawals: withdrawals,
		Transfers:   transfers,
		Limit:       s.dailyLimit,
	}, nil
}

func (s *HistoryServiceImpl) readableAccount(ctx context.Context, actor domain.Actor, branch, number string) (ports.Backend, error) {
	if !domain.ValidAccountNumber(number) {
		return ports.Backend{}, apperror.ErrInvalidAccountNumber()
	}
	if actor.Role != domain.RoleCustomer {
		if err := NewGate(actor).RequireReadBranch(branch); err != nil {
			return ports.Backend{}, err
		}
	}

	backend, err := s.router.Resolve(branch)
	if err != nil {
		return ports.Backend{}, err
	}
	account, err := fetchAccount(ctx, backend.Store, branch, number)
	if err != nil {
		return ports.Backend{}, err
	}
	if err := NewGate(actor).RequireReadAccount(account); err != nil {
		return ports.Backend{}, err
	}
	return backend, nil
}
