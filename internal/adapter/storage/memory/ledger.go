package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// LedgerStore is an in-process account store. All reads and mutations share
// one mutual-exclusion domain, acquired with context cancellation.
type LedgerStore struct {
	sem      chan struct{}
	accounts map[string]*domain.Account
	audit    *AuditLog
}

// NewLedgerStore creates an empty store whose atomic sections write to audit.
func NewLedgerStore(audit *AuditLog) *LedgerStore {
	return &LedgerStore{
		sem:      make(chan struct{}, 1),
		accounts: make(map[string]*domain.Account),
		audit:    audit,
	}
}

// NewBackend pairs a fresh store and audit log.
func NewBackend(name string) ports.Backend {
	audit := NewAuditLog()
	return ports.Backend{Name: name, Store: NewLedgerStore(audit), Audit: audit}
}

func (s *LedgerStore) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire ledger lock: %w", ctx.Err())
	}
}

func (s *LedgerStore) unlock() { <-s.sem }

// GetAccount returns a copy of the account.
func (s *LedgerStore) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	a, ok := s.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

// ListByBranch returns accounts of branch ordered by number.
func (s *LedgerStore) ListByBranch(ctx context.Context, branch string) ([]domain.Account, error) {
	return s.list(ctx, func(a *domain.Account) bool {
		return domain.IsAllBranches(branch) || a.BranchCode == branch
	})
}

// ListByCustomer returns accounts owned by customerID ordered by number.
func (s *LedgerStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	return s.list(ctx, func(a *domain.Account) bool { return a.CustomerID == customerID })
}

func (s *LedgerStore) list(ctx context.Context, keep func(*domain.Account) bool) ([]domain.Account, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0)
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, *a)
		}
	}
	s.unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Create adds a new account.
func (s *LedgerStore) Create(ctx context.Context, account *domain.Account) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	if _, exists := s.accounts[account.Number]; exists {
		return domain.ErrDuplicateAccount
	}
	c := *account
	s.accounts[account.Number] = &c
	return nil
}

// UpdateBalanceAndStatus overwrites balance and status under the store lock.
// A closed account stays at zero.
func (s *LedgerStore) UpdateBalanceAndStatus(ctx context.Context, number string, balance decimal.Decimal, status domain.AccountStatus) error {
	return s.mutate(ctx, number, func(a *domain.Account) error {
		return a.SetBalanceAndStatus(balance, status)
	})
}

// Close moves the account to Closed if its balance is zero.
func (s *LedgerStore) Close(ctx context.Context, number string) error {
	return s.mutate(ctx, number, (*domain.Account).Close)
}

// Reopen moves a closed account back to Active.
func (s *LedgerStore) Reopen(ctx context.Context, number string) error {
	return s.mutate(ctx, number, (*domain.Account).Reopen)
}

// Delete removes an account whose balance is zero.
func (s *LedgerStore) Delete(ctx context.Context, number string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	a, ok := s.accounts[number]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if err := a.CanDelete(); err != nil {
		return err
	}
	delete(s.accounts, number)
	return nil
}

// mutate applies fn to a copy and stores it only if fn succeeds.
func (s *LedgerStore) mutate(ctx context.Context, number string, fn func(*domain.Account) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	a, ok := s.accounts[number]
	if !ok {
		return domain.ErrAccountNotFound
	}
	c := *a
	if err := fn(&c); err != nil {
		return err
	}
	s.accounts[number] = &c
	return nil
}

// Atomic runs fn holding the store lock. Balance changes are staged and
// applied only when fn succeeds. Audit writes queued by fn are applied
// after the lock is released.
func (s *LedgerStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}

	tx := &ledgerTx{store: s, staged: make(map[string]*domain.Account)}
	err := fn(ctx, tx)
	if err == nil {
		for number, a := range tx.staged {
			s.accounts[number] = a
		}
	}
	s.unlock()

	if err != nil {
		return err
	}
	return tx.flush(ctx)
}

type auditOp struct {
	finalize bool
	txn      *domain.Transaction
}

type ledgerTx struct {
	store  *LedgerStore
	staged map[string]*domain.Account
	audit  []auditOp
}

var _ ports.LedgerTx = (*ledgerTx)(nil)

func (t *ledgerTx) account(number string) (*domain.Account, error) {
	if a, ok := t.staged[number]; ok {
		return a, nil
	}
	a, ok := t.store.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	c := *a
	t.staged[number] = &c
	return &c, nil
}

// Lock checks the accounts exist; the store lock already covers them.
func (t *ledgerTx) Lock(_ context.Context, numbers ...string) error {
	for _, n := range numbers {
		if _, ok := t.store.accounts[n]; !ok {
			return domain.ErrAccountNotFound
		}
	}
	return nil
}

func (t *ledgerTx) Debit(_ context.Context, number string, amount decimal.Decimal) error {
	a, err := t.account(number)
	if err != nil {
		return domain.ErrConcurrentModification
	}
	if err := a.Debit(amount); err != nil {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (t *ledgerTx) Credit(_ context.Context, number string, amount decimal.Decimal) error {
	a, err := t.account(number)
	if err != nil {
		return domain.ErrConcurrentModification
	}
	if err := a.Credit(amount); err != nil {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (t *ledgerTx) Append(_ context.Context, txn *domain.Transaction) error {
	t.audit = append(t.audit, auditOp{txn: txn})
	return nil
}

func (t *ledgerTx) Finalize(_ context.Context, txn *domain.Transaction) error {
	if err := t.store.audit.checkPending(txn.ID); err != nil {
		return err
	}
	t.audit = append(t.audit, auditOp{finalize: true, txn: txn})
	return nil
}

func (t *ledgerTx) flush(ctx context.Context) error {
	var errs []error
	for _, op := range t.audit {
		var err error
		if op.finalize {
			err = t.store.audit.Finalize(ctx, op.txn)
		} else {
			err = t.store.audit.Append(ctx, op.txn)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("write audit after commit: %w", err)
	}
	return nil
}
