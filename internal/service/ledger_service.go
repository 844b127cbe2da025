package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/internal/observability"
	"branch-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	router *LedgerRouter
	dir    ports.BranchDirectory
	events ports.EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl. events may be nil.
func NewLedgerService(
	router *LedgerRouter,
	dir ports.BranchDirectory,
	events ports.EventPublisher,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		router: router,
		dir:    dir,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// ListAccounts returns the accounts of branch. ALL fans out to every store.
func (s *LedgerServiceImpl) ListAccounts(ctx context.Context, actor domain.Actor, branch string) ([]domain.Account, error) {
	if err := NewGate(actor).RequireReadBranch(branch); err != nil {
		return nil, err
	}

	backends, err := s.router.Backends(branch)
	if err != nil {
		return nil, err
	}

	return collectAccounts(ctx, backends, func(ctx context.Context, store ports.LedgerStore) ([]domain.Account, error) {
		return store.ListByBranch(ctx, branch)
	})
}

// ListCustomerAccounts returns every account of customerID the actor may see.
func (s *LedgerServiceImpl) ListCustomerAccounts(ctx context.Context, actor domain.Actor, customerID string) ([]domain.Account, error) {
	if !domain.ValidCustomerID(customerID) {
		return nil, apperror.ErrInvalidCustomerID()
	}
	gate := NewGate(actor)
	if err := gate.RequireReadCustomer(customerID); err != nil {
		return nil, err
	}

	backends, _ := s.router.Backends(domain.AllBranches)
	accounts, err := collectAccounts(ctx, backends, func(ctx context.Context, store ports.LedgerStore) ([]domain.Account, error) {
		return store.ListByCustomer(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}

	if actor.Role != domain.RoleBranch {
		return accounts, nil
	}
	branch, _ := gate.EffectiveBranchFilter()
	visible := accounts[:0]
	for _, a := range accounts {
		if a.BranchCode == branch {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// collectAccounts queries each backend concurrently and merges by account number.
func collectAccounts(
	ctx context.Context,
	backends []ports.Backend,
	query func(ctx context.Context, store ports.LedgerStore) ([]domain.Account, error),
) ([]domain.Account, error) {
	results := make([][]domain.Account, len(backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		g.Go(func() error {
			accounts, err := query(gctx, b.Store)
			if err != nil {
				return fmt.Errorf("list accounts in %s: %w", b.Name, err)
			}
			results[i] = accounts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, toAppError(err)
	}

	out := make([]domain.Account, 0)
	for _, r := range results {
		out = append(out, r...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// GetAccount returns one account of branch.
func (s *LedgerServiceImpl) GetAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error) {
	if !domain.ValidAccountNumber(number) {
		return nil, apperror.ErrInvalidAccountNumber()
	}
	if actor.Role != domain.RoleCustomer {
		if err := NewGate(actor).RequireReadBranch(branch); err != nil {
			return nil, err
		}
	}

	backend, err := s.router.Resolve(branch)
	if err != nil {
		return nil, err
	}
	account, err := fetchAccount(ctx, backend.Store, branch, number)
	if err != nil {
		return nil, err
	}
	if err := NewGate(actor).RequireReadAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// fetchAccount loads number and hides accounts that belong to another branch.
func fetchAccount(ctx context.Context, store ports.LedgerStore, branch, number string) (*domain.Account, error) {
	account, err := store.GetAccount(ctx, number)
	if err != nil {
		return nil, toAppError(err)
	}
	if account.BranchCode != branch {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// OpenAccount creates an active account with an opening balance.
func (s *LedgerServiceImpl) OpenAccount(ctx context.Context, actor domain.Actor, req ports.OpenAccountRequest) (*domain.Account, error) {
	switch {
	case !domain.ValidAccountNumber(req.Number):
		return nil, apperror.ErrInvalidAccountNumber()
	case !domain.ValidCustomerID(req.CustomerID):
		return nil, apperror.ErrInvalidCustomerID()
	case !domain.ValidBranchCode(req.Branch):
		return nil, apperror.ErrInvalidBranchCode()
	case req.OpeningBalance.IsNegative() || !req.OpeningBalance.Equal(req.OpeningBalance.Round(2)):
		return nil, apperror.Validation("opening balance must be zero or positive with at most two decimal places")
	}
	if !s.dir.BranchExists(req.Branch) {
		return nil, apperror.ErrBranchNotFound()
	}
	if err := NewGate(actor).RequireWriteBranch(req.Branch); err != nil {
		return nil, err
	}

	backend, err := s.router.Resolve(req.Branch)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Number:     req.Number,
		CustomerID: req.CustomerID,
		Balance:    req.OpeningBalance,
		BranchCode: req.Branch,
		OpenedAt:   s.now().UTC(),
		Status:     domain.AccountStatusActive,
	}
	if err := backend.Store.Create(ctx, account); err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("account", account.Number).
		Str("branch", account.BranchCode).
		Str("customer_id", account.CustomerID).
		Str("operator", actor.OperatorID()).
		Msg("account opened")

	return account, nil
}

// CloseAccount closes an empty account.
func (s *LedgerServiceImpl) CloseAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error) {
	return s.transition(ctx, actor, branch, number, "closed", ports.LedgerStore.Close)
}

// ReopenAccount reactivates a closed account.
func (s *LedgerServiceImpl) ReopenAccount(ctx context.Context, actor domain.Actor, branch, number string) (*domain.Account, error) {
	return s.transition(ctx, actor, branch, number, "reopened", ports.LedgerStore.Reopen)
}

func (s *LedgerServiceImpl) transition(
	ctx context.Context,
	actor domain.Actor,
	branch, number, verb string,
	apply func(ports.LedgerStore, context.Context, string) error,
) (*domain.Account, error) {
	backend, err := s.writableAccount(ctx, actor, branch, number)
	if err != nil {
		return nil, err
	}

	if err := apply(backend.Store, ctx, number); err != nil {
		return nil, toAppError(err)
	}

	account, err := backend.Store.GetAccount(ctx, number)
	if err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("account", number).
		Str("branch", branch).
		Str("operator", actor.OperatorID()).
		Msg("account " + verb)

	return account, nil
}

// DeleteAccount removes an account whose balance is zero.
func (s *LedgerServiceImpl) DeleteAccount(ctx context.Context, actor domain.Actor, branch, number string) error {
	backend, err := s.writableAccount(ctx, actor, branch, number)
	if err != nil {
		return err
	}

	if err := backend.Store.Delete(ctx, number); err != nil {
		return toAppError(err)
	}

	s.log.Info().
		Str("account", number).
		Str("branch", branch).
		Str("operator", actor.OperatorID()).
		Msg("account deleted")
	return nil
}

// writableAccount runs the write gate before any store access and confirms
// number belongs to branch.
func (s *LedgerServiceImpl) writableAccount(ctx context.Context, actor domain.Actor, branch, number string) (ports.Backend, error) {
	if !domain.ValidAccountNumber(number) {
		return ports.Backend{}, apperror.ErrInvalidAccountNumber()
	}
	if err := NewGate(actor).RequireWriteBranch(branch); err != nil {
		return ports.Backend{}, err
	}

	backend, err := s.router.Resolve(branch)
	if err != nil {
		return ports.Backend{}, err
	}
	if _, err := fetchAccount(ctx, backend.Store, branch, number); err != nil {
		return ports.Backend{}, err
	}
	return backend, nil
}

// Deposit credits an account.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, actor domain.Actor, req ports.MoneyRequest) (*domain.Transaction, error) {
	return s.move(ctx, actor, req, domain.TransactionTypeDeposit)
}

// Withdraw debits an account.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, actor domain.Actor, req ports.MoneyRequest) (*domain.Transaction, error) {
	return s.move(ctx, actor, req, domain.TransactionTypeWithdrawal)
}

// move opens a Pending entry, pre-checks the account, applies the balance
// change in an atomic section and finalizes the entry either way.
func (s *LedgerServiceImpl) move(ctx context.Context, actor domain.Actor, req ports.MoneyRequest, typ domain.TransactionType) (*domain.Transaction, error) {
	start := s.now()
	op := typ.Label()

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.ValidAccountNumber(req.Account) {
		return nil, apperror.ErrInvalidAccountNumber()
	}
	gate := NewGate(actor)
	if err := gate.RequireInitiate(req.Branch); err != nil {
		return nil, err
	}

	backend, err := s.router.Resolve(req.Branch)
	if err != nil {
		return nil, err
	}
	account, err := fetchAccount(ctx, backend.Store, req.Branch, req.Account)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireTransact(account); err != nil {
		return nil, err
	}

	txn := domain.NewTransaction(req.Branch, req.Account, typ, req.Amount, actor.OperatorID(), start)
	if err := backend.Audit.Append(ctx, txn); err != nil {
		return nil, toAppError(fmt.Errorf("open %s entry: %w", op, err))
	}

	// fast path: a descriptive error without entering the atomic section
	var precheck error
	if typ == domain.TransactionTypeWithdrawal {
		precheck = account.CanDebit(req.Amount)
	} else {
		precheck = account.CanCredit()
	}
	if precheck != nil {
		return nil, s.fail(ctx, backend, txn, toAppError(precheck), start)
	}

	completed := txn.Clone()
	_ = completed.Complete()

	err = backend.Store.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Lock(ctx, req.Account); err != nil {
			return err
		}
		if typ == domain.TransactionTypeWithdrawal {
			if err := tx.Debit(ctx, req.Account, req.Amount); err != nil {
				return err
			}
		} else {
			if err := tx.Credit(ctx, req.Account, req.Amount); err != nil {
				return err
			}
		}
		return tx.Finalize(ctx, completed)
	})
	if err != nil {
		return nil, s.fail(ctx, backend, txn, toAppError(err), start)
	}

	s.log.Info().
		Int64("tx_id", completed.ID).
		Str("type", op).
		Str("account", completed.Account).
		Str("amount", completed.Amount.String()).
		Str("status", string(completed.Status)).
		Str("operator", completed.EmployeeID).
		Msg("ledger operation completed")

	observability.ObserveLedgerOperation(op, string(completed.Status), s.now().Sub(start))
	publishEvent(ctx, s.events, completed, s.log)
	return completed, nil
}

// fail finalizes a pending entry as Failed and returns cause. The write
// survives cancellation of ctx.
func (s *LedgerServiceImpl) fail(ctx context.Context, backend ports.Backend, txn *domain.Transaction, cause error, start time.Time) error {
	_ = txn.Fail(failureReason(cause))

	if err := backend.Audit.Finalize(context.WithoutCancel(ctx), txn); err != nil {
		s.log.Error().Err(err).Int64("tx_id", txn.ID).Msg("failed to record failed ledger operation")
	}

	s.log.Warn().
		Err(cause).
		Int64("tx_id", txn.ID).
		Str("type", txn.Type.Label()).
		Str("account", txn.Account).
		Str("amount", txn.Amount.String()).
		Str("status", string(txn.Status)).
		Msg("ledger operation failed")

	observability.ObserveLedgerOperation(txn.Type.Label(), string(txn.Status), s.now().Sub(start))
	publishEvent(ctx, s.events, txn, s.log)
	return cause
}

// publishEvent ships a finalized entry. Failures are logged only.
func publishEvent(ctx context.Context, events ports.EventPublisher, txn *domain.Transaction, log zerolog.Logger) {
	if events == nil {
		return
	}
	if err := events.Publish(context.WithoutCancel(ctx), domain.NewLedgerEvent(txn)); err != nil {
		observability.IncrementEventPublish("error")
		log.Warn().Err(err).Int64("tx_id", txn.ID).Msg("ledger event publish failed")
		return
	}
	observability.IncrementEventPublish("ok")
}
