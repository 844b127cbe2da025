package service

import (
	"context"
	"encoding/json"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/internal/observability"
	"branch-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL = 24 * time.Hour
	inflightTTL    = 30 * time.Second
)

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	router     *LedgerRouter
	idempCache ports.IdempotencyCache
	events     ports.EventPublisher
	log        zerolog.Logger
	now        func() time.Time
}

// NewTransferService creates a new TransferServiceImpl. idempCache and events may be nil.
func NewTransferService(
	router *LedgerRouter,
	idempCache ports.IdempotencyCache,
	events ports.EventPublisher,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		router:     router,
		idempCache: idempCache,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// Transfer moves amount from one account to another.
//
// Preconditions are checked twice: once before the atomic section for a
// descriptive error, and again inside it, where a failed debit or credit
// means the accounts changed in between. Either both balances change and
// a Completed entry is written, or neither changes and a Failed entry
// records why. Input errors are rejected without an entry.
func (s *TransferServiceImpl) Transfer(ctx context.Context, actor domain.Actor, req ports.TransferRequest) (*domain.Transaction, error) {
	start := s.now()
	if req.ToBranch == "" {
		req.ToBranch = req.Branch
	}

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.From == req.To {
		return nil, apperror.ErrSelfTransfer()
	}
	if !domain.ValidAccountNumber(req.From) || !domain.ValidAccountNumber(req.To) {
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
	if _, err := s.router.Resolve(req.ToBranch); err != nil {
		return nil, err
	}
	if !s.router.SameStore(req.Branch, req.ToBranch) {
		return nil, apperror.ErrCrossStoreTransfer()
	}

	idempKey := ""
	if req.IdempotencyKey != "" && s.idempCache != nil {
		idempKey = domain.TransferIdempotencyKey(actor.UserID, req.IdempotencyKey)
		if cached := s.replay(ctx, idempKey); cached != nil {
			return cached, nil
		}
		release, err := s.reserve(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	from, err := fetchAccount(ctx, backend.Store, req.Branch, req.From)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireTransact(from); err != nil {
		return nil, err
	}
	to, err := fetchAccount(ctx, backend.Store, req.ToBranch, req.To)
	if err != nil {
		return nil, err
	}

	txn := domain.NewTransfer(req.Branch, req.From, req.To, req.Amount, actor.OperatorID(), start)

	// fast path, never trusted for correctness
	if err := precheckTransfer(from, to, req.Amount); err != nil {
		return nil, s.fail(ctx, backend, txn, toAppError(err), start)
	}

	completed := txn.Clone()
	_ = completed.Complete()

	err = backend.Store.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Lock(ctx, req.From, req.To); err != nil {
			return err
		}
		if err := tx.Debit(ctx, req.From, req.Amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, req.To, req.Amount); err != nil {
			return err
		}
		return tx.Append(ctx, completed)
	})
	if err != nil {
		return nil, s.fail(ctx, backend, txn, toAppError(err), start)
	}

	s.log.Info().
		Int64("tx_id", completed.ID).
		Str("account", completed.Account).
		Str("destination", req.To).
		Str("amount", completed.Amount.String()).
		Str("status", string(completed.Status)).
		Str("operator", completed.EmployeeID).
		Msg("transfer completed")

	observability.ObserveLedgerOperation(completed.Type.Label(), string(completed.Status), s.now().Sub(start))
	publishEvent(ctx, s.events, completed, s.log)

	if idempKey != "" {
		s.remember(ctx, idempKey, completed)
	}
	return completed, nil
}

func precheckTransfer(from, to *domain.Account, amount decimal.Decimal) error {
	if !from.IsActive() || !to.IsActive() {
		return domain.ErrAccountClosed
	}
	return from.CanDebit(amount)
}

// fail records a Failed transfer entry and returns cause. The write survives
// cancellation of ctx.
func (s *TransferServiceImpl) fail(ctx context.Context, backend ports.Backend, txn *domain.Transaction, cause error, start time.Time) error {
	_ = txn.Fail(failureReason(cause))

	if err := backend.Audit.Append(context.WithoutCancel(ctx), txn); err != nil {
		s.log.Error().Err(err).Str("account", txn.Account).Msg("failed to record failed transfer")
	}

	s.log.Warn().
		Err(cause).
		Int64("tx_id", txn.ID).
		Str("account", txn.Account).
		Str("destination", *txn.DestinationAccount).
		Str("amount", txn.Amount.String()).
		Str("status", string(txn.Status)).
		Msg("transfer failed")

	observability.ObserveLedgerOperation(txn.Type.Label(), string(txn.Status), s.now().Sub(start))
	publishEvent(ctx, s.events, txn, s.log)
	return cause
}

// replay returns the cached result of an earlier transfer with the same key.
func (s *TransferServiceImpl) replay(ctx context.Context, key string) *domain.Transaction {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		observability.IncrementIdempotencyEvent("lookup_error")
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, processing without replay")
		return nil
	}
	if cached == nil {
		return nil
	}

	var txn domain.Transaction
	if err := json.Unmarshal(cached, &txn); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	observability.IncrementIdempotencyEvent("replay")
	return &txn
}

// reserve marks key as in flight. A cache outage degrades to no protection.
func (s *TransferServiceImpl) reserve(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	ok, err := s.idempCache.Reserve(ctx, key, inflightTTL)
	if err != nil {
		observability.IncrementIdempotencyEvent("reserve_error")
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency reserve failed")
		return noop, nil
	}
	if !ok {
		observability.IncrementIdempotencyEvent("in_progress_conflict")
		return noop, apperror.ErrRequestInFlight()
	}
	observability.IncrementIdempotencyEvent("reserved")

	return func() {
		if err := s.idempCache.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency release failed")
		}
	}, nil
}

func (s *TransferServiceImpl) remember(ctx context.Context, key string, txn *domain.Transaction) {
	data, err := json.Marshal(txn)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal transfer for idempotency cache")
		return
	}
	if err := s.idempCache.Set(context.WithoutCancel(ctx), key, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Int64("tx_id", txn.ID).Msg("redis idempotency set failed")
	}
}
