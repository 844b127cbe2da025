package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AuditLog is an in-process append-only audit log.
type AuditLog struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*domain.Transaction
	index   map[int64]*domain.Transaction
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{index: make(map[int64]*domain.Transaction)}
}

// Append stores a copy of txn and assigns its ID.
func (l *AuditLog) Append(_ context.Context, txn *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	txn.ID = l.nextID
	stored := txn.Clone()
	l.entries = append(l.entries, stored)
	l.index[stored.ID] = stored
	return nil
}

// Finalize records the terminal status of a pending entry.
func (l *AuditLog) Finalize(_ context.Context, txn *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finalizeLocked(txn)
}

func (l *AuditLog) finalizeLocked(txn *domain.Transaction) error {
	stored, err := l.pendingLocked(txn.ID)
	if err != nil {
		return err
	}
	stored.Status = txn.Status
	if txn.ErrorDetail != nil {
		detail := *txn.ErrorDetail
		stored.ErrorDetail = &detail
	}
	return nil
}

func (l *AuditLog) pendingLocked(id int64) (*domain.Transaction, error) {
	stored, ok := l.index[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	if stored.IsTerminal() {
		return nil, domain.ErrTransactionFinalized
	}
	return stored, nil
}

// checkPending reports whether id names a pending entry without changing it.
func (l *AuditLog) checkPending(id int64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, err := l.pendingLocked(id)
	return err
}

// ListByAccount returns entries where number is source or destination, newest first.
func (l *AuditLog) ListByAccount(_ context.Context, number string) ([]domain.Transaction, error) {
	return l.filter(func(t *domain.Transaction) bool { return t.Involves(number) }), nil
}

// ListByBranch returns entries of branch with from <= created_at < to, newest first.
func (l *AuditLog) ListByBranch(_ context.Context, branch string, from, to *time.Time) ([]domain.Transaction, error) {
	return l.filter(func(t *domain.Transaction) bool {
		if !domain.IsAllBranches(branch) && t.BranchCode != branch {
			return false
		}
		if from != nil && t.CreatedAt.Before(*from) {
			return false
		}
		if to != nil && !t.CreatedAt.Before(*to) {
			return false
		}
		return true
	}), nil
}

// DailyWithdrawalTotal sums completed withdrawals from number on day.
func (l *AuditLog) DailyWithdrawalTotal(_ context.Context, number string, day time.Time) (decimal.Decimal, error) {
	return l.dailySum(number, day, domain.TransactionTypeWithdrawal), nil
}

// DailyTransferTotal sums completed outgoing transfers from number on day.
func (l *AuditLog) DailyTransferTotal(_ context.Context, number string, day time.Time) (decimal.Decimal, error) {
	return l.dailySum(number, day, domain.TransactionTypeTransfer), nil
}

func (l *AuditLog) dailySum(number string, day time.Time, typ domain.TransactionType) decimal.Decimal {
	start, end := domain.DayBounds(day)

	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, t := range l.entries {
		if t.Account != number || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if canonical, err := domain.ParseTypeCode(string(t.Type)); err != nil || canonical != typ {
			continue
		}
		if t.CreatedAt.Before(start) || !t.CreatedAt.Before(end) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total
}

func (l *AuditLog) filter(keep func(*domain.Transaction) bool) []domain.Transaction {
	l.mu.RLock()
	out := make([]domain.Transaction, 0)
	for _, t := range l.entries {
		if keep(t) {
			c := t.Clone()
			if canonical, err := domain.ParseTypeCode(string(c.Type)); err == nil {
				c.Type = canonical
			}
			out = append(out, *c)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
