package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `account_number, customer_id, balance::text, branch_code, opened_at, status`

// LedgerStore implements ports.LedgerStore on one branch database.
type LedgerStore struct {
	pool  Pool
	txr   *Transactor
	audit *AuditLog
}

// NewLedgerStore creates a LedgerStore whose atomic sections share transactions with audit.
func NewLedgerStore(pool Pool, txr *Transactor, audit *AuditLog) *LedgerStore {
	return &LedgerStore{pool: pool, txr: txr, audit: audit}
}

// NewBackend wires the ledger and audit log of one database.
func NewBackend(name string, pool Pool, txr *Transactor) ports.Backend {
	audit := NewAuditLog(pool)
	return ports.Backend{Name: name, Store: NewLedgerStore(pool, txr, audit), Audit: audit}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a       domain.Account
		balance string
		status  string
	)
	if err := row.Scan(&a.Number, &a.CustomerID, &balance, &a.BranchCode, &a.OpenedAt, &status); err != nil {
		return nil, err
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance of %s: %w", a.Number, err)
	}
	a.Balance = bal
	a.Status = domain.AccountStatus(status)
	return &a, nil
}

// GetAccount fetches an account without locking.
func (s *LedgerStore) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	return getAccount(ctx, s.pool, number, false)
}

func getAccount(ctx context.Context, q querier, number string, forUpdate bool) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAccount(q.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", number, translate(err))
	}
	return a, nil
}

// ListByBranch lists accounts of branch, or all accounts for domain.AllBranches.
func (s *LedgerStore) ListByBranch(ctx context.Context, branch string) ([]domain.Account, error) {
	if domain.IsAllBranches(branch) {
		return s.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY account_number`)
	}
	return s.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE branch_code = $1 ORDER BY account_number`, branch)
}

// ListByCustomer lists accounts owned by customerID.
func (s *LedgerStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	return s.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1 ORDER BY account_number`, customerID)
}

func (s *LedgerStore) list(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// Create inserts a new account.
func (s *LedgerStore) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (account_number, customer_id, balance, branch_code, opened_at, status)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (account_number) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		a.Number, a.CustomerID, a.Balance.String(), a.BranchCode, a.OpenedAt, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateAccount
	}
	return nil
}

// UpdateBalanceAndStatus locks the row and overwrites balance and status.
// The new state is checked against the stored one, so a closed account stays
// at zero.
func (s *LedgerStore) UpdateBalanceAndStatus(ctx context.Context, number string, balance decimal.Decimal, status domain.AccountStatus) error {
	if balance.IsNegative() {
		return domain.ErrInsufficientBalance
	}

	return s.txr.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := getAccount(ctx, tx, number, true)
		if err != nil {
			return err
		}
		if err := a.SetBalanceAndStatus(balance, status); err != nil {
			return err
		}

		query := `UPDATE accounts SET balance = $2::numeric, status = $3 WHERE account_number = $1`
		if _, err := tx.Exec(ctx, query, number, a.Balance.String(), string(a.Status)); err != nil {
			return fmt.Errorf("update account %s: %w", number, translate(err))
		}
		return nil
	})
}

// Close locks the row, re-checks the balance and marks the account closed.
func (s *LedgerStore) Close(ctx context.Context, number string) error {
	return s.transition(ctx, number, (*domain.Account).Close)
}

// Reopen locks the row and marks a closed account active.
func (s *LedgerStore) Reopen(ctx context.Context, number string) error {
	return s.transition(ctx, number, (*domain.Account).Reopen)
}

func (s *LedgerStore) transition(ctx context.Context, number string, fn func(*domain.Account) error) error {
	return s.txr.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := getAccount(ctx, tx, number, true)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET status = $2 WHERE account_number = $1`, number, string(a.Status)); err != nil {
			return fmt.Errorf("update account status: %w", err)
		}
		return nil
	})
}

// Delete locks the row, re-checks the balance and removes the account.
func (s *LedgerStore) Delete(ctx context.Context, number string) error {
	return s.txr.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := getAccount(ctx, tx, number, true)
		if err != nil {
			return err
		}
		if err := a.CanDelete(); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE account_number = $1`, number); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

// Atomic runs fn in one database transaction.
func (s *LedgerStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	return s.txr.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx, audit: s.audit})
	})
}

type ledgerTx struct {
	tx    pgx.Tx
	audit *AuditLog
}

var _ ports.LedgerTx = (*ledgerTx)(nil)

// Lock takes row locks in account-number order so concurrent transfers
// between the same pair cannot deadlock.
func (t *ledgerTx) Lock(ctx context.Context, numbers ...string) error {
	unique := make([]string, 0, len(numbers))
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			unique = append(unique, n)
		}
	}
	sort.Strings(unique)

	rows, err := t.tx.Query(ctx,
		`SELECT account_number FROM accounts WHERE account_number = ANY($1) ORDER BY account_number FOR UPDATE`,
		unique)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	if locked != len(unique) {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *ledgerTx) Debit(ctx context.Context, number string, amount decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance - $2::numeric
		WHERE account_number = $1 AND status = 'ACTIVE' AND balance >= $2::numeric`
	return t.apply(ctx, query, number, amount)
}

func (t *ledgerTx) Credit(ctx context.Context, number string, amount decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $2::numeric
		WHERE account_number = $1 AND status = 'ACTIVE'`
	return t.apply(ctx, query, number, amount)
}

func (t *ledgerTx) apply(ctx context.Context, query, number string, amount decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, query, number, amount.String())
	if err != nil {
		return fmt.Errorf("update balance of %s: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (t *ledgerTx) Append(ctx context.Context, txn *domain.Transaction) error {
	return t.audit.appendWith(ctx, t.tx, txn)
}

func (t *ledgerTx) Finalize(ctx context.Context, txn *domain.Transaction) error {
	return t.audit.finalizeWith(ctx, t.tx, txn)
}
