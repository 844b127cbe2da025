package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, branch_code, account_number, type_code, created_at, amount::text,
	employee_id, destination_account, status, error_detail`

// AuditLog implements ports.AuditLog on the transactions table.
type AuditLog struct {
	pool Pool
}

// NewAuditLog creates a new AuditLog.
func NewAuditLog(pool Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Append inserts the entry and sets its database-assigned ID.
func (l *AuditLog) Append(ctx context.Context, txn *domain.Transaction) error {
	return l.appendWith(ctx, l.pool, txn)
}

func (l *AuditLog) appendWith(ctx context.Context, q querier, txn *domain.Transaction) error {
	query := `INSERT INTO transactions (branch_code, account_number, type_code, created_at, amount,
		employee_id, destination_account, status, error_detail)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		RETURNING id`

	err := q.QueryRow(ctx, query,
		txn.BranchCode, txn.Account, string(txn.Type), txn.CreatedAt, txn.Amount.String(),
		nullable(txn.EmployeeID), txn.DestinationAccount, string(txn.Status), txn.ErrorDetail,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Finalize writes the terminal status of a pending entry.
func (l *AuditLog) Finalize(ctx context.Context, txn *domain.Transaction) error {
	return l.finalizeWith(ctx, l.pool, txn)
}

func (l *AuditLog) finalizeWith(ctx context.Context, q querier, txn *domain.Transaction) error {
	query := `UPDATE transactions SET status = $2, error_detail = $3 WHERE id = $1 AND status = 'PENDING'`

	tag, err := q.Exec(ctx, query, txn.ID, string(txn.Status), txn.ErrorDetail)
	if err != nil {
		return fmt.Errorf("finalize transaction %d: %w", txn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionFinalized
	}
	return nil
}

// ListByAccount returns entries where number is source or destination, newest first.
func (l *AuditLog) ListByAccount(ctx context.Context, number string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_number = $1 OR destination_account = $1
		ORDER BY created_at DESC, id DESC`
	return l.list(ctx, query, number)
}

// ListByBranch returns entries of branch with from <= created_at < to, newest first.
func (l *AuditLog) ListByBranch(ctx context.Context, branch string, from, to *time.Time) ([]domain.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	if !domain.IsAllBranches(branch) {
		args = append(args, branch)
		conds = append(conds, fmt.Sprintf("branch_code = $%d", len(args)))
	}
	if from != nil {
		args = append(args, *from)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return l.list(ctx, query, args...)
}

// DailyWithdrawalTotal sums completed withdrawals from number on the UTC day of day.
func (l *AuditLog) DailyWithdrawalTotal(ctx context.Context, number string, day time.Time) (decimal.Decimal, error) {
	return l.dailySum(ctx, number, day, []string{string(domain.TransactionTypeWithdrawal)})
}

// DailyTransferTotal sums completed outgoing transfers from number on the UTC day of day.
func (l *AuditLog) DailyTransferTotal(ctx context.Context, number string, day time.Time) (decimal.Decimal, error) {
	return l.dailySum(ctx, number, day, domain.TransferTypeCodes)
}

func (l *AuditLog) dailySum(ctx context.Context, number string, day time.Time, codes []string) (decimal.Decimal, error) {
	start, end := domain.DayBounds(day)
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE account_number = $1 AND type_code = ANY($2) AND status = 'COMPLETED'
		AND created_at >= $3 AND created_at < $4`

	var total string
	if err := l.pool.QueryRow(ctx, query, number, codes, start, end).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("daily total for %s: %w", number, err)
	}
	sum, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse daily total: %w", err)
	}
	return sum, nil
}

func (l *AuditLog) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t        domain.Transaction
		typeCode string
		amount   string
		employee *string
		status   string
	)
	err := row.Scan(&t.ID, &t.BranchCode, &t.Account, &typeCode, &t.CreatedAt, &amount,
		&employee, &t.DestinationAccount, &status, &t.ErrorDetail)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	// stored codes are never rewritten; legacy transfer codes normalize here
	typ, err := domain.ParseTypeCode(strings.TrimSpace(typeCode))
	if err != nil {
		return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Type = typ

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount of transaction %d: %w", t.ID, err)
	}
	if employee != nil {
		t.EmployeeID = *employee
	}
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}
