package postgres

import (
	"context"
	"testing"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transactionCols() []string {
	return []string{"id", "branch_code", "account_number", "type_code", "created_at", "amount",
		"employee_id", "destination_account", "status", "error_detail"}
}

func strp(s string) *string { return &s }

func TestAuditLog_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewAuditLog(mock)
	entry := domain.NewTransaction("CN1", "A00000001", domain.TransactionTypeDeposit, dec("10.5"), "", opened)

	mock.ExpectQuery("(?s)INSERT INTO transactions.+RETURNING id").
		WithArgs("CN1", "A00000001", "GT", opened, "10.5", (*string)(nil), (*string)(nil), "PENDING", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(101)))

	require.NoError(t, l.Append(context.Background(), entry))
	assert.Equal(t, int64(101), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_Finalize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewAuditLog(mock)
	entry := domain.NewTransaction("CN1", "A00000001", domain.TransactionTypeWithdrawal, dec("1"), "", opened)
	entry.ID = 5
	require.NoError(t, entry.Fail("insufficient balance"))

	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(int64(5), "FAILED", strp("insufficient balance")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, l.Finalize(context.Background(), entry))

	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(int64(5), "FAILED", strp("insufficient balance")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, l.Finalize(context.Background(), entry), domain.ErrTransactionFinalized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewAuditLog(mock)
	later := opened.Add(time.Hour)

	mock.ExpectQuery("(?s)SELECT .+ FROM transactions.+WHERE account_number = \\$1 OR destination_account = \\$1.+ORDER BY created_at DESC").
		WithArgs("A00000001").
		WillReturnRows(pgxmock.NewRows(transactionCols()).
			AddRow(int64(2), "CN1", "A00000001", "RT", later, "5.00", strp("NV01"), (*string)(nil), "COMPLETED", (*string)(nil)).
			AddRow(int64(1), "CN1", "B00000002", "CT", opened, "7.25", (*string)(nil), strp("A00000001"), "FAILED", strp("account is closed")))

	got, err := l.ListByAccount(context.Background(), "A00000001")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.TransactionTypeWithdrawal, got[0].Type)
	assert.Equal(t, "NV01", got[0].EmployeeID)
	assert.True(t, got[0].Amount.Equal(dec("5")))

	assert.Equal(t, domain.TransactionTypeTransfer, got[1].Type, "legacy transfer code is normalized")
	require.NotNil(t, got[1].DestinationAccount)
	assert.Equal(t, "A00000001", *got[1].DestinationAccount)
	require.NotNil(t, got[1].ErrorDetail)
	assert.Equal(t, domain.TransactionStatusFailed, got[1].Status)
	assert.Empty(t, got[1].EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ListByAccount_UnknownTypeCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM transactions").
		WithArgs("A00000001").
		WillReturnRows(pgxmock.NewRows(transactionCols()).
			AddRow(int64(1), "CN1", "A00000001", "ZZ", opened, "1.00", (*string)(nil), (*string)(nil), "COMPLETED", (*string)(nil)))

	_, err = NewAuditLog(mock).ListByAccount(context.Background(), "A00000001")
	assert.ErrorIs(t, err, domain.ErrUnknownTypeCode)
}

func TestAuditLog_ListByBranch(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name    string
		branch  string
		from    *time.Time
		to      *time.Time
		pattern string
		args    []any
	}{
		{"branch and range", "CN1", &from, &to,
			"WHERE branch_code = \\$1 AND created_at >= \\$2 AND created_at < \\$3 ORDER BY", []any{"CN1", from, to}},
		{"branch only", "CN1", nil, nil,
			"WHERE branch_code = \\$1 ORDER BY", []any{"CN1"}},
		{"all branches upper bound", domain.AllBranches, nil, &to,
			"WHERE created_at < \\$1 ORDER BY", []any{to}},
		{"all branches unbounded", domain.AllBranches, nil, nil,
			"FROM transactions ORDER BY", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			q := mock.ExpectQuery(tt.pattern)
			if tt.args != nil {
				q = q.WithArgs(tt.args...)
			}
			q.WillReturnRows(pgxmock.NewRows(transactionCols()))

			got, err := NewAuditLog(mock).ListByBranch(context.Background(), tt.branch, tt.from, tt.to)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuditLog_DailyTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewAuditLog(mock)
	day := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	start, end := domain.DayBounds(day)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)::text FROM transactions").
		WithArgs("A00000001", []string{"RT"}, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow("150.25"))
	w, err := l.DailyWithdrawalTotal(context.Background(), "A00000001", day)
	require.NoError(t, err)
	assert.True(t, w.Equal(dec("150.25")))

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("A00000001", []string{"CK", "CT"}, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow("0"))
	tr, err := l.DailyTransferTotal(context.Background(), "A00000001", day)
	require.NoError(t, err)
	assert.True(t, tr.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}
