package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccount_CanDebit(t *testing.T) {
	tests := []struct {
		name    string
		status  AccountStatus
		balance string
		amount  string
		wantErr error
	}{
		{"enough", AccountStatusActive, "100", "40", nil},
		{"exact", AccountStatusActive, "100", "100", nil},
		{"short", AccountStatusActive, "100", "100.01", ErrInsufficientBalance},
		{"closed", AccountStatusClosed, "0", "1", ErrAccountClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Status: tt.status, Balance: dec(tt.balance)}
			assert.ErrorIs(t, a.CanDebit(dec(tt.amount)), tt.wantErr)
		})
	}
}

func TestAccount_DebitCredit(t *testing.T) {
	a := &Account{Status: AccountStatusActive, Balance: dec("1000000")}

	require.NoError(t, a.Debit(dec("1000000")))
	assert.True(t, a.Balance.IsZero())

	assert.ErrorIs(t, a.Debit(dec("1")), ErrInsufficientBalance)
	assert.True(t, a.Balance.IsZero(), "failed debit leaves balance unchanged")

	require.NoError(t, a.Credit(dec("250.50")))
	assert.True(t, a.Balance.Equal(dec("250.50")))

	a.Status = AccountStatusClosed
	assert.ErrorIs(t, a.Credit(dec("1")), ErrAccountClosed)
	assert.True(t, a.Balance.Equal(dec("250.50")))
}

func TestAccount_CloseReopen(t *testing.T) {
	a := &Account{Status: AccountStatusActive, Balance: dec("5")}

	assert.ErrorIs(t, a.Close(), ErrNonZeroBalance)
	assert.Equal(t, AccountStatusActive, a.Status)

	a.Balance = decimal.Zero
	require.NoError(t, a.Close())
	assert.Equal(t, AccountStatusClosed, a.Status)

	assert.ErrorIs(t, a.Close(), ErrAccountClosed, "double close")

	require.NoError(t, a.Reopen())
	assert.Equal(t, AccountStatusActive, a.Status)
	assert.ErrorIs(t, a.Reopen(), ErrNotClosed)
}

func TestAccount_SetBalanceAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		from       AccountStatus
		fromAmount string
		balance    string
		status     AccountStatus
		wantErr    error
	}{
		{"active balance change", AccountStatusActive, "10", "42.10", AccountStatusActive, nil},
		{"close when empty", AccountStatusActive, "10", "0", AccountStatusClosed, nil},
		{"reopen with balance", AccountStatusClosed, "0", "5", AccountStatusActive, nil},
		{"negative", AccountStatusActive, "10", "-0.01", AccountStatusActive, ErrInsufficientBalance},
		{"close with money left", AccountStatusActive, "10", "10", AccountStatusClosed, ErrNonZeroBalance},
		{"closed stays frozen", AccountStatusClosed, "0", "42.10", AccountStatusClosed, ErrAccountClosed},
		{"unknown status", AccountStatusActive, "10", "10", AccountStatus("FROZEN"), ErrUnknownAccountStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Status: tt.from, Balance: dec(tt.fromAmount)}
			err := a.SetBalanceAndStatus(dec(tt.balance), tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, a.Status, "rejected change leaves status")
				assert.True(t, a.Balance.Equal(dec(tt.fromAmount)), "rejected change leaves balance")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, a.Status)
			assert.True(t, a.Balance.Equal(dec(tt.balance)))
		})
	}
}

func TestAccount_CanDelete(t *testing.T) {
	assert.ErrorIs(t, (&Account{Balance: dec("0.01")}).CanDelete(), ErrNonZeroBalance)
	assert.NoError(t, (&Account{Balance: decimal.Zero}).CanDelete())
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(dec("0.01")))
	assert.NoError(t, ValidateAmount(dec("1.500")))
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(dec("-5")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(dec("0.001")), ErrInvalidAmount)
}

func TestParseTypeCode(t *testing.T) {
	tests := []struct {
		code string
		want TransactionType
	}{
		{"GT", TransactionTypeDeposit},
		{"RT", TransactionTypeWithdrawal},
		{"CK", TransactionTypeTransfer},
		{"CT", TransactionTypeTransfer},
	}
	for _, tt := range tests {
		got, err := ParseTypeCode(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.code)
	}

	_, err := ParseTypeCode("XX")
	assert.ErrorIs(t, err, ErrUnknownTypeCode)
}

func TestTransaction_Finalize(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("complete once", func(t *testing.T) {
		tx := NewTransaction("CN1", "A00000001", TransactionTypeDeposit, dec("10"), "NV01", now)
		assert.Equal(t, TransactionStatusPending, tx.Status)
		assert.False(t, tx.IsTerminal())

		require.NoError(t, tx.Complete())
		assert.Equal(t, TransactionStatusCompleted, tx.Status)
		assert.ErrorIs(t, tx.Complete(), ErrTransactionFinalized)
		assert.ErrorIs(t, tx.Fail("late"), ErrTransactionFinalized)
		assert.Nil(t, tx.ErrorDetail)
	})

	t.Run("fail once", func(t *testing.T) {
		tx := NewTransaction("CN1", "A00000001", TransactionTypeWithdrawal, dec("10"), "NV01", now)
		require.NoError(t, tx.Fail("insufficient balance"))
		assert.Equal(t, TransactionStatusFailed, tx.Status)
		require.NotNil(t, tx.ErrorDetail)
		assert.Equal(t, "insufficient balance", *tx.ErrorDetail)
		assert.ErrorIs(t, tx.Complete(), ErrTransactionFinalized)
	})
}

func TestTransaction_InvolvesAndClone(t *testing.T) {
	tx := NewTransfer("CN1", "A00000001", "B00000002", dec("5"), "NV01", time.Now())

	assert.True(t, tx.Involves("A00000001"))
	assert.True(t, tx.Involves("B00000002"))
	assert.False(t, tx.Involves("C00000003"))

	c := tx.Clone()
	*c.DestinationAccount = "Z00000000"
	assert.Equal(t, "B00000002", *tx.DestinationAccount, "clone must not share pointers")
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), end)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("BRANCH")
	require.NoError(t, err)
	assert.Equal(t, RoleBranch, r)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestActor_WithSelectedBranch(t *testing.T) {
	bank := Actor{Role: RoleBank, Branch: "CN1"}
	assert.Equal(t, "CN2", bank.WithSelectedBranch("CN2").Branch)
	assert.Equal(t, "CN1", bank.WithSelectedBranch("").Branch)

	branch := Actor{Role: RoleBranch, Branch: "CN1"}
	assert.Equal(t, "CN1", branch.WithSelectedBranch("CN2").Branch, "branch-level users cannot switch")
}

func TestActor_OperatorID(t *testing.T) {
	assert.Equal(t, "NV01", Actor{EmployeeID: "NV01", Username: "teller"}.OperatorID())
	assert.Equal(t, "0123456789", Actor{Role: RoleCustomer, CustomerID: "0123456789"}.OperatorID())
	assert.Equal(t, "admin", Actor{Role: RoleBank, Username: "admin"}.OperatorID())
}

func TestUser_Actor(t *testing.T) {
	cust := "0123456789"
	u := &User{ID: uuid.New(), Username: "kh1", Role: RoleCustomer, BranchCode: "CN1", CustomerID: &cust}

	a := u.Actor()
	assert.Equal(t, u.ID.String(), a.UserID)
	assert.Equal(t, RoleCustomer, a.Role)
	assert.Equal(t, "CN1", a.Branch)
	assert.Equal(t, cust, a.CustomerID)
	assert.Empty(t, a.EmployeeID)
}

func TestNewLedgerEvent(t *testing.T) {
	tx := NewTransfer("CN1", "A00000001", "B00000002", dec("500000"), "NV01", time.Now())
	tx.ID = 42
	require.NoError(t, tx.Fail("insufficient balance"))

	e := NewLedgerEvent(tx)
	assert.Equal(t, int64(42), e.TransactionID)
	assert.Equal(t, "transfer", e.Type)
	assert.Equal(t, "B00000002", e.DestinationAccount)
	assert.Equal(t, TransactionStatusFailed, e.Status)
	assert.Equal(t, "insufficient balance", e.ErrorDetail)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidAccountNumber("A00000001"))
	assert.False(t, ValidAccountNumber("a00000001"))
	assert.False(t, ValidAccountNumber("A0000001"))

	assert.True(t, ValidCustomerID("0123456789"))
	assert.False(t, ValidCustomerID("012345678A"))

	assert.True(t, ValidBranchCode("CN1"))
	assert.False(t, ValidBranchCode("ALL"))
	assert.False(t, ValidBranchCode("TOOLONGCODE1"))
	assert.False(t, ValidBranchCode(""))
}

func TestTransferIdempotencyKey(t *testing.T) {
	assert.Equal(t, "transfer:u1:abc", TransferIdempotencyKey("u1", "abc"))
}
