package postgres

import (
	"context"
	"fmt"
)

const closedAtZeroConstraint = "accounts_closed_at_zero"

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		account_number CHAR(9) PRIMARY KEY,
		customer_id    CHAR(10) NOT NULL,
		balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		branch_code    VARCHAR(10) NOT NULL,
		opened_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		status         VARCHAR(10) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'CLOSED')),
		CONSTRAINT accounts_closed_at_zero CHECK (status <> 'CLOSED' OR balance = 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_branch ON accounts (branch_code)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts (customer_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                  BIGSERIAL PRIMARY KEY,
		branch_code         VARCHAR(10) NOT NULL,
		account_number      CHAR(9) NOT NULL,
		type_code           CHAR(2) NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		amount              NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		employee_id         VARCHAR(64),
		destination_account CHAR(9),
		status              VARCHAR(10) NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED')),
		error_detail        TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account_number, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_account) WHERE destination_account IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_branch ON transactions (branch_code, created_at DESC)`,
}

var directorySchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(64) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          VARCHAR(10) NOT NULL CHECK (role IN ('BANK', 'BRANCH', 'CUSTOMER')),
		branch_code   VARCHAR(10) NOT NULL,
		customer_id   CHAR(10),
		employee_id   VARCHAR(64),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the ledger tables on a branch database, plus the user
// directory when central is true. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, pool Pool, central bool) error {
	stmts := ledgerSchema
	if central {
		stmts = append(append([]string{}, ledgerSchema...), directorySchema...)
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
