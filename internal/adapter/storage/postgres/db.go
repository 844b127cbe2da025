package postgres

import (
	"context"
	"errors"
	"fmt"

	"branch-ledger/config"
	"branch-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// querier is satisfied by both a pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the stores use; pgxmock implements it in tests.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewPool opens a connection pool for target, sized by limits.
func NewPool(ctx context.Context, target domain.ConnectionTarget, limits config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(target.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config for %s: %w", target.Name, err)
	}

	if limits.MaxConns > 0 {
		poolCfg.MaxConns = limits.MaxConns
	}
	if limits.MinConns > 0 {
		poolCfg.MinConns = limits.MinConns
	}
	if limits.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = limits.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool for %s: %w", target.Name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database %s: %w", target.Name, err)
	}

	log.Info().
		Str("target", target.Name).
		Str("host", poolCfg.ConnConfig.Host).
		Str("dbname", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

const (
	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	pgLockNotAvailable  = "55P03"
	pgQueryCanceled     = "57014"
	pgSerializationFail = "40001"
	pgDeadlockDetected  = "40P01"
)

// translate maps driver errors onto domain errors where the caller can act on them.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgQueryCanceled:
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	case pgSerializationFail, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrConcurrentModification, err)
	case pgCheckViolation:
		if pgErr.ConstraintName == closedAtZeroConstraint {
			return fmt.Errorf("%w: %w", domain.ErrNonZeroBalance, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInsufficientBalance, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
