package postgres

import (
	"context"
	"fmt"
	"strings"
)

// StoreHealth reports whether a ledger store is reachable and still carries
// its tables. The central store also holds the user directory.
type StoreHealth struct {
	pool   Pool
	target string
	tables []string
}

func NewStoreHealth(pool Pool, target string, central bool) *StoreHealth {
	tables := []string{"accounts", "transactions"}
	if central {
		tables = append(tables, "users")
	}
	return &StoreHealth{pool: pool, target: target, tables: tables}
}

func (h *StoreHealth) Ping(ctx context.Context) error {
	var missing []string
	err := h.pool.QueryRow(ctx,
		`SELECT coalesce(array_agg(t), '{}') FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`,
		h.tables,
	).Scan(&missing)
	if err != nil {
		return fmt.Errorf("store %s: %w", h.target, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("store %s: missing tables %s", h.target, strings.Join(missing, ", "))
	}
	return nil
}

func (h *StoreHealth) Name() string {
	return "store:" + h.target
}
