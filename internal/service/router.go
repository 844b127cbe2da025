package service

import (
	"context"
	"fmt"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/apperror"
)

// BackendOpener connects to the store behind a target.
type BackendOpener func(ctx context.Context, target domain.ConnectionTarget) (ports.Backend, error)

// LedgerRouter maps branch codes to the backend serving them. Branches whose
// targets share a DSN share one backend.
type LedgerRouter struct {
	dir      ports.BranchDirectory
	byBranch map[string]ports.Backend
	storeOf  map[string]string
	distinct []ports.Backend
}

// NewLedgerRouter opens one backend per distinct target of the directory.
func NewLedgerRouter(ctx context.Context, dir ports.BranchDirectory, open BackendOpener) (*LedgerRouter, error) {
	r := &LedgerRouter{
		dir:      dir,
		byBranch: make(map[string]ports.Backend),
		storeOf:  make(map[string]string),
	}

	byDSN := make(map[string]ports.Backend)
	for _, b := range dir.Branches() {
		target, err := dir.ResolveTarget(b.Code)
		if err != nil {
			return nil, err
		}
		backend, ok := byDSN[target.DSN]
		if !ok {
			backend, err = open(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("open store %s for branch %s: %w", target.Name, b.Code, err)
			}
			byDSN[target.DSN] = backend
			r.distinct = append(r.distinct, backend)
		}
		r.byBranch[b.Code] = backend
		r.storeOf[b.Code] = target.DSN
	}

	return r, nil
}

// Resolve returns the backend of a single branch.
func (r *LedgerRouter) Resolve(branch string) (ports.Backend, error) {
	backend, ok := r.byBranch[branch]
	if !ok {
		return ports.Backend{}, apperror.ErrBranchNotFound()
	}
	return backend, nil
}

// Backends returns the backends a read of branch must visit. ALL fans out
// to every distinct store.
func (r *LedgerRouter) Backends(branch string) ([]ports.Backend, error) {
	if domain.IsAllBranches(branch) {
		return r.distinct, nil
	}
	backend, err := r.Resolve(branch)
	if err != nil {
		return nil, err
	}
	return []ports.Backend{backend}, nil
}

// SameStore reports whether both branches are served by one store.
func (r *LedgerRouter) SameStore(a, b string) bool {
	sa, okA := r.storeOf[a]
	sb, okB := r.storeOf[b]
	return okA && okB && sa == sb
}
