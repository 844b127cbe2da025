package branch

import (
	"fmt"
	"sort"
	"strings"

	"branch-ledger/config"
	"branch-ledger/internal/core/domain"
)

// Directory implements ports.BranchDirectory over the configured branch set.
// Branches without their own database resolve to the central target.
type Directory struct {
	branches map[string]domain.Branch
	targets  map[string]domain.ConnectionTarget
	central  domain.ConnectionTarget
	order    []string
}

// NewDirectory builds the directory from configuration.
func NewDirectory(central config.DatabaseConfig, branches []config.BranchConfig) (*Directory, error) {
	d := &Directory{
		branches: make(map[string]domain.Branch, len(branches)),
		targets:  make(map[string]domain.ConnectionTarget, len(branches)),
		central:  domain.ConnectionTarget{Name: "central", DSN: central.DSN()},
	}

	for _, b := range branches {
		code := strings.ToUpper(strings.TrimSpace(b.Code))
		if !domain.ValidBranchCode(code) {
			return nil, fmt.Errorf("invalid branch code %q", b.Code)
		}
		if _, dup := d.branches[code]; dup {
			return nil, fmt.Errorf("branch %s configured twice", code)
		}

		d.branches[code] = domain.Branch{
			Code:    code,
			Name:    b.Name,
			Address: b.Address,
			Phone:   b.Phone,
		}
		if b.Database.IsZero() {
			d.targets[code] = d.central
		} else {
			d.targets[code] = domain.ConnectionTarget{
				Name: strings.ToLower(code),
				DSN:  b.Database.DSN(),
			}
		}
		d.order = append(d.order, code)
	}
	sort.Strings(d.order)

	return d, nil
}

// BranchExists reports whether code names a configured branch. ALL is not a branch.
func (d *Directory) BranchExists(code string) bool {
	_, ok := d.branches[code]
	return ok
}

func (d *Directory) Branch(code string) (domain.Branch, bool) {
	b, ok := d.branches[code]
	return b, ok
}

// Branches returns every branch ordered by code.
func (d *Directory) Branches() []domain.Branch {
	out := make([]domain.Branch, 0, len(d.order))
	for _, code := range d.order {
		out = append(out, d.branches[code])
	}
	return out
}

// ResolveTarget returns the store serving code.
func (d *Directory) ResolveTarget(code string) (domain.ConnectionTarget, error) {
	t, ok := d.targets[code]
	if !ok {
		return domain.ConnectionTarget{}, fmt.Errorf("resolve branch %q: %w", code, ErrUnknownBranch)
	}
	return t, nil
}

// ResolveCentralTarget returns the store for branch-independent data.
func (d *Directory) ResolveCentralTarget() domain.ConnectionTarget {
	return d.central
}
