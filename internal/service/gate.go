package service

import (
	"fmt"

	"branch-ledger/internal/core/domain"
	"branch-ledger/pkg/apperror"
)

// Gate decides what an actor may read and change. It is a pure function of
// the actor and the requested resource.
type Gate struct {
	actor domain.Actor
}

// NewGate binds the decision rules to actor.
func NewGate(actor domain.Actor) Gate {
	return Gate{actor: actor}
}

// CanReadBranch reports whether branch-wide listings of branch are visible.
// Bank-level users see every branch including ALL.
func (g Gate) CanReadBranch(branch string) bool {
	switch g.actor.Role {
	case domain.RoleBank:
		return true
	case domain.RoleBranch:
		return branch != "" && branch == g.actor.Branch
	}
	return false
}

// CanWriteBranch reports whether entities of branch may be created or changed.
// Bank-level writes are confined to the selected branch, never ALL.
func (g Gate) CanWriteBranch(branch string) bool {
	switch g.actor.Role {
	case domain.RoleBank, domain.RoleBranch:
		return branch != "" && !domain.IsAllBranches(branch) && branch == g.actor.Branch
	}
	return false
}

// CanReadCustomer reports whether the accounts of customerID may be listed.
// Branch-level results are still narrowed by EffectiveBranchFilter.
func (g Gate) CanReadCustomer(customerID string) bool {
	switch g.actor.Role {
	case domain.RoleBank, domain.RoleBranch:
		return true
	case domain.RoleCustomer:
		return customerID != "" && customerID == g.actor.CustomerID
	}
	return false
}

// CanReadAccount reports whether a fetched account is visible.
func (g Gate) CanReadAccount(account *domain.Account) bool {
	switch g.actor.Role {
	case domain.RoleBank:
		return true
	case domain.RoleBranch:
		return account.BranchCode == g.actor.Branch
	case domain.RoleCustomer:
		return g.ownsAccount(account)
	}
	return false
}

// CanTransact reports whether money may be moved out of or into account
// on the actor's initiative.
func (g Gate) CanTransact(account *domain.Account) bool {
	if g.actor.Role == domain.RoleCustomer {
		return g.ownsAccount(account)
	}
	return g.CanWriteBranch(account.BranchCode)
}

// CanInitiate is the coarse check before any store access for a money
// movement requested against branch. Customers are narrowed per account.
func (g Gate) CanInitiate(branch string) bool {
	if g.actor.Role == domain.RoleCustomer {
		return g.actor.CustomerID != ""
	}
	return g.CanWriteBranch(branch)
}

// EffectiveBranchFilter returns the branch reads are limited to, or
// restricted=false for bank-level users.
func (g Gate) EffectiveBranchFilter() (branch string, restricted bool) {
	if g.actor.Role == domain.RoleBank {
		return "", false
	}
	return g.actor.Branch, true
}

func (g Gate) ownsAccount(account *domain.Account) bool {
	return g.actor.CustomerID != "" && account.CustomerID == g.actor.CustomerID
}

// RequireReadBranch fails with a forbidden error unless CanReadBranch.
func (g Gate) RequireReadBranch(branch string) error {
	if !g.CanReadBranch(branch) {
		return apperror.Forbidden(fmt.Sprintf("%s users may not view branch %s", g.role(), branch))
	}
	return nil
}

// RequireWriteBranch fails with a forbidden error unless CanWriteBranch.
func (g Gate) RequireWriteBranch(branch string) error {
	if g.CanWriteBranch(branch) {
		return nil
	}
	if g.actor.Role == domain.RoleBank && (domain.IsAllBranches(branch) || domain.IsAllBranches(g.actor.Branch)) {
		return apperror.Forbidden("select a single branch before making changes")
	}
	return apperror.Forbidden(fmt.Sprintf("%s users may not change branch %s", g.role(), branch))
}

func (g Gate) RequireReadCustomer(customerID string) error {
	if !g.CanReadCustomer(customerID) {
		return apperror.Forbidden("customers may only view their own accounts")
	}
	return nil
}

func (g Gate) RequireReadAccount(account *domain.Account) error {
	if !g.CanReadAccount(account) {
		return apperror.Forbidden(fmt.Sprintf("account %s is not visible to this user", account.Number))
	}
	return nil
}

func (g Gate) RequireTransact(account *domain.Account) error {
	if !g.CanTransact(account) {
		return apperror.Forbidden(fmt.Sprintf("not allowed to move money on account %s", account.Number))
	}
	return nil
}

func (g Gate) RequireInitiate(branch string) error {
	if !g.CanInitiate(branch) {
		return g.RequireWriteBranch(branch)
	}
	return nil
}

func (g Gate) role() string {
	switch g.actor.Role {
	case domain.RoleBank:
		return "bank-level"
	case domain.RoleBranch:
		return "branch-level"
	case domain.RoleCustomer:
		return "customer"
	}
	return "unknown"
}
