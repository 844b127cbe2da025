package domain

import "fmt"

// Role is the authorization tier of a signed-in user.
type Role string

const (
	RoleBank     Role = "BANK"
	RoleBranch   Role = "BRANCH"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole validates a stored or claimed role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleBank, RoleBranch, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Actor is the session view the gate decides on.
// Branch is the assigned branch, or for bank-level users the currently selected one.
type Actor struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	Branch     string `json:"branch"`
	CustomerID string `json:"customer_id,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
}

// WithSelectedBranch returns a copy with the selected branch replaced.
// Only bank-level users may switch branches; others are returned unchanged.
func (a Actor) WithSelectedBranch(branch string) Actor {
	if a.Role != RoleBank || branch == "" {
		return a
	}
	a.Branch = branch
	return a
}

// OperatorID identifies who performed a ledger mutation in the audit trail.
func (a Actor) OperatorID() string {
	if a.EmployeeID != "" {
		return a.EmployeeID
	}
	if a.Role == RoleCustomer {
		return a.CustomerID
	}
	return a.Username
}
