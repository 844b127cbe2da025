package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a login in the central user directory.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	BranchCode   string    `json:"branch_code"`
	CustomerID   *string   `json:"customer_id,omitempty"`
	EmployeeID   *string   `json:"employee_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor builds the session view of the user.
func (u *User) Actor() Actor {
	a := Actor{
		UserID:   u.ID.String(),
		Username: u.Username,
		Role:     u.Role,
		Branch:   u.BranchCode,
	}
	if u.CustomerID != nil {
		a.CustomerID = *u.CustomerID
	}
	if u.EmployeeID != nil {
		a.EmployeeID = *u.EmployeeID
	}
	return a
}
