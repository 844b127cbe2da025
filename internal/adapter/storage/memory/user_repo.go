package memory

import (
	"context"
	"sync"

	"branch-ledger/internal/core/domain"
)

// UserRepo is an in-process user directory for the memory backend.
type UserRepo struct {
	mu         sync.RWMutex
	byUsername map[string]*domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byUsername: make(map[string]*domain.User)}
}

// Create stores a copy of u. Usernames are unique.
func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUsername[u.Username]; exists {
		return domain.ErrDuplicateUsername
	}
	stored := *u
	r.byUsername[u.Username] = &stored
	return nil
}

// GetByUsername returns nil, nil when the user does not exist.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byUsername[username]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

// UpdatePasswordHash replaces the stored hash of username.
func (r *UserRepo) UpdatePasswordHash(_ context.Context, username, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byUsername[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}
