package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 8

// AuthServiceImpl implements ports.AuthService over the central user directory.
type AuthServiceImpl struct {
	userRepo ports.UserRepository
	dir      ports.BranchDirectory
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	dir ports.BranchDirectory,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo: userRepo,
		dir:      dir,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		log:      log,
	}
}

// Register creates a directory user. Bank-level users may be assigned ALL;
// everyone else needs a real branch, and customers a linked customer id.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	if err := s.validateRegistration(req); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.Validation("username already exists")
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Role:         req.Role,
		BranchCode:   req.BranchCode,
		CustomerID:   optional(req.CustomerID),
		EmployeeID:   optional(req.EmployeeID),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil, apperror.Validation("username already exists")
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	return user, nil
}

func (s *AuthServiceImpl) validateRegistration(req ports.RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return apperror.Validation("username is required")
	}
	if len(req.Password) < minPasswordLength {
		return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if _, err := domain.ParseRole(string(req.Role)); err != nil {
		return apperror.Validation("role must be BANK, BRANCH or CUSTOMER")
	}

	if req.Role == domain.RoleBank && domain.IsAllBranches(req.BranchCode) {
		return nil
	}
	if !domain.ValidBranchCode(req.BranchCode) {
		return apperror.ErrInvalidBranchCode()
	}
	if !s.dir.BranchExists(req.BranchCode) {
		return apperror.ErrBranchNotFound()
	}
	if req.Role == domain.RoleCustomer && !domain.ValidCustomerID(req.CustomerID) {
		return apperror.ErrInvalidCustomerID()
	}
	return nil
}

// Login validates credentials and returns a session token for the user's actor.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, *domain.Actor, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, nil, apperror.ErrInvalidCredentials()
	}
	if s.hashSvc.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.Username, password)
	}

	actor := user.Actor()
	token, expiry, err := s.tokenSvc.Generate(actor)
	if err != nil {
		return "", time.Time{}, nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, &actor, nil
}

// rehash moves a stored hash to the current cost settings. The plaintext is
// only available at login, so a failure here is logged and retried next time.
func (s *AuthServiceImpl) rehash(ctx context.Context, username, password string) {
	hash, err := s.hashSvc.Hash(password)
	if err == nil {
		err = s.userRepo.UpdatePasswordHash(ctx, username, hash)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("password rehash failed")
		return
	}
	s.log.Info().Str("username", username).Msg("password rehashed with current settings")
}

// EnsureBankUser creates a bank-level user scoped to ALL unless the username
// is already taken. It reports whether a user was created.
func (s *AuthServiceImpl) EnsureBankUser(ctx context.Context, username, password string) (bool, error) {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check bootstrap user: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	_, err = s.Register(ctx, ports.RegisterRequest{
		Username:   username,
		Password:   password,
		Role:       domain.RoleBank,
		BranchCode: domain.AllBranches,
	})
	if err != nil {
		return false, fmt.Errorf("create bootstrap user: %w", err)
	}
	return true, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
