package service

import (
	"errors"
	"fmt"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims carries the actor a token was issued for.
type sessionClaims struct {
	Username   string `json:"usr"`
	Role       string `json:"role"`
	Branch     string `json:"branch"`
	CustomerID string `json:"cid,omitempty"`
	EmployeeID string `json:"eid,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService using HS256 JWT.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		now:    time.Now,
	}
}

// Generate signs a session token for actor.
func (s *JWTTokenService) Generate(actor domain.Actor) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := sessionClaims{
		Username:   actor.Username,
		Role:       string(actor.Role),
		Branch:     actor.Branch,
		CustomerID: actor.CustomerID,
		EmployeeID: actor.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses a session token and returns the actor it carries.
func (s *JWTTokenService) Validate(tokenString string) (*domain.Actor, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleCustomer && claims.CustomerID == "" {
		return nil, errors.New("customer token without customer id")
	}

	return &domain.Actor{
		UserID:     claims.Subject,
		Username:   claims.Username,
		Role:       role,
		Branch:     claims.Branch,
		CustomerID: claims.CustomerID,
		EmployeeID: claims.EmployeeID,
	}, nil
}
