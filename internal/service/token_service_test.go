package service

import (
	"testing"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func tellerActor() domain.Actor {
	return domain.Actor{
		UserID:     "5f0c1b2e-8c1a-4f5e-9d2b-000000000001",
		Username:   "teller1",
		Role:       domain.RoleBranch,
		Branch:     "WEST",
		EmployeeID: "E0001",
	}
}

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 8*time.Hour, "test-issuer")
	actor := tellerActor()

	tokenStr, expiresAt, err := svc.Generate(actor)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	got, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, actor, *got)
}

func TestJWTTokenService_CustomerActor(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "test-issuer")
	actor := domain.Actor{UserID: "u-2", Username: "alice", Role: domain.RoleCustomer, Branch: "WEST", CustomerID: "0123456789"}

	tokenStr, _, err := svc.Generate(actor)
	require.NoError(t, err)

	got, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", got.CustomerID)
	assert.Equal(t, "0123456789", got.OperatorID())
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "test-issuer")

	tokenStr, _, err := svc.Generate(tellerActor())
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", time.Hour, "issuer")
	svc2 := NewJWTTokenService("secret-2", time.Hour, "issuer")

	tokenStr, _, err := svc1.Generate(tellerActor())
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	svc1 := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-a")
	svc2 := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-b")

	tokenStr, _, err := svc1.Generate(tellerActor())
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_UnknownRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")
	claims := sessionClaims{
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
