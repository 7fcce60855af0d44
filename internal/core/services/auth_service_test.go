package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_GenerateAndValidate(t *testing.T) {
	svc := NewAuthService("test-jwt-secret", time.Hour)

	token, err := svc.GenerateToken("user42", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user42", string(claims.UserID))
	assert.Equal(t, "alice", claims.Username)
}

func TestAuthService_RejectsForeignSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", time.Hour)
	verifier := NewAuthService("secret-b", time.Hour)

	token, err := issuer.GenerateToken("user42", "alice")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-jwt-secret", -time.Minute)

	token, err := svc.GenerateToken("user42", "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RejectsGarbage(t *testing.T) {
	svc := NewAuthService("test-jwt-secret", time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := svc.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}
