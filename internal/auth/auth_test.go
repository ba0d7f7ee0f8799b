package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	s := NewService("test-jwt-secret")
	s.RegisterAdmin("ADMIN_1", "admin@example.com", "correct-password")
	return s
}

func TestGenerateTokenWithValidCredentials(t *testing.T) {
	s := newTestService()

	token, err := s.GenerateToken(Credentials{Email: "admin@example.com", Password: "correct-password"})
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.NotEmpty(t, token.Token)
	assert.True(t, token.Expiration.After(time.Now().Add(23*time.Hour)))
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	s := newTestService()

	_, err := s.GenerateToken(Credentials{Email: "admin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.GenerateToken(Credentials{Email: "unknown@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	s := newTestService()

	token, err := s.GenerateToken(Credentials{Email: "admin@example.com", Password: "correct-password"})
	require.NoError(t, err)

	claims, err := s.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN_1", claims.AdminID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, RoleSuperAdmin, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	s := newTestService()
	other := NewService("a-different-secret")

	token, err := s.GenerateToken(Credentials{Email: "admin@example.com", Password: "correct-password"})
	require.NoError(t, err)

	_, err = other.ValidateToken(token.Token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	s := newTestService()

	_, err := s.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
