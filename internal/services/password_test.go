package services

import (
	"errors"
	"testing"
	"time"

	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hasher := NewPasswordHasher(testArgon2)

	hashed, err := hasher.Hash("testpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, hasher.Verify("testpassword", hashed))
	assert.False(t, hasher.Verify("wrongpassword", hashed))
	assert.False(t, hasher.Verify("testpassword", "not-a-hash"))

	again, err := hasher.Hash("testpassword")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	issuer.now = fixedClock

	user := &models.User{ID: testHRUser, Role: models.RoleAdmin}
	token, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, testHRUser, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, time.Hour, issuer.TTL(claims))

	t.Run("expired", func(t *testing.T) {
		issuer.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
		defer func() { issuer.now = fixedClock }()

		_, err := issuer.Parse(token)
		assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer(config.JWTConfig{Secret: "other-secret", Expiry: time.Hour})
		other.now = fixedClock

		_, err := other.Parse(token)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, jwt.ErrTokenExpired))
	})
}
