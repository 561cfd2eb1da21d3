package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/model-router/router/pkg/types"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(&types.AuthConfig{JWTSecret: "test-secret", JWTExpiration: time.Hour})

	token, err := svc.GenerateToken("ops", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTValidation(t *testing.T) {
	svc := NewJWTService(&types.AuthConfig{JWTSecret: "test-secret", JWTExpiration: time.Hour})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewJWTService(&types.AuthConfig{JWTSecret: "different-secret", JWTExpiration: time.Hour})
		token, err := other.GenerateToken("ops", "admin")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewJWTService(&types.AuthConfig{JWTSecret: "test-secret", JWTExpiration: -time.Hour})
		token, err := expired.GenerateToken("ops", "admin")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}
