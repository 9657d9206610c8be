package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"medchat/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateJWT(&models.User{ID: 42, Role: models.RoleDoctor})
	require.NoError(t, err)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTRejects(t *testing.T) {
	m, err := NewJWTManager("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTManager("other-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateJWT(&models.User{ID: 1, Role: models.RoleUser})
	require.NoError(t, err)
	_, err = m.ValidateJWT(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ValidateJWT(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = NewJWTManager("", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPasswordWithCost("patient123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("patient123", hash))
	assert.False(t, CheckPasswordHash("patient124", hash))
	assert.False(t, CheckPasswordHash("", hash))

	_, err = HashPassword("")
	assert.Error(t, err)
}
