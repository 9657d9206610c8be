package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medchat/internal/models"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestMemorySession(t *testing.T) {
	a, err := Open("", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, a.IsAuthenticated())
	assert.Equal(t, models.RoleUnknown, a.Role())

	user := &models.PublicUser{ID: 7, Username: "dr_house", Role: models.RoleDoctor}
	require.NoError(t, a.SetAuthData(signed(t, time.Now().Add(time.Hour)), user))
	assert.True(t, a.IsAuthenticated())
	assert.Equal(t, int64(7), a.UserID())
	assert.Equal(t, "dr_house", a.Username())
	assert.Equal(t, models.RoleDoctor, a.Role())

	a.User().Username = "mutated"
	assert.Equal(t, "dr_house", a.Username())

	require.NoError(t, a.Clear())
	assert.False(t, a.IsAuthenticated())
	assert.Nil(t, a.User())
	assert.NoError(t, a.Close())
}

func TestSessionPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	token := signed(t, time.Now().Add(time.Hour))

	a, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.SetAuthData(token, &models.PublicUser{ID: 3, Username: "pat", Role: models.RoleUser}))
	require.NoError(t, a.Close())

	b, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, token, b.Token())
	assert.Equal(t, models.RoleUser, b.Role())
	require.NoError(t, b.Clear())
	require.NoError(t, b.Close())

	c, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()
	assert.Empty(t, c.Token())
	assert.Nil(t, c.User())
}

func TestExpired(t *testing.T) {
	a, err := Open("", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.SetAuthData(signed(t, time.Now().Add(-time.Minute)), &models.PublicUser{ID: 1}))
	assert.True(t, a.Expired())
	assert.False(t, a.IsAuthenticated())

	require.NoError(t, a.SetAuthData("opaque-token", &models.PublicUser{ID: 1}))
	assert.False(t, a.Expired())
	assert.True(t, a.IsAuthenticated())

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, a.SetAuthData(signed(t, time.Now().Add(time.Hour)), &models.PublicUser{ID: 1}))
	assert.True(t, a.Expired())
}
