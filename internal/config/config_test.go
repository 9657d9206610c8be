package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg := LoadClient(zap.NewNop(), filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.TypingTimeout)
	assert.Equal(t, "", cfg.SessionPath)
}

func TestLoadClientFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://clinic.example/api/")
	t.Setenv("POLL_INTERVAL", "750ms")
	t.Setenv("TYPING_TIMEOUT", "not-a-duration")

	cfg := LoadClient(zap.NewNop(), filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "https://clinic.example/api", cfg.APIBaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.TypingTimeout)
}

func TestLoadServerFromDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "server.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TOKEN_HOURS=5\nLOGIN_RATE_PER_MINUTE=abc\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("TOKEN_HOURS")
		os.Unsetenv("LOGIN_RATE_PER_MINUTE")
	})
	t.Setenv("DATABASE_URL", "postgres://u:p@db.internal:5432/chat")

	cfg := LoadServer(zap.NewNop(), envFile)

	assert.Equal(t, 5*time.Hour, cfg.TokenMaxAge)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.Equal(t, "db.internal:5432", getDBHost(cfg.DatabaseURL))
	assert.Equal(t, "memory", getDBHost(""))
}
