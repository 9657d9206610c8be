package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ClientConfig holds the chat client configuration.
type ClientConfig struct {
	APIBaseURL     string
	SessionPath    string // empty keeps the session in memory only
	PollInterval   time.Duration
	TypingTimeout  time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	MetricsAddr    string // empty disables the metrics listener
}

// ServerConfig holds the development API server configuration.
type ServerConfig struct {
	ServerPort         string
	DatabaseURL        string // empty selects the in-memory store
	JWTSecret          string
	TokenMaxAge        time.Duration
	LoginRatePerMinute int
	AllowedOrigins     []string
	LogLevel           string
}

// loader reads environment values, logging every fallback.
type loader struct {
	logger *zap.Logger
}

// loadDotEnv loads the .env file if present. A missing file is not fatal so
// the binaries run with plain environment variables too.
func loadDotEnv(logger *zap.Logger, envPath []string) {
	envFile := ".env"
	if len(envPath) > 0 {
		envFile = envPath[0]
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.Debug("could not load env file, relying on environment variables",
			zap.String("file", envFile), zap.Error(err))
	}
}

// LoadClient loads the client configuration from the environment.
func LoadClient(logger *zap.Logger, envPath ...string) *ClientConfig {
	loadDotEnv(logger, envPath)
	l := loader{logger: logger}

	cfg := &ClientConfig{
		APIBaseURL:     strings.TrimRight(l.getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
		SessionPath:    l.getEnv("SESSION_PATH", ""),
		PollInterval:   l.getDuration("POLL_INTERVAL", 3*time.Second),
		TypingTimeout:  l.getDuration("TYPING_TIMEOUT", 2*time.Second),
		RequestTimeout: l.getDuration("REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:       l.getEnv("LOG_LEVEL", "info"),
		MetricsAddr:    l.getEnv("METRICS_ADDR", ""),
	}

	logger.Info("client configuration loaded",
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("persistent_session", cfg.SessionPath != ""))
	return cfg
}

// LoadServer loads the development API server configuration.
func LoadServer(logger *zap.Logger, envPath ...string) *ServerConfig {
	loadDotEnv(logger, envPath)
	l := loader{logger: logger}

	tokenHours := l.getInt("TOKEN_HOURS", 72)
	origins := strings.Split(l.getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ",")

	cfg := &ServerConfig{
		ServerPort:         l.getEnv("PORT", "8080"),
		DatabaseURL:        l.getEnv("DATABASE_URL", ""),
		JWTSecret:          l.getEnv("JWT_SECRET", "a_very_long_and_secure_default_secret_key_please_change_this"),
		TokenMaxAge:        time.Hour * time.Duration(tokenHours),
		LoginRatePerMinute: l.getInt("LOGIN_RATE_PER_MINUTE", 10),
		AllowedOrigins:     origins,
		LogLevel:           l.getEnv("LOG_LEVEL", "info"),
	}

	logger.Info("server configuration loaded",
		zap.String("port", cfg.ServerPort),
		zap.String("db_host", getDBHost(cfg.DatabaseURL)),
		zap.Duration("token_max_age", cfg.TokenMaxAge))
	return cfg
}

// getEnv reads an environment variable or returns a default value
func (l loader) getEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	l.logger.Debug("environment variable not set, using fallback", zap.String("key", key))
	return fallback
}

func (l loader) getInt(key string, fallback int) int {
	raw := l.getEnv(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		l.logger.Warn("invalid integer, using default",
			zap.String("key", key), zap.String("value", raw), zap.Int("default", fallback))
		return fallback
	}
	return n
}

func (l loader) getDuration(key string, fallback time.Duration) time.Duration {
	raw := l.getEnv(key, fallback.String())
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.logger.Warn("invalid duration, using default",
			zap.String("key", key), zap.String("value", raw), zap.Duration("default", fallback))
		return fallback
	}
	return d
}

// getDBHost extracts host:port from a DB URL so credentials never reach the logs.
func getDBHost(dbURL string) string {
	if dbURL == "" {
		return "memory"
	}
	parts := strings.Split(dbURL, "@")
	if len(parts) > 1 {
		hostAndDB := strings.Split(parts[1], "/")
		if len(hostAndDB) > 0 {
			return hostAndDB[0]
		}
	}
	return "unknown"
}
