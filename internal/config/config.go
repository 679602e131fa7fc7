package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ticketsync/internal/pkg/jwt"
)

type AppConfig struct {
	// Remote endpoints
	APIURL         string
	WSURL          string
	RequestTimeout time.Duration

	// Push channel reconnect policy
	Reconnect ReconnectConfig

	// Persisted session state
	StateBackend string
	StatePath    string
	StateKey     string
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// Logging
	LogLevel  string
	LogFormat string

	// Development server
	Dev DevConfig
}

type ReconnectConfig struct {
	Strategy    string // fixed | exponential
	Delay       time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 means unbounded
}

type DevConfig struct {
	HTTPAddr      string
	AllowedOrigin string
	AdminName     string
	AdminEmail    string
	AdminPassword string
	JWT           jwt.Config

	// Empty keeps everything in memory
	DatabaseURL string

	// Login throttling is enabled when RedisAddr is set
	RedisAddr        string
	RedisPass        string
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		APIURL:         strings.TrimRight(getEnv("API_URL", "http://localhost:8080/api/v1"), "/"),
		WSURL:          getEnv("WS_URL", "ws://127.0.0.1:8080/ws"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		Reconnect: ReconnectConfig{
			Strategy:    strings.ToLower(getEnv("RECONNECT_STRATEGY", "fixed")),
			Delay:       getEnvDuration("RECONNECT_DELAY", 5*time.Second),
			MaxDelay:    getEnvDuration("RECONNECT_MAX_DELAY", 60*time.Second),
			MaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 0),
		},

		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", "file")),
		StatePath:    getEnv("STATE_PATH", defaultStatePath()),
		StateKey:     getEnv("STATE_KEY", "ticketsync:session"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		RedisDB:      getEnvInt("REDIS_DB", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),

		Dev: DevConfig{
			HTTPAddr:         getEnv("DEV_HTTP_ADDR", ":8080"),
			AllowedOrigin:    getEnv("DEV_ALLOWED_ORIGIN", ""),
			AdminName:        getEnv("DEV_ADMIN_NAME", "Administrator"),
			AdminEmail:       getEnv("DEV_ADMIN_EMAIL", "admin@ticketsync.local"),
			AdminPassword:    getEnv("DEV_ADMIN_PASSWORD", "change-me-now"),
			DatabaseURL:      getEnv("DEV_DATABASE_URL", ""),
			RedisAddr:        getEnv("DEV_REDIS_ADDR", ""),
			RedisPass:        getEnv("DEV_REDIS_PASS", ""),
			LoginMaxAttempts: getEnvInt("DEV_LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:      getEnvDuration("DEV_LOGIN_WINDOW", 15*time.Minute),
			JWT: jwt.Config{
				PrivPath:   getEnv("DEV_JWT_PRIVATE_KEY_PATH", ""),
				PubPath:    getEnv("DEV_JWT_PUBLIC_KEY_PATH", ""),
				Issuer:     "ticketsync-dev",
				Audience:   "ticketsync",
				AccessTTL:  getEnvDuration("DEV_ACCESS_TTL", 15*time.Minute),
				RefreshTTL: getEnvDuration("DEV_REFRESH_TTL", 168*time.Hour),
				KID:        "ticketsync-dev-key",
			},
		},
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ticketsync", "session.json")
	}
	return filepath.Join(home, ".ticketsync", "session.json")
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
