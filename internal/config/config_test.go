package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"API_URL", "WS_URL", "REQUEST_TIMEOUT", "RECONNECT_DELAY", "RECONNECT_STRATEGY", "STATE_BACKEND"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIURL)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", cfg.WSURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "fixed", cfg.Reconnect.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.Delay)
	assert.Equal(t, 0, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.NotEmpty(t, cfg.StatePath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://tickets.example.com/api/v1/")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("RECONNECT_STRATEGY", "Exponential")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "7")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "https://tickets.example.com/api/v1", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "exponential", cfg.Reconnect.Strategy)
	assert.Equal(t, 7, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 0, cfg.RedisDB)
}
