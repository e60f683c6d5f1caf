package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noFile(t))
	require.NoError(t, err)

	assert.Equal(t, "3004", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.TurnDuration)
	assert.Equal(t, 60*time.Second, cfg.ReconnectWindow)
	assert.Equal(t, 10*time.Minute, cfg.RoomIdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DisconnectTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.DefaultMaxPlayers)
	assert.Equal(t, 8, cfg.DefaultMaxParticipants)
	assert.Equal(t, 20.0, cfg.RateLimitPerSec)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.RequireSessionToken)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGIN", " https://whot.ng , https://play.whot.ng ,")
	t.Setenv("TURN_SECONDS", "15")
	t.Setenv("ROOM_IDLE_TIMEOUT", "90s")
	t.Setenv("RATE_LIMIT_PER_SEC", "2.5")
	t.Setenv("REQUIRE_SESSION_TOKEN", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(noFile(t))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"https://whot.ng", "https://play.whot.ng"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.TurnDuration)
	assert.Equal(t, 90*time.Second, cfg.RoomIdleTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitPerSec)
	assert.True(t, cfg.RequireSessionToken)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"TURN_SECONDS":          "ten",
		"SWEEP_INTERVAL":        "5 minutes",
		"REQUIRE_SESSION_TOKEN": "maybe",
		"RATE_LIMIT_PER_SEC":    "fast",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load(noFile(t))
			assert.ErrorContains(t, err, key)
		})
	}

	t.Run("token without secret", func(t *testing.T) {
		t.Setenv("REQUIRE_SESSION_TOKEN", "1")
		t.Setenv("JWT_SECRET", "")
		_, err := Load(noFile(t))
		assert.Error(t, err)
	})
	t.Run("zero turn", func(t *testing.T) {
		t.Setenv("TURN_SECONDS", "0")
		_, err := Load(noFile(t))
		assert.Error(t, err)
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_MAX_PARTICIPANTS=16\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DEFAULT_MAX_PARTICIPANTS") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.DefaultMaxParticipants)
}
