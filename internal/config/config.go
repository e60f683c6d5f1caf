// Package config reads server settings from the environment, after
// loading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	CORSOrigins []string

	TurnDuration      time.Duration
	ReconnectWindow   time.Duration
	RoomIdleTimeout   time.Duration
	DisconnectTimeout time.Duration
	SweepInterval     time.Duration

	DefaultMaxPlayers      int
	DefaultMaxParticipants int

	RateLimitPerSec float64
	RateLimitBurst  int

	RedisURL    string
	DatabaseURL string

	JWTSecret           string
	SessionTTL          time.Duration
	RequireSessionToken bool

	LogLevel  string
	LogFormat string
	GinMode   string
}

// Load reads files (default ".env") if present and then the environment.
// A malformed value is an error; a missing one takes its default.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		} else if err != nil {
			logrus.WithField("file", f).Debug("No env file, using environment only")
		}
	}

	p := parser{}
	cfg := &Config{
		Port:        str("PORT", "3004"),
		CORSOrigins: list("CORS_ORIGIN", "http://localhost:3000,http://localhost:5173"),

		TurnDuration:      time.Duration(p.getInt("TURN_SECONDS", 10)) * time.Second,
		ReconnectWindow:   time.Duration(p.getInt("RECONNECT_SECONDS", 60)) * time.Second,
		RoomIdleTimeout:   p.getDuration("ROOM_IDLE_TIMEOUT", 10*time.Minute),
		DisconnectTimeout: p.getDuration("DISCONNECT_TIMEOUT", 5*time.Minute),
		SweepInterval:     p.getDuration("SWEEP_INTERVAL", 5*time.Minute),

		DefaultMaxPlayers:      p.getInt("DEFAULT_MAX_PLAYERS", 4),
		DefaultMaxParticipants: p.getInt("DEFAULT_MAX_PARTICIPANTS", 8),

		RateLimitPerSec: p.getFloat("RATE_LIMIT_PER_SEC", 20),
		RateLimitBurst:  p.getInt("RATE_LIMIT_BURST", 40),

		RedisURL:    str("REDIS_URL", ""),
		DatabaseURL: str("DATABASE_URL", ""),

		JWTSecret:           str("JWT_SECRET", ""),
		SessionTTL:          p.getDuration("SESSION_TTL", 24*time.Hour),
		RequireSessionToken: p.getBool("REQUIRE_SESSION_TOKEN", false),

		LogLevel:  str("LOG_LEVEL", "info"),
		LogFormat: str("LOG_FORMAT", "text"),
		GinMode:   str("GIN_MODE", ""),
	}
	if p.err != nil {
		return nil, p.err
	}
	if cfg.TurnDuration <= 0 || cfg.ReconnectWindow <= 0 {
		return nil, fmt.Errorf("TURN_SECONDS and RECONNECT_SECONDS must be positive")
	}
	if cfg.RequireSessionToken && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("REQUIRE_SESSION_TOKEN needs JWT_SECRET")
	}
	return cfg, nil
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func list(key, def string) []string {
	var out []string
	for _, s := range strings.Split(str(key, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parser keeps the first conversion error.
type parser struct{ err error }

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (p *parser) getInt(key string, def int) int {
	v := str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) getFloat(key string, def float64) float64 {
	v := str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) getBool(key string, def bool) bool {
	v := str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
