// Package gateway is the trusted backend surface for concierge clients:
// it mints ephemeral realtime credentials so the provider API key never
// leaves the server, and serves health and metrics endpoints.
package gateway

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config configures the gateway server, loaded from environment.
type Config struct {
	Addr string

	// Provider selects which realtime provider is minted for: "openai"
	// or "gemini".
	Provider string
	// APIKey is the provider API key held server-side.
	APIKey string
	// MintURL overrides the provider's session-mint endpoint (tests).
	MintURL string

	// DefaultModel and DefaultVoice apply when a request omits them.
	DefaultModel string
	DefaultVoice string

	MaxBodyBytes int64

	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv builds a Config from HAUS_GATEWAY_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("HAUS_GATEWAY_ADDR", ":8090"),
		Provider:            envOr("HAUS_GATEWAY_PROVIDER", "openai"),
		APIKey:              os.Getenv("HAUS_GATEWAY_API_KEY"),
		MintURL:             os.Getenv("HAUS_GATEWAY_MINT_URL"),
		DefaultModel:        envOr("HAUS_GATEWAY_DEFAULT_MODEL", "gpt-realtime"),
		DefaultVoice:        envOr("HAUS_GATEWAY_DEFAULT_VOICE", "marin"),
		MaxBodyBytes:        envInt64Or("HAUS_GATEWAY_MAX_BODY_BYTES", 256<<10),
		ReadHeaderTimeout:   envDurationOr("HAUS_GATEWAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("HAUS_GATEWAY_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("HAUS_GATEWAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.Provider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("HAUS_GATEWAY_PROVIDER must be one of openai|gemini")
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("HAUS_GATEWAY_API_KEY is required")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64Or(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
