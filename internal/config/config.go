// Package config loads process configuration from environment variables,
// backfilling defaults in one pass the way the teacher's YAML config
// loader does — this service has no on-disk server config file, only
// per-process env vars.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds every tunable the process reads at boot. Nothing here is
// re-read after startup.
type Config struct {
	ListenAddr           string
	DBPath               string
	JWTSecret            string
	TokenTTL             time.Duration
	UpstreamDialTimeout  time.Duration
	X224ReadTimeout      time.Duration
	TLSValidate          bool
	RelayBufferBytes     int
	LogLevel             string
}

const (
	defaultListenAddr          = "127.0.0.1:8443"
	defaultDBPath              = "./data/rdgateway.db"
	defaultTokenTTL            = 24 * time.Hour
	defaultUpstreamDialTimeout = 10 * time.Second
	defaultX224ReadTimeout     = 10 * time.Second
	defaultRelayBufferBytes    = 16384
	defaultLogLevel            = "info"
)

// Load reads every RDGATEWAY_* environment variable, backfilling the
// defaults above for anything unset or unparseable.
func Load() Config {
	cfg := Config{
		ListenAddr:          getEnv("RDGATEWAY_LISTEN_ADDR", defaultListenAddr),
		DBPath:              getEnv("RDGATEWAY_DB_PATH", defaultDBPath),
		JWTSecret:           getEnv("RDGATEWAY_JWT_SECRET", uuid.NewString()),
		TokenTTL:            getDuration("RDGATEWAY_TOKEN_TTL", defaultTokenTTL),
		UpstreamDialTimeout: getDuration("RDGATEWAY_UPSTREAM_DIAL_TIMEOUT", defaultUpstreamDialTimeout),
		X224ReadTimeout:     getDuration("RDGATEWAY_X224_READ_TIMEOUT", defaultX224ReadTimeout),
		TLSValidate:         getBool("RDGATEWAY_TLS_VALIDATE", false),
		RelayBufferBytes:    getInt("RDGATEWAY_RELAY_BUFFER_BYTES", defaultRelayBufferBytes),
		LogLevel:            getEnv("RDGATEWAY_LOG_LEVEL", defaultLogLevel),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
