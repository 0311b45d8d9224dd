// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	VendorEmail    string
	VendorPassword string
	DBPath         string
	ListenAddr     string
	SyncInterval   time.Duration
	SyncDays       int
	RetentionDays  int
	// TokenKey is the 32-byte AES-256 key for token persistence. Nil when
	// WELLPANEL_TOKEN_KEY is unset; the session then lives in memory only.
	TokenKey []byte
}

// HasVendorCredentials returns true when both email and password are
// non-empty. Used by the composition root to decide whether to attempt a
// login at startup or wait for credentials via the API.
func (c *Config) HasVendorCredentials() bool {
	return c.VendorEmail != "" && c.VendorPassword != ""
}

// Load reads configuration from a .env file (if present) and the
// environment, environment taking precedence, and returns a validated
// Config. Vendor credentials (WELLPANEL_EMAIL, WELLPANEL_PASSWORD) are
// optional; if absent, the app starts but syncing is inactive until a login
// arrives via the API. Optional variables with defaults:
// WELLPANEL_SYNC_INTERVAL (1h), WELLPANEL_SYNC_DAYS (7),
// WELLPANEL_RETENTION_DAYS (90), WELLPANEL_LISTEN_ADDR (127.0.0.1:8080),
// WELLPANEL_DB_PATH (wellpanel.db). WELLPANEL_TOKEN_KEY, when set, must be
// 64 hex characters.
func Load() (*Config, error) {
	// godotenv does not overwrite variables already present in the
	// environment, so real env vars win over .env entries.
	_ = godotenv.Load()

	email := os.Getenv("WELLPANEL_EMAIL")
	password := os.Getenv("WELLPANEL_PASSWORD")

	syncInterval := time.Hour
	if v, ok := os.LookupEnv("WELLPANEL_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WELLPANEL_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		syncInterval = parsed
	}

	syncDays := 7
	if v, ok := os.LookupEnv("WELLPANEL_SYNC_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("WELLPANEL_SYNC_DAYS must be a positive integer, got %q", v)
		}
		syncDays = parsed
	}

	retentionDays := 90
	if v, ok := os.LookupEnv("WELLPANEL_RETENTION_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("WELLPANEL_RETENTION_DAYS must be a positive integer, got %q", v)
		}
		retentionDays = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("WELLPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "wellpanel.db"
	if v, ok := os.LookupEnv("WELLPANEL_DB_PATH"); ok {
		dbPath = v
	}

	var tokenKey []byte
	if v, ok := os.LookupEnv("WELLPANEL_TOKEN_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("WELLPANEL_TOKEN_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("WELLPANEL_TOKEN_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		tokenKey = decoded
	}

	return &Config{
		VendorEmail:    email,
		VendorPassword: password,
		DBPath:         dbPath,
		ListenAddr:     listenAddr,
		SyncInterval:   syncInterval,
		SyncDays:       syncDays,
		RetentionDays:  retentionDays,
		TokenKey:       tokenKey,
	}, nil
}
