// Package config loads application configuration from environment variables
// and an optional config file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ericfisherdev/reviewledger/internal/logger"
)

// EnvPrefix is prepended to every environment variable Load reads.
const EnvPrefix = "REVIEWLEDGER"

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr      string
	Store           string
	DBPath          string
	PostgresDSN     string
	Log             logger.Config
	GitHubToken     string
	GitHubRepo      string
	SecretKey       []byte // nil when REVIEWLEDGER_SECRET_KEY is unset.
	UpdateRetries   int
	ShutdownTimeout time.Duration
}

// HasCommitLookup reports whether a repository is configured for resolving
// review commit ids.
func (c *Config) HasCommitLookup() bool {
	return c.GitHubRepo != ""
}

// Load reads configuration and returns a validated Config. Values come from
// REVIEWLEDGER_* environment variables, falling back to the file named by
// REVIEWLEDGER_CONFIG when set, then to defaults:
// LISTEN_ADDR (127.0.0.1:8080), STORE (sqlite), DB_PATH (reviewledger.db),
// LOG_LEVEL (info), LOG_FORMAT (text), UPDATE_RETRIES (3),
// SHUTDOWN_TIMEOUT (10s).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", "127.0.0.1:8080")
	v.SetDefault("STORE", StoreSQLite)
	v.SetDefault("DB_PATH", "reviewledger.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("UPDATE_RETRIES", "3")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%s_CONFIG: read %s: %w", EnvPrefix, path, err)
		}
	}

	store := strings.ToLower(v.GetString("STORE"))
	switch store {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if v.GetString("POSTGRES_DSN") == "" {
			return nil, fmt.Errorf("%s_POSTGRES_DSN is required when %s_STORE=postgres", EnvPrefix, EnvPrefix)
		}
	default:
		return nil, fmt.Errorf("%s_STORE has unsupported value %q (want sqlite, memory or postgres)", EnvPrefix, store)
	}

	retries, err := strconv.Atoi(v.GetString("UPDATE_RETRIES"))
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("%s_UPDATE_RETRIES has invalid value %q: want a non-negative integer", EnvPrefix, v.GetString("UPDATE_RETRIES"))
	}

	shutdown, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("%s_SHUTDOWN_TIMEOUT has invalid duration %q: %w", EnvPrefix, v.GetString("SHUTDOWN_TIMEOUT"), err)
	}

	repo := strings.TrimSpace(v.GetString("GITHUB_REPO"))
	if repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("%s_GITHUB_REPO must be owner/repo, got %q", EnvPrefix, repo)
		}
	}

	secretKey, err := parseSecretKey(v.GetString("SECRET_KEY"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:  v.GetString("LISTEN_ADDR"),
		Store:       store,
		DBPath:      v.GetString("DB_PATH"),
		PostgresDSN: v.GetString("POSTGRES_DSN"),
		Log: logger.Config{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		GitHubToken:     v.GetString("GITHUB_TOKEN"),
		GitHubRepo:      repo,
		SecretKey:       secretKey,
		UpdateRetries:   retries,
		ShutdownTimeout: shutdown,
	}, nil
}

var errSecretKeyLength = errors.New("must be 64 hex characters (32 bytes)")

// parseSecretKey decodes the AES-256 key used to encrypt stored credentials.
func parseSecretKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s_SECRET_KEY is not valid hex: %w", EnvPrefix, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s_SECRET_KEY %w", EnvPrefix, errSecretKeyLength)
	}
	return key, nil
}
