package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every REVIEWLEDGER_ env var that Load() reads.
var allConfigKeys = []string{
	"REVIEWLEDGER_CONFIG",
	"REVIEWLEDGER_LISTEN_ADDR",
	"REVIEWLEDGER_STORE",
	"REVIEWLEDGER_DB_PATH",
	"REVIEWLEDGER_POSTGRES_DSN",
	"REVIEWLEDGER_LOG_LEVEL",
	"REVIEWLEDGER_LOG_FORMAT",
	"REVIEWLEDGER_GITHUB_TOKEN",
	"REVIEWLEDGER_GITHUB_REPO",
	"REVIEWLEDGER_SECRET_KEY",
	"REVIEWLEDGER_UPDATE_RETRIES",
	"REVIEWLEDGER_SHUTDOWN_TIMEOUT",
}

// isolateConfigEnv saves and unsets all REVIEWLEDGER_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("REVIEWLEDGER_STORE", "memory")
	t.Setenv("REVIEWLEDGER_DB_PATH", "/tmp/test.db")
	t.Setenv("REVIEWLEDGER_LOG_LEVEL", "DEBUG")
	t.Setenv("REVIEWLEDGER_LOG_FORMAT", "json")
	t.Setenv("REVIEWLEDGER_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REVIEWLEDGER_GITHUB_REPO", "octo/widgets")
	t.Setenv("REVIEWLEDGER_UPDATE_RETRIES", "5")
	t.Setenv("REVIEWLEDGER_SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "octo/widgets", cfg.GitHubRepo)
	assert.True(t, cfg.HasCommitLookup())
	assert.Equal(t, 5, cfg.UpdateRetries)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "reviewledger.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 3, cfg.UpdateRetries)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.GitHubToken)
	assert.False(t, cfg.HasCommitLookup())
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_UnsupportedStore(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_STORE", "leveldb")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_STORE")
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_STORE", "postgres")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_POSTGRES_DSN")
}

func TestLoad_Postgres(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_STORE", "postgres")
	t.Setenv("REVIEWLEDGER_POSTGRES_DSN", "postgres://ledger@localhost/ledger?sslmode=disable")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://ledger@localhost/ledger?sslmode=disable", cfg.PostgresDSN)
}

func TestLoad_InvalidUpdateRetries(t *testing.T) {
	for _, val := range []string{"many", "-1"} {
		t.Run(val, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("REVIEWLEDGER_UPDATE_RETRIES", val)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "REVIEWLEDGER_UPDATE_RETRIES")
		})
	}
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_SHUTDOWN_TIMEOUT", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidGitHubRepo(t *testing.T) {
	for _, val := range []string{"widgets", "/widgets", "octo/", "a/b/c"} {
		t.Run(val, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("REVIEWLEDGER_GITHUB_REPO", val)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "REVIEWLEDGER_GITHUB_REPO")
		})
	}
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("REVIEWLEDGER_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("REVIEWLEDGER_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_SECRET_KEY")
}

func TestLoad_ConfigFile(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "reviewledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: 127.0.0.1:7070\nstore: memory\ngithub_repo: octo/widgets\n"), 0o600))
	t.Setenv("REVIEWLEDGER_CONFIG", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", cfg.ListenAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "octo/widgets", cfg.GitHubRepo)
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "reviewledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: 127.0.0.1:7070\n"), 0o600))
	t.Setenv("REVIEWLEDGER_CONFIG", path)
	t.Setenv("REVIEWLEDGER_LISTEN_ADDR", "127.0.0.1:6060")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6060", cfg.ListenAddr)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REVIEWLEDGER_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVIEWLEDGER_CONFIG")
}
