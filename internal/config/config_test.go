package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	opts, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, 72*time.Hour, opts.RecentWindow.Duration)
	assert.Equal(t, 30*24*time.Hour, opts.Retention.Duration)
	assert.Equal(t, time.Hour, opts.PurgeInterval.Duration)
	assert.Equal(t, 20, opts.UpsertLimit)
	assert.Equal(t, "info", opts.LogLevel)
}

func TestParseArgs_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_address": ":9000",
		"database_dsn": "postgres://file",
		"recent_window": "48h",
		"upsert_limit": 5
	}`), 0o600))

	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	opts, err := ParseArgs([]string{"-c", path, "-a", ":7000"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", opts.Port, "file overrides flag")
	assert.Equal(t, "postgres://env", opts.DatabaseDSN, "env overrides file")
	assert.Equal(t, "localhost:6379", opts.RedisAddr)
	assert.Equal(t, 48*time.Hour, opts.RecentWindow.Duration)
	assert.Equal(t, 5, opts.UpsertLimit)
}

func TestParseArgs_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"recent_window": 5}`), 0o600))

	_, err := ParseArgs([]string{"-config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestParseArgs_BadFlag(t *testing.T) {
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	_, err := ParseArgs([]string{"-window", "soon"})
	require.Error(t, err)
}

func TestParseArgs_TLS(t *testing.T) {
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("TLS_KEY", "env.key")

	opts, err := ParseArgs([]string{"-tls-cert", "certs/server.crt", "-tls-key", "flag.key"})
	require.NoError(t, err)
	assert.Equal(t, "certs/server.crt", opts.TLSCert)
	assert.Equal(t, "env.key", opts.TLSKey)
}
