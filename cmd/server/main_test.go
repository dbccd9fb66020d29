package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/skywriter/internal/server"
	"github.com/openmined/skywriter/internal/server/store"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
}

func parsedRoot(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SKYWRITER_HTTP_ADDR", ":8080")
	t.Setenv("SKYWRITER_HTTP_CERT_FILE", "test-cert.pem")
	t.Setenv("SKYWRITER_HTTP_KEY_FILE", "test-key.pem")
	t.Setenv("SKYWRITER_HTTP_RATE_LIMIT", "10-M")

	t.Setenv("SKYWRITER_STORAGE_BACKEND", "s3")
	t.Setenv("SKYWRITER_STORAGE_S3_BUCKET", "test-bucket")
	t.Setenv("SKYWRITER_STORAGE_S3_REGION", "test-region")
	t.Setenv("SKYWRITER_STORAGE_S3_ENDPOINT", "http://test-endpoint")
	t.Setenv("SKYWRITER_STORAGE_S3_ACCESS_KEY", "test-access-key")
	t.Setenv("SKYWRITER_STORAGE_S3_SECRET_KEY", "test-secret-key")

	t.Setenv("SKYWRITER_AUTH_ENABLED", "true")
	t.Setenv("SKYWRITER_AUTH_SECRET", "env-shared-secret-01234")
	t.Setenv("SKYWRITER_LOG_LEVEL", "debug")

	cfg, err := loadConfig(parsedRoot(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.Equal(t, "10-M", cfg.HTTP.RateLimit)
	assert.Equal(t, store.BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "test-bucket", cfg.Storage.S3.Bucket)
	assert.Equal(t, "test-region", cfg.Storage.S3.Region)
	assert.Equal(t, "http://test-endpoint", cfg.Storage.S3.Endpoint)
	assert.Equal(t, "test-access-key", cfg.Storage.S3.AccessKey)
	assert.Equal(t, "test-secret-key", cfg.Storage.S3.SecretKey)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "env-shared-secret-01234", cfg.Auth.Secret)
	assert.Equal(t, "debug", cfg.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "warn"

[http]
addr = "0.0.0.0:9000"

[storage]
backend = "fs"
root = "/srv/skywriter"

[auth]
enabled = false
`), 0o644))

	cfg, err := loadConfig(parsedRoot(t, "--config", path, "--bind", "127.0.0.1:7000"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
	assert.Equal(t, server.DefaultRateLimit, cfg.HTTP.RateLimit)
	assert.Equal(t, store.BackendFS, cfg.Storage.Backend)
	assert.Equal(t, "/srv/skywriter", cfg.Storage.Root)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := loadConfig(parsedRoot(t, "--root", t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.True(t, cfg.Auth.Enabled)

	// auth is on by default, so a secret is required
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(parsedRoot(t, "--config", filepath.Join(t.TempDir(), "nope.toml")))
	assert.Error(t, err)
}
