package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/openmined/skywriter/internal/client/config"
	"github.com/openmined/skywriter/internal/client/history"
	"github.com/openmined/skywriter/internal/reconcile"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// execute runs the CLI in process and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stripANSI(out.String()), err
}

// parsedRoot returns a root command with args parsed but not run.
func parsedRoot(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://sky.example.com
secret: yaml-secret-0123456789
sync_interval: 45s
workers: 8
tie_break: remote
mappings:
  files:
    - local: /tmp/notes.txt
      remote: notes.txt
  directories:
    - local: /tmp/docs
      remote: docs
      include: ["**/*.md"]
`), 0o644))

	cfg, err := loadConfig(parsedRoot(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "https://sky.example.com", cfg.ServerURL)
	assert.Equal(t, "yaml-secret-0123456789", cfg.Secret)
	assert.Equal(t, 45*time.Second, cfg.SyncInterval)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, reconcile.RemoteWins, cfg.TieBreak)
	assert.Equal(t, path, cfg.Path)
	require.Len(t, cfg.Mappings.Files, 1)
	assert.Equal(t, "notes.txt", cfg.Mappings.Files[0].Remote)
	require.Len(t, cfg.Mappings.Directories, 1)
	assert.Equal(t, []string{"**/*.md"}, cfg.Mappings.Directories[0].Include)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url    = "http://127.0.0.1:9000"
sync_interval = "30s"
probe_policy  = "best-effort"
ignore        = ["*.tmp"]

[[mappings.files]]
local  = "/home/me/notes.txt"
remote = "notes.txt"

[[mappings.directories]]
local   = "/home/me/docs"
remote  = "docs"
include = ["**/*.md"]
`), 0o644))

	cfg, err := loadConfig(parsedRoot(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, []string{"*.tmp"}, cfg.Ignore)
	assert.Len(t, cfg.Mappings.Files, 1)
	assert.Len(t, cfg.Mappings.Directories, 1)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://from-file:8000\nworkers: 2\n"), 0o644))

	t.Setenv("SKYWRITER_SECRET", "env-secret-0123456789")
	t.Setenv("SKYWRITER_WORKERS", "6")
	t.Setenv("SKYWRITER_SYNC_INTERVAL", "1m")

	cfg, err := loadConfig(parsedRoot(t, "--config", path, "--server", "http://from-flag:8000"))
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag:8000", cfg.ServerURL)
	assert.Equal(t, "env-secret-0123456789", cfg.Secret)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(parsedRoot(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.NoError(t, err)
}

func TestLoadConfigBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [unterminated"), 0o644))

	_, err := loadConfig(parsedRoot(t, "--config", path))
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	local := filepath.Join(dir, "docs")

	out, err := execute(t, "init", "--config", path, "--secret", "init-secret-0123456789",
		"--dir", local+"=docs", "--file", filepath.Join(dir, "n.txt")+"=n.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Skywriter initialized")
	assert.Contains(t, out, path)
	assert.NotContains(t, out, "init-secret-0123456789")

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "init-secret-0123456789", cfg.Secret)
	assert.Equal(t, "docs", cfg.Mappings.Directories[0].Remote)

	// a second init leaves the file alone
	out, err = execute(t, "init", "--config", path, "--secret", "other-secret-0123456789")
	require.NoError(t, err)
	assert.Contains(t, out, "already initialized")

	cfg, err = config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "init-secret-0123456789", cfg.Secret)
}

func TestInitCommand_BadMapping(t *testing.T) {
	_, err := execute(t, "init", "--config", filepath.Join(t.TempDir(), "c.yaml"), "--file", "no-separator")
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("history_path: "+dbPath+"\n"), 0o644))

	h, err := history.Open(dbPath)
	require.NoError(t, err)
	_, err = h.Record(&history.Pass{StartedAt: time.Now(), Pushed: 3, Bytes: 1024})
	require.NoError(t, err)
	_, err = h.Record(&history.Pass{
		StartedAt: time.Now(),
		Failed:    1,
		Failures:  []history.Failure{{Action: "pull", LocalPath: "/l/x", RemotePath: "x", Error: "sdk: not found"}},
	})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	out, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 3")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "sdk: not found")
}

func TestHistoryCommand_Empty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("history_path: "+filepath.Join(dir, "h.db")+"\n"), 0o644))

	out, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no passes recorded")
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://127.0.0.1:1\n"), 0o644))

	_, err := execute(t, "--config", path)
	assert.ErrorIs(t, err, config.ErrNoMappings)
}
