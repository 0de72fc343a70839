package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadekit/cascade/internal/config"
)

func configWithJournal(path string) *config.Config {
	cfg := config.Defaults()
	cfg.Journal.Path = path
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCLINoArgs(t *testing.T) {
	assert.Equal(t, 1, runCLI(nil))
}

func TestRunCLIUnknownCommand(t *testing.T) {
	assert.Equal(t, 1, runCLI([]string{"frobnicate"}))
}

func TestRunCLIHelp(t *testing.T) {
	assert.Equal(t, 0, runCLI([]string{"help"}))
}

func TestRunVersion(t *testing.T) {
	assert.Equal(t, 0, runCLI([]string{"version"}))
	assert.Equal(t, 0, runCLI([]string{"version", "--json"}))
}

func TestConfigCheckValid(t *testing.T) {
	path := writeConfig(t, `
service:
  name: test
  log_level: error
runtime:
  handler_timeout: 5s
`)
	assert.Equal(t, 0, runCLI([]string{"config", "check", "--config", path}))
}

func TestConfigCheckMissingFile(t *testing.T) {
	assert.Equal(t, 1, runCLI([]string{"config", "check", "--config", "/no/such/config.yaml"}))
}

func TestConfigShow(t *testing.T) {
	path := writeConfig(t, `
service:
  name: show-me
`)
	assert.Equal(t, 0, runCLI([]string{"config", "show", "--config", path}))
}

func TestJournalRequiresFileBackedPath(t *testing.T) {
	path := writeConfig(t, `
service:
  name: test
`)
	// In-memory journal cannot be inspected after the fact.
	assert.Equal(t, 1, runCLI([]string{"journal", "recent", "--config", path}))
}

func TestLockPathPlacement(t *testing.T) {
	cfg := configWithJournal("")
	assert.Contains(t, lockPath(cfg), os.TempDir())

	cfg = configWithJournal("/var/lib/cascade/journal.db")
	assert.Equal(t, "/var/lib/cascade/cascade.lock", lockPath(cfg))
}
