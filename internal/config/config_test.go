package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
session:
  namespace: "bot"
  poll_interval_ms: 20
  preempt: true
journal:
  path: "/tmp/journal.db"
control:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bot", cfg.Session.Namespace)
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval())
	assert.True(t, cfg.Session.Preempt)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.ControlAddr())
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Millisecond, cfg.SleepPoll())
	assert.Equal(t, "/ws", cfg.Control.Path)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "maple", cfg.Session.Namespace)
	assert.True(t, cfg.Journal.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "session: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTOMAPLE_SESSION_NAMESPACE", "auto")
	t.Setenv("AUTOMAPLE_SESSION_PREEMPT", "true")
	t.Setenv("AUTOMAPLE_CONTROL_PORT", "8181")
	t.Setenv("AUTOMAPLE_JOURNAL_PATH", "/var/lib/automaple/j.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Session.Namespace)
	assert.True(t, cfg.Session.Preempt)
	assert.Equal(t, 8181, cfg.Control.Port)
	assert.Equal(t, "/var/lib/automaple/j.db", cfg.Journal.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty namespace", func(c *Config) { c.Session.Namespace = "" }},
		{"zero poll", func(c *Config) { c.Session.PollIntervalMS = 0 }},
		{"zero sleep poll", func(c *Config) { c.Session.SleepPollMS = 0 }},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }},
		{"bad port", func(c *Config) { c.Control.Port = 70000 }},
		{"relative ws path", func(c *Config) { c.Control.Path = "ws" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_JournalDisabledNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Journal.Enabled = false
	cfg.Journal.Path = ""
	assert.NoError(t, cfg.Validate())
}
