// Package config loads automaple settings from YAML with environment
// overrides.
//
// Defaults are applied first, then the YAML file (if any), then
// AUTOMAPLE_* environment variables, and finally Validate:
//
//	session:
//	  namespace: "maple"
//	  poll_interval_ms: 50
//	  sleep_poll_ms: 10
//	  preempt: false
//	scripts:
//	  dir: "./scripts"
//	journal:
//	  enabled: true
//	  path: "./data/journal.db"
//	control:
//	  host: "127.0.0.1"
//	  port: 7878
//	  path: "/ws"
//	logging:
//	  level: "info"
//	  format: "text"
//	  output: "stderr"
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Journal JournalConfig `yaml:"journal"`
	Control ControlConfig `yaml:"control"`
	Logging LoggingConfig `yaml:"logging"`
}

// SessionConfig contains Session Controller settings.
type SessionConfig struct {
	// Namespace is the global table the native API is published under.
	Namespace string `yaml:"namespace"`

	// PollIntervalMS is the sleep between state polls while waiting for a
	// prior session to tear down.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// SleepPollMS bounds how long a native Sleep/Wait blocks between
	// cancellation checks.
	SleepPollMS int `yaml:"sleep_poll_ms"`

	// Preempt makes a new start cancel the running session instead of
	// waiting for it to finish.
	Preempt bool `yaml:"preempt"`
}

// ScriptsConfig locates scripts on disk.
type ScriptsConfig struct {
	Dir string `yaml:"dir"`
}

// JournalConfig contains SQLite session journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ControlConfig contains WebSocket control server settings.
type ControlConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from path. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Namespace:      "maple",
			PollIntervalMS: 50,
			SleepPollMS:    10,
		},
		Scripts: ScriptsConfig{
			Dir: "./scripts",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "./data/journal.db",
		},
		Control: ControlConfig{
			Host:           "127.0.0.1",
			Port:           7878,
			Path:           "/ws",
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies AUTOMAPLE_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOMAPLE_SESSION_NAMESPACE"); v != "" {
		cfg.Session.Namespace = v
	}
	if v := os.Getenv("AUTOMAPLE_SESSION_PREEMPT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.Preempt = b
		}
	}
	if v := os.Getenv("AUTOMAPLE_SCRIPTS_DIR"); v != "" {
		cfg.Scripts.Dir = v
	}
	if v := os.Getenv("AUTOMAPLE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("AUTOMAPLE_CONTROL_HOST"); v != "" {
		cfg.Control.Host = v
	}
	if v := os.Getenv("AUTOMAPLE_CONTROL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Control.Port = p
		}
	}
	if v := os.Getenv("AUTOMAPLE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.Namespace == "" {
		errs = append(errs, errors.New("session.namespace is required"))
	}
	if c.Session.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("session.poll_interval_ms must be positive"))
	}
	if c.Session.SleepPollMS <= 0 {
		errs = append(errs, errors.New("session.sleep_poll_ms must be positive"))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if c.Control.Port < 1 || c.Control.Port > 65535 {
		errs = append(errs, errors.New("control.port must be between 1 and 65535"))
	}
	if !strings.HasPrefix(c.Control.Path, "/") {
		errs = append(errs, errors.New("control.path must start with /"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return nil
}

// PollInterval returns the controller poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Session.PollIntervalMS) * time.Millisecond
}

// SleepPoll returns the native sleep poll interval as a Duration.
func (c *Config) SleepPoll() time.Duration {
	return time.Duration(c.Session.SleepPollMS) * time.Millisecond
}

// ControlAddr returns host:port for the control server.
func (c *Config) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Control.Host, c.Control.Port)
}
