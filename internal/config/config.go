package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.lawdesk/config.toml.
type Config struct {
	DefaultWorkspace string         `toml:"default_workspace"`
	Store            StoreConfig    `toml:"store"`
	Log              LogConfig      `toml:"log"`
	Server           ServerConfig   `toml:"server"`
	WhatsApp         WhatsAppConfig `toml:"whatsapp"`
}

// StoreConfig locates the backing store and bounds every call to it.
// An empty Path leaves the store unconfigured. Relative paths are resolved
// against the workspace directory.
type StoreConfig struct {
	Path    string        `toml:"path"`
	Timeout Duration      `toml:"timeout"`
	Retry   RetryConfig   `toml:"retry"`
	Breaker BreakerConfig `toml:"breaker"`
}

type RetryConfig struct {
	Attempts   int      `toml:"attempts"`
	BaseDelay  Duration `toml:"base_delay"`
	Multiplier float64  `toml:"multiplier"`
	MaxDelay   Duration `toml:"max_delay"`
}

type BreakerConfig struct {
	MaxFailures uint32   `toml:"max_failures"`
	OpenTimeout Duration `toml:"open_timeout"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// ServerConfig configures the HTTP listener for health and metrics.
// An empty MetricsAddr disables it.
type ServerConfig struct {
	MetricsAddr string `toml:"metrics_addr"`
}

// WhatsAppConfig enables the connector. Connecting a paired device is tried
// ReconnectAttempts times, ReconnectDelay apart.
type WhatsAppConfig struct {
	Enabled           bool     `toml:"enabled"`
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultWorkspace: "main",
		Store: StoreConfig{
			Path:    "lawdesk.db",
			Timeout: Duration{5 * time.Second},
			Retry: RetryConfig{
				Attempts:   3,
				BaseDelay:  Duration{100 * time.Millisecond},
				Multiplier: 2,
				MaxDelay:   Duration{2 * time.Second},
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: Duration{30 * time.Second},
			},
		},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{MetricsAddr: "127.0.0.1:9464"},
		WhatsApp: WhatsAppConfig{
			ReconnectAttempts: 5,
			ReconnectDelay:    Duration{5 * time.Second},
		},
	}
}

// Load reads config from the given path on top of Default, so keys missing
// from the file keep their default values. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Store.Timeout.Duration <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}
	if c.Store.Retry.Attempts < 1 {
		return fmt.Errorf("store.retry.attempts must be at least 1")
	}
	if c.Store.Retry.Multiplier < 1 {
		return fmt.Errorf("store.retry.multiplier must be at least 1")
	}
	if c.Store.Breaker.MaxFailures < 1 {
		return fmt.Errorf("store.breaker.max_failures must be at least 1")
	}
	if c.WhatsApp.ReconnectAttempts < 1 {
		return fmt.Errorf("whatsapp.reconnect_attempts must be at least 1")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// StorePath returns the absolute store path for a workspace directory, or
// "" when the store is not configured.
func (c *Config) StorePath(workspaceDir string) string {
	if c.Store.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(workspaceDir, c.Store.Path)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
