package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultWorkspace = "work"
	cfg.Store.Timeout = Duration{750 * time.Millisecond}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultWorkspace != "work" {
		t.Errorf("DefaultWorkspace = %q, want %q", loaded.DefaultWorkspace, "work")
	}
	if loaded.Store.Timeout.Duration != 750*time.Millisecond {
		t.Errorf("Store.Timeout = %v, want 750ms", loaded.Store.Timeout)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_workspace = "office"

[store]
path = "/var/lib/lawdesk/store.db"
timeout = "2s"

[store.retry]
attempts = 5

[store.breaker]
open_timeout = "1m"

[log]
level = "debug"

[whatsapp]
enabled = true
reconnect_delay = "10s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := Default()

	tests := []struct {
		name      string
		got, want any
	}{
		{"workspace", cfg.DefaultWorkspace, "office"},
		{"path", cfg.Store.Path, "/var/lib/lawdesk/store.db"},
		{"timeout", cfg.Store.Timeout.Duration, 2 * time.Second},
		{"attempts", cfg.Store.Retry.Attempts, 5},
		{"base delay default", cfg.Store.Retry.BaseDelay, def.Store.Retry.BaseDelay},
		{"multiplier default", cfg.Store.Retry.Multiplier, def.Store.Retry.Multiplier},
		{"max failures default", cfg.Store.Breaker.MaxFailures, def.Store.Breaker.MaxFailures},
		{"open timeout", cfg.Store.Breaker.OpenTimeout.Duration, time.Minute},
		{"level", cfg.Log.Level, "debug"},
		{"metrics default", cfg.Server.MetricsAddr, def.Server.MetricsAddr},
		{"whatsapp", cfg.WhatsApp.Enabled, true},
		{"reconnect delay", cfg.WhatsApp.ReconnectDelay.Duration, 10 * time.Second},
		{"reconnect attempts default", cfg.WhatsApp.ReconnectAttempts, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", "[store]\ntimeout = \"soon\"\n"},
		{"zero attempts", "[store.retry]\nattempts = 0\n"},
		{"low multiplier", "[store.retry]\nmultiplier = 0.5\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"zero reconnect attempts", "[whatsapp]\nreconnect_attempts = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultWorkspace != Default().DefaultWorkspace {
		t.Errorf("DefaultWorkspace = %q", cfg.DefaultWorkspace)
	}
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	if got := cfg.StorePath("/ws"); got != filepath.Join("/ws", "lawdesk.db") {
		t.Errorf("relative StorePath = %q", got)
	}
	cfg.Store.Path = "/abs/db.sqlite"
	if got := cfg.StorePath("/ws"); got != "/abs/db.sqlite" {
		t.Errorf("absolute StorePath = %q", got)
	}
	cfg.Store.Path = ""
	if got := cfg.StorePath("/ws"); got != "" {
		t.Errorf("unconfigured StorePath = %q, want empty", got)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
