package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/lawdesk/internal/config"
)

func TestPaths(t *testing.T) {
	base := t.TempDir()
	t.Setenv("LAWDESK_HOME", base)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dir", Dir("main"), filepath.Join(base, "workspaces", "main")},
		{"socket", SocketPath("main"), filepath.Join(base, "workspaces", "main", "daemon.sock")},
		{"connector", ConnectorDBPath("main"), filepath.Join(base, "workspaces", "main", "connector.db")},
		{"log", LogPath("main"), filepath.Join(base, "workspaces", "main", "logs", "lawdeskd.log")},
		{"config", ConfigPath(), filepath.Join(base, "config.toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBaseDirDefault(t *testing.T) {
	t.Setenv("LAWDESK_HOME", "")
	home, _ := os.UserHomeDir()
	if got := BaseDir(); got != filepath.Join(home, ".lawdesk") {
		t.Errorf("BaseDir() = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("LAWDESK_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("LAWDESK_HOME", t.TempDir())

	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q", got)
	}
	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}

	cfg := config.Default()
	cfg.DefaultWorkspace = "office"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "office" {
		t.Errorf("Resolve() = %q, want office from config", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "firm123", false},
		{"valid with hyphen", "my-firm", false},
		{"valid with underscore", "my_firm", false},
		{"valid max length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my firm", true},
		{"dot", "my.firm", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"slash", "my/firm", true},
		{"leading hyphen reads as a flag", "-main", true},
		{"leading underscore", "_main", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.input, err)
			}
		})
	}
}
