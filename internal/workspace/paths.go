// Package workspace lays out the per-workspace directory tree under
// ~/.lawdesk. LAWDESK_HOME overrides the base directory.
package workspace

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.lawdesk, or $LAWDESK_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("LAWDESK_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lawdesk")
}

// Dir returns the workspace-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "workspaces", name)
}

// SocketPath returns the UDS socket path for a workspace.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// ConnectorDBPath returns the whatsmeow device store path.
func ConnectorDBPath(name string) string {
	return filepath.Join(Dir(name), "connector.db")
}

// LogDir returns the log directory for a workspace.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "lawdeskd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the workspace directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
