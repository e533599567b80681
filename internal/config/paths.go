package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvConfigDir overrides the platform configuration directory.
const EnvConfigDir = "RUNPACK_CONFIG_DIR"

// ConfigDir returns the directory searched for runpack.{toml,yaml,json}.
func ConfigDir() string {
	// Check environment variable first
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}

	// Use platform-specific defaults
	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", AppName)
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName)
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", AppName)
		}
	}

	// Fallback to temp directory
	return filepath.Join(os.TempDir(), AppName, "config")
}
