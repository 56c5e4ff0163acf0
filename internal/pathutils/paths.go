// Package pathutils resolves the OS-aware config/state/logs directories
// namefix persists into, and normalizes the user-facing paths (watch
// directories, ~-prefixed paths) those directories get mixed with.
package pathutils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	nferrors "namefix/internal/errors"
)

const appName = "namefix"

// ConfigDir resolves the directory config.json lives in: NAMEFIX_HOME, else
// XDG_CONFIG_HOME/namefix, else the platform default.
func ConfigDir() (string, error) {
	if home := os.Getenv("NAMEFIX_HOME"); home != "" {
		return home, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName), nil
	}
	return filepath.Join(home, ".config", appName), nil
}

// StateDir resolves the directory the journal (and trash staging area)
// live in. Same resolution order as ConfigDir, distinct env/subpath.
func StateDir() (string, error) {
	if home := os.Getenv("NAMEFIX_HOME"); home != "" {
		return home, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName), nil
	}
	return filepath.Join(home, ".local", "state", appName), nil
}

// LogsDir resolves the directory log output is written to.
func LogsDir() (string, error) {
	if home := os.Getenv("NAMEFIX_HOME"); home != "" {
		return filepath.Join(home, "logs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", appName), nil
	}
	return filepath.Join(home, ".local", "state", appName, "logs"), nil
}

// ExpandHome expands a leading "~" or "~/" to the current user's home
// directory. Paths without a leading ~ are returned unchanged.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Normalize expands ~, resolves the path to an absolute, cleaned form.
func Normalize(path string) (string, error) {
	expanded := ExpandHome(strings.TrimSpace(path))
	if expanded == "" {
		return "", nil
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", nferrors.NewFileError("cannot resolve path", path, nferrors.InvalidPath, err)
	}
	return filepath.Clean(abs), nil
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
