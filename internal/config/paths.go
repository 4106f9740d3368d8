// Package config resolves where devtask keeps its data and which task file it reads.
package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

const (
	// EnvHome overrides the data directory.
	EnvHome = "DEVTASK_HOME"
	// EnvDB overrides the full path of the history database.
	EnvDB = "DEVTASK_DB"
	// EnvFile points at a task file and skips discovery.
	EnvFile = "DEVTASK_FILE"
)

// DataDir returns the directory used to store devtask data.
func DataDir() (string, error) {
	if d := os.Getenv(EnvHome); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "resolve home directory")
	}
	// Use a dot-directory in the user's home on all platforms
	return filepath.Join(home, ".devtask"), nil
}

// EnsureDataDir returns DataDir after creating it when missing.
func EnsureDataDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", eris.Wrapf(err, "create data dir %s", d)
	}
	return d, nil
}

// DBPath returns the full path to the SQLite history database.
func DBPath() (string, error) {
	if p := os.Getenv(EnvDB); p != "" {
		return p, nil
	}
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "devtask.db"), nil
}

// TaskFile returns the task file named by DEVTASK_FILE, or "" when unset.
func TaskFile() string {
	return os.Getenv(EnvFile)
}
