package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the paflow home directory.
	DefaultDirName = ".paflow"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// PostgresDirName is the subdirectory for case store data.
	PostgresDirName = "postgres"

	// CasesDirName is the subdirectory for per-case artifacts kept after a run.
	CasesDirName = "cases"
)

// Dir represents the paflow home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.paflow).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PostgresDataPath returns the host path for case store data persistence.
func (d *Dir) PostgresDataPath() string {
	return filepath.Join(d.path, PostgresDirName)
}

// CasesPath returns the directory holding retained per-case artifacts.
func (d *Dir) CasesPath() string {
	return filepath.Join(d.path, CasesDirName)
}

// CaseDir returns the artifact directory for a single case.
func (d *Dir) CaseDir(caseID string) string {
	return filepath.Join(d.CasesPath(), caseID)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.PostgresDataPath(), d.CasesPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
