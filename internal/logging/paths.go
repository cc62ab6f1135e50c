package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// dataHomeEnv overrides the data home directory (spec §6: "data-home
// override" environment variable).
const dataHomeEnv = "GKG_DATA_HOME"

// DataHome returns the root data directory (~/.gkg by default, or the
// directory named by GKG_DATA_HOME).
func DataHome() string {
	if v := os.Getenv(dataHomeEnv); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".gkg")
	}
	return filepath.Join(home, ".gkg")
}

// DefaultLogDir returns the default log directory (<data-home>/logs/).
func DefaultLogDir() string {
	return filepath.Join(DataHome(), "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "gkgd.log")
}

// ManifestPath returns the path to the workspace registry manifest file.
func ManifestPath() string {
	return filepath.Join(DataHome(), "gkg_manifest.json")
}

// LockPath returns the path to the process-wide manifest lock file.
func LockPath() string {
	return filepath.Join(DataHome(), "gkg.lock")
}

// WorkspaceFoldersDir returns the root directory under which per-workspace
// per-project graph store files live.
func WorkspaceFoldersDir() string {
	return filepath.Join(DataHome(), "gkg_workspace_folders")
}

// FindLogFile locates the log file for viewing, preferring an explicit path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found; expected at: %s", path)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}

// EnsureDataHome creates the data home directory if it doesn't exist.
func EnsureDataHome() error {
	return os.MkdirAll(DataHome(), 0o755)
}
