package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "CDT_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory holding the user's cdt configuration.
//
// Resolution order:
//  1. $CDT_HOME environment variable
//  2. <user config dir>/cdt
//  3. Current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cdt")
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}

// Resolve picks the configuration for a run. An explicit path must load;
// otherwise the working directory is searched, then GetHome, and finally
// the defaults apply.
func Resolve(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	for _, dir := range []string{".", GetHome()} {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return LoadFromDir(dir)
			}
		}
	}
	return Default(), nil
}
