package config

import (
	"os"
	"path/filepath"
)

// Discover walks up from start looking for a directory containing DirName and
// returns that project directory. The walk stops at the filesystem root and
// does not go above the user's home directory. An empty start means the
// current directory.
func Discover(start string) (string, bool) {
	if start == "" {
		var err error
		if start, err = os.Getwd(); err != nil {
			return "", false
		}
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	home, _ := os.UserHomeDir()

	for {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
