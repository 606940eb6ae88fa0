package filesystem

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := homedir.Dir(); err == nil {
		return home
	}
	return "."
}

// AppDir returns ~/.aish joined with parts.
func AppDir(parts ...string) string {
	return filepath.Join(append([]string{UserHomeDir(), ".aish"}, parts...)...)
}

// ExpandPath resolves "~" prefixes and cleans the result. Relative paths without
// "~" are kept relative.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(expanded)
}
