// Package fileops provides small, reusable filesystem helpers shared by the
// configuration layer and the guarded tool operations. Path confinement
// itself lives elsewhere; these helpers deliberately perform no access
// control.
package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a path that starts with "~/" to the user's home
// directory.
//
// Parameters:
//   - path: The path to expand, which may start with "~/"
//
// Returns:
//   - string: The expanded path, or the original path if it doesn't start with "~/"
//
// Usage example:
//
//	expanded := fileops.ExpandPath("~/projects/sandbox")
//	// Returns something like "/home/user/projects/sandbox"
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirectoryExists creates the directory (and any missing parents) if
// it does not already exist. Existing directories are not an error; the
// operation is idempotent.
//
// Parameters:
//   - dirPath: The directory path to create
//
// Returns:
//   - error: Creation errors, including permission failures
func EnsureDirectoryExists(dirPath string) error {
	if strings.TrimSpace(dirPath) == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	return os.MkdirAll(dirPath, 0755)
}
