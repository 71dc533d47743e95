// Package fsops implements the four filesystem operations exposed as MCP
// tools: read, write, list, and glob search. Every operation consults the
// path guard before touching the disk and reports failures as values, never
// as panics or propagated faults.
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"fsgate/internal/guard"
	"fsgate/internal/logging"
	"fsgate/pkg/fileops"
)

// Ops performs guarded filesystem operations. Stateless across calls; the
// only shared data is the read-only guard, so concurrent use needs no
// locking.
type Ops struct {
	guard  *guard.Guard
	logger *logging.AppLogger
}

// New creates an Ops bound to the given guard.
func New(g *guard.Guard, logger *logging.AppLogger) *Ops {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Ops{guard: g, logger: logger}
}

// ReadFile reads the file at filePath as UTF-8 text.
func (o *Ops) ReadFile(filePath string) (string, *Error) {
	if !o.guard.IsAllowed(filePath) {
		return "", newError(KindAccessDenied,
			"Error: Access denied. Reading from '%s' is not allowed or outside the project directory.", filePath)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", newError(KindGeneric, "Error reading file '%s': %v", filePath, err)
	}

	data, err := os.ReadFile(absPath)
	switch {
	case os.IsNotExist(err):
		return "", newError(KindNotFound, "Error: File not found at '%s'.", filePath)
	case os.IsPermission(err):
		return "", newError(KindPermissionDenied,
			"Error: Permission denied when trying to read '%s'.", filePath)
	case err != nil:
		return "", newError(KindGeneric, "Error reading file '%s': %v", filePath, err)
	}

	if !utf8.Valid(data) {
		return "", newError(KindGeneric,
			"Error reading file '%s': content is not valid UTF-8 text", filePath)
	}

	return string(data), nil
}

// WriteFile writes content to filePath, overwriting any existing file and
// creating intermediate directories as needed. The parent directory is
// guard-checked separately from the leaf: for a not-yet-existing file the
// parent is the trusted join point, and a symlink swapped in under the leaf
// must not let directory creation escape the root.
func (o *Ops) WriteFile(filePath, content string) (string, *Error) {
	if !o.guard.IsAllowed(filePath) {
		return "", newError(KindAccessDenied,
			"Error: Access denied. Writing to '%s' is not allowed or outside the project directory.", filePath)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", newError(KindGeneric, "Error writing to file '%s': %v", filePath, err)
	}

	parentDir := filepath.Dir(absPath)
	if !o.guard.IsAllowed(parentDir) {
		return "", newError(KindAccessDenied,
			"Error: Cannot create directory '%s' as it is outside the allowed project directory.", parentDir)
	}

	if err := fileops.EnsureDirectoryExists(parentDir); err != nil {
		if os.IsPermission(err) {
			return "", newError(KindPermissionDenied,
				"Error: Permission denied when trying to write to '%s' or create its parent directory.", filePath)
		}
		return "", newError(KindGeneric, "Error writing to file '%s': %v", filePath, err)
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		if os.IsPermission(err) {
			return "", newError(KindPermissionDenied,
				"Error: Permission denied when trying to write to '%s' or create its parent directory.", filePath)
		}
		return "", newError(KindGeneric, "Error writing to file '%s': %v", filePath, err)
	}

	return fmt.Sprintf("Successfully wrote to file '%s'.", filePath), nil
}

// ListDirectory returns the immediate child names of dirPath. Order is
// filesystem-dependent; callers must not assume sorting.
func (o *Ops) ListDirectory(dirPath string) ([]string, *Error) {
	if !o.guard.IsAllowed(dirPath) {
		return nil, newError(KindAccessDenied,
			"Error: Access denied. Listing directory '%s' is not allowed or outside the project directory.", dirPath)
	}

	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, newError(KindGeneric, "Error listing directory '%s': %v", dirPath, err)
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil, newError(KindNotFound, "Error: Directory not found at '%s'.", dirPath)
	}
	if err != nil {
		if os.IsPermission(err) {
			return nil, newError(KindPermissionDenied,
				"Error: Permission denied when trying to list directory '%s'.", dirPath)
		}
		return nil, newError(KindGeneric, "Error listing directory '%s': %v", dirPath, err)
	}
	if !info.IsDir() {
		return nil, newError(KindNotADirectory, "Error: The path '%s' is not a directory.", dirPath)
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, newError(KindPermissionDenied,
				"Error: Permission denied when trying to list directory '%s'.", dirPath)
		}
		return nil, newError(KindGeneric, "Error listing directory '%s': %v", dirPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// FindByPattern expands a glob pattern under baseDir and returns matching
// paths relative to the allowed root, "./"-prefixed. With recursive set, a
// "**" segment is inserted so the pattern matches at any depth. Matches that
// resolve outside the root (symlinked entries) are silently dropped.
func (o *Ops) FindByPattern(baseDir, pattern string, recursive bool) ([]string, *Error) {
	if !o.guard.IsAllowed(baseDir) {
		return nil, newError(KindAccessDenied,
			"Error: Access denied. Searching in '%s' is not allowed or outside the project directory.", baseDir)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, newError(KindGeneric,
			"Error searching for pattern '%s' in '%s': %v", pattern, baseDir, err)
	}

	info, err := os.Stat(absBase)
	if os.IsNotExist(err) {
		return nil, newError(KindNotFound, "Error: Directory not found at '%s'.", baseDir)
	}
	if err != nil {
		if os.IsPermission(err) {
			return nil, newError(KindPermissionDenied,
				"Error: Permission denied when trying to search in '%s'.", baseDir)
		}
		return nil, newError(KindGeneric,
			"Error searching for pattern '%s' in '%s': %v", pattern, baseDir, err)
	}
	if !info.IsDir() {
		return nil, newError(KindNotADirectory, "Error: The path '%s' is not a directory.", baseDir)
	}

	searchPattern := filepath.Join(absBase, pattern)
	if recursive {
		searchPattern = filepath.Join(absBase, "**", pattern)
	}

	// FilepathGlob swallows IO errors by default; an unreadable directory
	// must surface as a permission failure, not a truncated result.
	matches, err := doublestar.FilepathGlob(searchPattern, doublestar.WithFailOnIOErrors())
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, newError(KindPermissionDenied,
				"Error: Permission denied when trying to search in '%s'.", baseDir)
		}
		return nil, newError(KindGeneric,
			"Error searching for pattern '%s' in '%s': %v", pattern, baseDir, err)
	}

	results := make([]string, 0, len(matches))
	for _, match := range matches {
		// Re-check every match: a symlinked entry can point anywhere.
		if !o.guard.IsAllowed(match) {
			o.logger.Debug("Dropping match outside allowed root", "match", match)
			continue
		}

		rel, rerr := filepath.Rel(o.guard.Root(), match)
		if rerr != nil {
			o.logger.Warn("Could not make match relative to root, returning absolute",
				"match", match, "error", rerr)
			results = append(results, match)
			continue
		}
		results = append(results, "."+string(os.PathSeparator)+rel)
	}

	return results, nil
}
