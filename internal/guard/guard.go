// Package guard implements the path-confinement check that every filesystem
// tool consults before touching the disk. A Guard holds one canonicalized
// allowed root; a path is allowed only if it still sits inside that root
// after absolute-path and symlink resolution.
package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fsgate/internal/logging"
)

// Guard confines filesystem access to a single root directory.
// The root is canonicalized once at construction and never mutated,
// so a Guard is safe for concurrent use.
type Guard struct {
	root   string
	logger *logging.AppLogger
}

// New creates a Guard for the given root directory. The root is made
// absolute and symlink-resolved so later prefix comparisons hold even when
// the configured path goes through a symlink (e.g. /tmp on macOS).
//
// A root that does not exist (or is not a directory) is only warned about,
// not rejected. Callers wanting fail-fast behavior can stat the root
// themselves before calling New.
func New(root string, logger *logging.AppLogger) (*Guard, error) {
	if logger == nil {
		logger = logging.GetDefault()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, rerr := resolvePath(abs); rerr == nil {
		abs = resolved
	}
	abs = filepath.Clean(abs)

	if info, serr := os.Stat(abs); serr != nil || !info.IsDir() {
		logger.Warn("Allowed root directory does not exist", "root", abs)
	}

	return &Guard{root: abs, logger: logger}, nil
}

// Root returns the canonicalized allowed root.
func (g *Guard) Root() string {
	return g.root
}

// IsAllowed reports whether the candidate path may be touched. It never
// returns an error: any failure to resolve the path is a denial.
func (g *Guard) IsAllowed(candidate string) bool {
	resolved, err := resolvePath(candidate)
	if err != nil {
		g.logger.Debug("Path resolution failed, denying", "path", candidate, "error", err)
		return false
	}

	// The root itself is always accessible.
	if resolved == g.root {
		return true
	}

	// Prefix match on a segment boundary so /allowed/dir does not
	// accidentally admit /allowed/dir_extra.
	if !strings.HasPrefix(resolved, g.root+string(os.PathSeparator)) {
		return false
	}

	// Re-check for residual traversal segments. Resolution above already
	// eliminates these in practice, but Rel can fail or surprise across
	// filesystem roots, so the check stands on its own.
	rel, err := filepath.Rel(g.root, resolved)
	if err != nil {
		g.logger.Warn("Could not determine relative path", "path", resolved, "root", g.root)
		return false
	}
	for _, segment := range strings.Split(rel, string(os.PathSeparator)) {
		if segment == ".." {
			g.logger.Warn("Path traversal attempt detected", "path", candidate, "resolved", resolved)
			return false
		}
	}

	return true
}

// maxLinkDepth bounds symlink chains during resolution, mirroring the
// kernel's ELOOP limit.
const maxLinkDepth = 40

// resolvePath converts a path to its absolute, symlink-free form. Unlike
// filepath.EvalSymlinks it tolerates a nonexistent suffix: the nearest
// existing ancestor is resolved and the missing components are rejoined,
// matching realpath semantics. Writes to not-yet-created files depend on
// this.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return resolveAbs(abs, 0)
}

func resolveAbs(abs string, depth int) (string, error) {
	if depth > maxLinkDepth {
		return "", fmt.Errorf("too many levels of symbolic links: %s", abs)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return filepath.Clean(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir := abs
	var missing []string
	for {
		// EvalSymlinks reports a dangling symlink as not-existing too.
		// The link must still be followed to its target; rejoining its
		// name literally would place the path under the wrong parent
		// and the kernel would follow the link on open anyway.
		if info, lerr := os.Lstat(dir); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			target, terr := os.Readlink(dir)
			if terr != nil {
				return "", terr
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(dir), target)
			}
			parts := append([]string{target}, missing...)
			return resolveAbs(filepath.Join(parts...), depth+1)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Walked all the way to the filesystem root.
			return "", err
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent

		resolved, rerr := filepath.EvalSymlinks(dir)
		if rerr == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Clean(filepath.Join(parts...)), nil
		}
		if !os.IsNotExist(rerr) {
			return "", rerr
		}
	}
}
