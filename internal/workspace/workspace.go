// Package workspace confines tool file access to a single root directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace resolves model-supplied paths against a root directory.
type Workspace struct {
	root string
}

// New creates a Workspace rooted at dir. The root is made absolute and
// symlinks in it are resolved once.
func New(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve returns the absolute path for p, which may be relative to the root
// or absolute. Paths that leave the root, directly or through a symlink, are
// rejected.
func (w *Workspace) Resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\x00") {
		return "", fmt.Errorf("null byte in path")
	}

	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, abs)
	}
	abs = filepath.Clean(abs)

	// Resolve the longest existing prefix so that new files under a
	// symlinked directory are still checked against the real location.
	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", err
	}

	if !within(resolved, w.root) {
		return "", fmt.Errorf("path '%s' escapes the workspace", p)
	}
	return resolved, nil
}

// Rel returns p relative to the root, or p unchanged if that is not possible.
func (w *Workspace) Rel(p string) string {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}

func resolveExisting(abs string) (string, error) {
	var missing []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

func within(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
