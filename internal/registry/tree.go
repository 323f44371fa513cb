// Package registry implements the Tree Registry and Path Registry: the two
// session-local, insertion-ordered stores the Config Loader populates and
// that the Planner/Runner/Executor subsequently treat as read-only.
package registry

import (
	"fmt"
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/option"
)

// Tree is a named source directory with its own Option Set.
type Tree struct {
	Name string
	Root string
	Opts option.Set
}

// TreeRegistry stores named Trees, one per session.
type TreeRegistry struct {
	byName map[string]*Tree
	order  []string
}

// NewTreeRegistry returns an empty registry.
func NewTreeRegistry() *TreeRegistry {
	return &TreeRegistry{byName: map[string]*Tree{}}
}

// Add registers a new Tree. name must be non-empty and unique in the
// session; rootDir must resolve, after symlink resolution, to an existing
// directory on fsys.
func (r *TreeRegistry) Add(fsys afero.Fs, name, rootDir string, opts option.Set) (*Tree, error) {
	if name == "" {
		return nil, fmt.Errorf("registry: tree name must not be empty")
	}

	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("registry: duplicate tree %q", name)
	}

	resolved, err := resolveTreeRoot(fsys, rootDir)
	if err != nil {
		return nil, fmt.Errorf("registry: invalid root for tree %q: %w", name, err)
	}

	t := &Tree{Name: name, Root: resolved, Opts: opts}
	r.byName[name] = t
	r.order = append(r.order, name)

	return t, nil
}

// resolveTreeRoot resolves rootDir symlinks (guarding against an escape via
// a symlink planted mid-path) and confirms the result is an existing
// directory.
func resolveTreeRoot(fsys afero.Fs, rootDir string) (string, error) {
	resolved := rootDir

	if _, ok := fsys.(*afero.OsFs); ok {
		r, err := securejoin.SecureJoin("/", rootDir)
		if err != nil {
			return "", err
		}

		resolved = r
	}

	info, err := fsys.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("root %q does not exist", rootDir)
		}

		return "", err
	}

	if !info.IsDir() {
		return "", fmt.Errorf("root %q is not a directory", rootDir)
	}

	return resolved, nil
}

// Defined reports whether name is a registered tree.
func (r *TreeRegistry) Defined(name string) bool {
	_, ok := r.byName[name]

	return ok
}

// Get returns the named Tree, or nil if undefined.
func (r *TreeRegistry) Get(name string) *Tree {
	return r.byName[name]
}

// Names returns tree names in registration order.
func (r *TreeRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}
