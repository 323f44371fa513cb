package registry

import (
	"strings"

	"github.com/orchitech/interlayfs/internal/option"
)

// Path is one composed destination path, bound to exactly one Tree.
type Path struct {
	// Path is the absolute, validated composed path.
	Path string
	Tree string
	// Type is the resolved required type: "d", "f", or "e".
	Type string
	// InitCmd is the opaque shell command for this path, possibly empty.
	InitCmd string
	// Glob records whether this path came from glob expansion, which
	// restricts its legal `init` values to skip/never.
	Glob bool
	Opts option.Set
}

// PathRegistry stores the ordered, shadow-free set of composed Paths.
type PathRegistry struct {
	paths []Path
	index map[string]int
}

// NewPathRegistry returns an empty registry.
func NewPathRegistry() *PathRegistry {
	return &PathRegistry{index: map[string]int{}}
}

// HasSubpath reports whether any stored path equals p or is a descendant of
// p. The Config Loader's shadow check uses ShadowedBy, not this.
func (r *PathRegistry) HasSubpath(p string) bool {
	withSlash := ensureTrailingSlash(p)

	for _, stored := range r.paths {
		if stored.Path == p || strings.HasPrefix(ensureTrailingSlash(stored.Path), withSlash) {
			return true
		}
	}

	return false
}

// ShadowedBy reports whether candidate is equal to, or a descendant of, any
// already-registered path: a later path Q must not be P or a descendant of P
// for any previously stored P. The prefix is the literal stored path plus
// "/", which makes "/" shadow-exempt ("//" prefixes nothing valid) — every
// composition registers "/" first and mounts the rest on top of it.
func (r *PathRegistry) ShadowedBy(candidate string) (string, bool) {
	candidateSlash := candidate + "/"

	for _, stored := range r.paths {
		if candidate == stored.Path || strings.HasPrefix(candidateSlash, stored.Path+"/") {
			return stored.Path, true
		}
	}

	return "", false
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}

	return p + "/"
}

// ParentInRegistry returns the nearest registered ancestor of p (the
// longest registered prefix strictly shorter than p, or "/" itself if
// registered and p != "/"), and whether one was found.
func (r *PathRegistry) ParentInRegistry(p string) (string, bool) {
	best := ""
	bestLen := -1

	for _, stored := range r.paths {
		if stored.Path == p {
			continue
		}

		storedSlash := ensureTrailingSlash(stored.Path)
		if strings.HasPrefix(ensureTrailingSlash(p), storedSlash) && len(stored.Path) > bestLen {
			best = stored.Path
			bestLen = len(stored.Path)
		}
	}

	if bestLen < 0 {
		return "", false
	}

	return best, true
}

// Defined reports whether p is already a registered path.
func (r *PathRegistry) Defined(p string) bool {
	_, ok := r.index[p]

	return ok
}

// Add appends a new Path. Callers must have already performed shadow
// detection via ShadowedBy.
func (r *PathRegistry) Add(p Path) {
	r.index[p.Path] = len(r.paths)
	r.paths = append(r.paths, p)
}

// All returns the registered paths in insertion (mount) order.
func (r *PathRegistry) All() []Path {
	out := make([]Path, len(r.paths))
	copy(out, r.paths)

	return out
}

// Get returns the registered Path at p, and whether it exists.
func (r *PathRegistry) Get(p string) (Path, bool) {
	idx, ok := r.index[p]
	if !ok {
		return Path{}, false
	}

	return r.paths[idx], true
}
