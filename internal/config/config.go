// Package config implements the Config Loader: reads the trees and paths
// text tables from byte streams, threads them through the Template
// Substitutor, tokenizes fields, expands globs, rejects shadowing, and
// populates the Tree Registry and Path Registry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/pathutil"
	"github.com/orchitech/interlayfs/internal/registry"
	"github.com/orchitech/interlayfs/internal/template"
)

// Session is the loaded, immutable-after-load result of reading a treefile
// and pathfile pair.
type Session struct {
	Trees   *registry.TreeRegistry
	Paths   *registry.PathRegistry
	Options option.Layers
}

// Loader reads the two config tables against a filesystem abstraction,
// supporting the `include OTHERFILE` directive as its own logical line.
type Loader struct {
	Fs     afero.Fs
	Lookup template.Lookup
}

// maxIncludeDepth bounds include recursion; the loop-detection check below
// catches cycles before this would ever matter, but it guards against
// pathological chains too.
const maxIncludeDepth = 32

// LoadTreefile reads and parses a treefile, populating reg. Any `include`
// directive is resolved relative to the including file's directory.
func (l *Loader) LoadTreefile(path string, reg *registry.TreeRegistry) error {
	lines, err := l.readAndInclude(path, map[string]bool{}, 0)
	if err != nil {
		return err
	}

	for _, ln := range lines {
		if isBlankOrComment(ln.text) {
			continue
		}

		if err := l.loadTreeLine(ln, reg); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) loadTreeLine(ln line, reg *registry.TreeRegistry) error {
	toks, _ := fields(ln.text, 3)
	if len(toks) < 2 {
		return ilfserr.Newf(ilfserr.KindUsage, ln.origin, "tree line missing root: %q", ln.text)
	}

	name := toks[0]

	root := toks[1]
	if root == "" {
		return ilfserr.Newf(ilfserr.KindInvalidTreeRoot, ln.origin, "missing root for tree %q", name)
	}

	optstr := ""
	if len(toks) > 2 {
		optstr = toks[2]
	}

	opts, err := option.Parse(optstr)
	if err != nil {
		return ilfserr.New(ilfserr.KindInvalidOptionValue, ln.origin, err)
	}

	if _, err := reg.Add(l.Fs, name, root, opts); err != nil {
		kind := ilfserr.KindInvalidTreeRoot
		if strings.Contains(err.Error(), "duplicate") {
			kind = ilfserr.KindDuplicateTree
		}

		return ilfserr.New(kind, ln.origin, err)
	}

	return nil
}

// LoadPathfile reads and parses a pathfile against an already-loaded tree
// registry, populating paths.
func (l *Loader) LoadPathfile(path string, trees *registry.TreeRegistry, layers option.Layers, paths *registry.PathRegistry) error {
	lines, err := l.readAndInclude(path, map[string]bool{}, 0)
	if err != nil {
		return err
	}

	for _, ln := range lines {
		if isBlankOrComment(ln.text) {
			continue
		}

		if err := l.loadPathLine(ln, trees, layers, paths); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) loadPathLine(ln line, trees *registry.TreeRegistry, layers option.Layers, paths *registry.PathRegistry) error {
	toks, initcmd := fields(ln.text, 3)
	if len(toks) < 2 {
		return ilfserr.Newf(ilfserr.KindUsage, ln.origin, "path line missing pathspec: %q", ln.text)
	}

	treeName := toks[0]
	pathspec := toks[1]

	tree := trees.Get(treeName)
	if tree == nil {
		return ilfserr.Newf(ilfserr.KindUnknownTree, ln.origin, "unknown tree %q", treeName)
	}

	optstr := ""
	if len(toks) > 2 {
		optstr = toks[2]
	}

	lineOpts, err := option.Parse(optstr)
	if err != nil {
		return ilfserr.New(ilfserr.KindInvalidOptionValue, ln.origin, err)
	}

	isGlob := pathutil.ContainsGlob(pathspec)

	if isGlob {
		if v, ok := lineOpts[option.Init]; ok && v != "skip" && v != "never" {
			return ilfserr.Newf(ilfserr.KindInitForbiddenOnGlob, ln.origin, "glob path %q cannot set init=%s", pathspec, v)
		}

		if _, ok := lineOpts[option.Init]; !ok {
			lineOpts[option.Init] = "skip"
		}
	}

	if strings.HasSuffix(pathspec, "/") {
		if v, ok := lineOpts[option.Type]; ok && v != "d" && v != "e" {
			return ilfserr.Newf(ilfserr.KindInvalidOptionValue, ln.origin, "trailing-slash path %q cannot set type=%s", pathspec, v)
		}

		lineOpts[option.Type] = "d"

		if pathspec != "/" {
			pathspec = strings.TrimSuffix(pathspec, "/")
		}
	}

	if !strings.HasPrefix(pathspec, "/") {
		pathspec = "/" + pathspec
	}

	if !pathutil.Validate(pathspec) {
		return ilfserr.Newf(ilfserr.KindPathInvalid, ln.origin, "invalid path %q", pathspec)
	}

	resolvedInit := layers.Resolve(option.Init, tree.Opts, lineOpts)

	expanded, err := l.expandPathspec(ln, tree, pathspec, isGlob, resolvedInit)
	if err != nil {
		return err
	}

	for _, p := range expanded {
		if !pathutil.Validate(p) {
			return ilfserr.Newf(ilfserr.KindPathInvalid, ln.origin, "invalid expanded path %q", p)
		}

		if shadowPath, shadowed := paths.ShadowedBy(p); shadowed {
			return ilfserr.Newf(ilfserr.KindPathShadow, ln.origin, "path %q is shadowed by already-registered %q", p, shadowPath)
		}

		resolvedType := layers.Resolve(option.Type, tree.Opts, lineOpts)

		if onDiskType, err := pathutil.OSPathType(l.Fs, filepath.Join(tree.Root, p)); err == nil {
			if resolvedType != "e" && onDiskType != resolvedType {
				return ilfserr.Newf(ilfserr.KindPathTypeMismatch, ln.origin, "path %q: on-disk type %q does not match declared type %q", p, onDiskType, resolvedType)
			}

			if resolvedType == "e" {
				resolvedType = onDiskType
			}
		}

		cmd := ""
		if !isGlob {
			cmd = initcmd
		}

		paths.Add(registry.Path{
			Path:    p,
			Tree:    treeName,
			Type:    resolvedType,
			InitCmd: cmd,
			Glob:    isGlob,
			Opts:    lineOpts,
		})
	}

	return nil
}

// expandPathspec performs glob expansion under the tree root, or the
// single-element expansion for a concrete path (subject to the
// existence/init exception).
func (l *Loader) expandPathspec(ln line, tree *registry.Tree, pathspec string, isGlob bool, resolvedInit string) ([]string, error) {
	if isGlob {
		matches, err := pathutil.ExpandGlob(l.Fs, tree.Root, strings.TrimPrefix(pathspec, "/"))
		if err != nil {
			return nil, ilfserr.New(ilfserr.KindPathInvalid, ln.origin, err)
		}

		out := make([]string, len(matches))
		for i, m := range matches {
			out[i] = "/" + m
		}

		return out, nil
	}

	_, statErr := l.Fs.Stat(filepath.Join(tree.Root, pathspec))
	exists := statErr == nil

	if !exists && resolvedInit != "missing" && resolvedInit != "always" && resolvedInit != "skip" {
		return nil, ilfserr.Newf(ilfserr.KindPathNoMatch, ln.origin, "path %q does not exist in tree %q and init=%s does not permit creation", pathspec, tree.Name, resolvedInit)
	}

	return []string{pathspec}, nil
}

// line is one logical config line tagged with its source location for
// error reporting.
type line struct {
	text   string
	origin string
}

// readAndInclude reads path, running it through the Template Substitutor,
// splitting it into logical lines, and inlining any `include OTHERFILE`
// directive (itself substituted independently) before returning. seen
// guards against include cycles.
func (l *Loader) readAndInclude(path string, seen map[string]bool, depth int) ([]line, error) {
	if depth > maxIncludeDepth {
		return nil, ilfserr.Newf(ilfserr.KindUsage, path, "include chain exceeds maximum depth")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ilfserr.New(ilfserr.KindUsage, path, err)
	}

	if seen[abs] {
		return nil, ilfserr.Newf(ilfserr.KindUsage, path, "cyclic include of %q", path)
	}

	seen = cloneSeen(seen)
	seen[abs] = true

	raw, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		return nil, ilfserr.New(ilfserr.KindUsage, path, err)
	}

	substituted, err := template.Substitute(raw, l.Lookup)
	if err != nil {
		return nil, templateErrToIlfsErr(path, err)
	}

	var out []line

	for i, text := range logicalLines(string(substituted)) {
		origin := fmt.Sprintf("%s:%d", path, i+1)

		if isBlankOrComment(text) {
			out = append(out, line{text: text, origin: origin})

			continue
		}

		if target, ok := strings.CutPrefix(strings.TrimSpace(text), "include "); ok {
			incPath := filepath.Join(filepath.Dir(path), strings.TrimSpace(target))

			incLines, err := l.readAndInclude(incPath, seen, depth+1)
			if err != nil {
				return nil, err
			}

			out = append(out, incLines...)

			continue
		}

		out = append(out, line{text: text, origin: origin})
	}

	return out, nil
}

func cloneSeen(seen map[string]bool) map[string]bool {
	out := make(map[string]bool, len(seen)+1)
	for k, v := range seen {
		out[k] = v
	}

	return out
}

func templateErrToIlfsErr(origin string, err error) error {
	if te, ok := err.(*template.Error); ok { //nolint:errorlint
		if te.Kind == template.ErrUndefined {
			return ilfserr.New(ilfserr.KindTemplateUndefined, origin, err)
		}

		return ilfserr.New(ilfserr.KindTemplateSyntax, origin, err)
	}

	return ilfserr.New(ilfserr.KindTemplateSyntax, origin, err)
}

// OSLookup builds a template.Lookup backed by os.LookupEnv.
func OSLookup() template.Lookup {
	return func(name string) (string, bool) { return os.LookupEnv(name) }
}
