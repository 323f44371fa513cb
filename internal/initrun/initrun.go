// Package initrun implements the Initializer Runner: for each Path absent
// from its source tree (or carrying init=always), it invokes the path's
// initcmd as an opaque shell command under a well-defined ILFS_* environment,
// or — when initcmd names one of the built-in actions directly — runs that
// action in-process instead of spawning a shell.
package initrun

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/containerd/continuity/fs"
	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/debuglog"
	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/pathutil"
	"github.com/orchitech/interlayfs/internal/registry"
	"github.com/orchitech/interlayfs/internal/template"
)

// Runner executes initializer commands. The mkdir and template_envsubst
// built-ins, and the existence/type checks, go through Fs; shell snippets,
// copy and the ownership adjusters act on the real OS filesystem, which has
// no in-memory-filesystem equivalent for them.
type Runner struct {
	Fs     afero.Fs
	Lookup template.Lookup
	Log    *debuglog.Logger
}

// Op identifies why the runner is invoking initializers: a dedicated `-i`
// init-only pass, versus the implicit init-if-missing pass before mounting.
type Op string

const (
	OpInit  Op = "init"
	OpMount Op = "mount"
)

// Run invokes initializers over every path in order: a path with
// init=always, or any path absent from its source tree, must run its
// initcmd (having first confirmed init is not never/skip, which demand
// pre-existence).
func (r *Runner) Run(ctx context.Context, op Op, trees *registry.TreeRegistry, layers option.Layers, paths *registry.PathRegistry) error {
	for _, p := range paths.All() {
		if err := r.runOne(ctx, op, trees, layers, p); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runOne(ctx context.Context, op Op, trees *registry.TreeRegistry, layers option.Layers, p registry.Path) error {
	tree := trees.Get(p.Tree)
	if tree == nil {
		return ilfserr.Internalf(p.Path, "unknown tree %q", p.Tree)
	}

	resolvedInit := layers.Resolve(option.Init, tree.Opts, p.Opts)

	srcPath := filepath.Join(tree.Root, p.Path)

	_, statErr := r.Fs.Stat(srcPath)
	exists := statErr == nil

	needsInit := resolvedInit == "always" || !exists
	if !needsInit {
		return nil
	}

	if resolvedInit == "never" || resolvedInit == "skip" {
		return ilfserr.Newf(ilfserr.KindInitRequiredMissing, p.Path, "path is missing but init=%s forbids creation", resolvedInit)
	}

	if strings.TrimSpace(p.InitCmd) == "" {
		return ilfserr.Newf(ilfserr.KindInitBlankCommand, p.Path, "path requires initialization but has no initcmd")
	}

	resolvedType := layers.Resolve(option.Type, tree.Opts, p.Opts)
	resolvedRO := layers.Resolve(option.RO, tree.Opts, p.Opts)

	env := r.buildEnv(op, tree, p, resolvedRO, resolvedInit, resolvedType)

	if r.Log != nil {
		r.Log.Bulletf("init %s (%s): %s", p.Path, resolvedInit, p.InitCmd)
	}

	if err := r.invoke(ctx, tree, p, env); err != nil {
		return ilfserr.New(ilfserr.KindInitFailed, p.Path, err)
	}

	finalType, err := pathutil.OSPathType(r.Fs, srcPath)
	if err != nil {
		return ilfserr.New(ilfserr.KindInitResultMismatch, p.Path, err)
	}

	if resolvedType != "e" && finalType != resolvedType {
		return ilfserr.Newf(ilfserr.KindInitResultMismatch, p.Path, "initcmd produced type %q, declared type is %q", finalType, resolvedType)
	}

	return nil
}

// env is the ILFS_* variable set supplied to an initcmd, both as a builtin
// action's typed input and as a subprocess's environment.
type env struct {
	op              Op
	tree            string
	treeRoot        string
	path            string
	relpath         string
	existingRelpath string
	initSubpath     string
	optRO           string
	optInit         string
	optType         string
}

func (r *Runner) buildEnv(op Op, tree *registry.Tree, p registry.Path, resolvedRO, resolvedInit, resolvedType string) env {
	relpath := strings.TrimPrefix(p.Path, "/")
	if relpath == "" {
		relpath = "."
	}

	existing, subpath := r.splitExistingPrefix(tree.Root, relpath)

	return env{
		op:              op,
		tree:            tree.Name,
		treeRoot:        tree.Root,
		path:            p.Path,
		relpath:         relpath,
		existingRelpath: existing,
		initSubpath:     subpath,
		optRO:           resolvedRO,
		optInit:         resolvedInit,
		optType:         resolvedType,
	}
}

// splitExistingPrefix finds the longest leading prefix of relpath that is
// an existing directory under root, and returns it alongside the remainder
// the initcmd is responsible for creating.
func (r *Runner) splitExistingPrefix(root, relpath string) (existing, remainder string) {
	if relpath == "." {
		return ".", ""
	}

	components := strings.Split(relpath, "/")

	cur := "."
	for i, c := range components {
		candidate := filepath.Join(cur, c)

		info, err := r.Fs.Stat(filepath.Join(root, candidate))
		if err != nil || !info.IsDir() {
			return cur, filepath.Join(components[i:]...)
		}

		cur = candidate
	}

	return cur, ""
}

func (e env) toOSEnviron() []string {
	return []string{
		"ILFS_OP=" + string(e.op),
		"ILFS_TREE=" + e.tree,
		"ILFS_TREE_ROOT=" + e.treeRoot,
		"ILFS_PATH=" + e.path,
		"ILFS_RELPATH=" + e.relpath,
		"ILFS_EXISTING_RELPATH=" + e.existingRelpath,
		"ILFS_INIT_SUBPATH=" + e.initSubpath,
		"ILFS_PATH_OPTS_RO=" + e.optRO,
		"ILFS_PATH_OPTS_INIT=" + e.optInit,
		"ILFS_PATH_OPTS_TYPE=" + e.optType,
	}
}

// invoke dispatches initcmd either to a built-in action or to a subshell.
func (r *Runner) invoke(ctx context.Context, tree *registry.Tree, p registry.Path, e env) error {
	name, arg, isBuiltin := parseBuiltin(p.InitCmd)
	if isBuiltin {
		return r.runBuiltin(name, arg, e)
	}

	return r.runShell(ctx, tree, e, p.InitCmd)
}

// parseBuiltin recognizes `name(arg)` or bare `name` invocations of the
// built-in action library; anything else is treated as a raw shell snippet.
func parseBuiltin(cmd string) (name, arg string, ok bool) {
	cmd = strings.TrimSpace(cmd)

	switch {
	case cmd == "mkdir":
		return "mkdir", "", true
	case cmd == "chown" || cmd == "chgrp":
		return cmd, "", true
	}

	if rest, found := strings.CutPrefix(cmd, "template_envsubst("); found {
		if inner, ok := strings.CutSuffix(rest, ")"); ok {
			return "template_envsubst", strings.Trim(inner, `"' `), true
		}
	}

	if rest, found := strings.CutPrefix(cmd, "copy("); found {
		if inner, ok := strings.CutSuffix(rest, ")"); ok {
			return "copy", strings.Trim(inner, `"' `), true
		}
	}

	return "", "", false
}

func (r *Runner) runShell(ctx context.Context, tree *registry.Tree, e env, cmd string) error {
	sh := exec.CommandContext(ctx, "/bin/sh", "-c", cmd, "init", e.relpath)
	sh.Dir = tree.Root
	sh.Env = append(os.Environ(), e.toOSEnviron()...)
	sh.Stdout = os.Stdout
	sh.Stderr = os.Stderr

	restore := setUmask022()
	defer restore()

	return sh.Run()
}

func (r *Runner) runBuiltin(name, arg string, e env) error {
	target := filepath.Join(e.treeRoot, e.relpath)

	switch name {
	case "mkdir":
		return r.biMkdir(target)
	case "template_envsubst":
		return r.biTemplateEnvsubst(arg, target)
	case "copy":
		return r.biCopy(arg, target)
	case "chown":
		return r.biOwnershipAdjust(target, os.Getenv("ILFS_INIT_CHOWN"), true)
	case "chgrp":
		return r.biOwnershipAdjust(target, os.Getenv("ILFS_INIT_CHGRP"), false)
	default:
		return fmt.Errorf("initrun: unknown built-in action %q", name)
	}
}

func (r *Runner) biMkdir(target string) error {
	restore := setUmask022()
	defer restore()

	return r.Fs.MkdirAll(target, 0o755)
}

func (r *Runner) biTemplateEnvsubst(tplPath, target string) error {
	raw, err := afero.ReadFile(r.Fs, tplPath)
	if err != nil {
		return err
	}

	out, err := template.Substitute(raw, r.Lookup)
	if err != nil {
		return err
	}

	return afero.WriteFile(r.Fs, target, out, 0o644)
}

func (r *Runner) biCopy(src, target string) error {
	if _, err := r.Fs.Stat(target); err == nil {
		return fmt.Errorf("initrun: copy destination %q already exists", target)
	}

	// continuity/fs.CopyDir operates on the real filesystem; it is used
	// here (rather than a hand-rolled filepath.Walk copier) because it
	// preserves permissions, xattrs, and symlinks the way moby's own
	// copy-up plumbing does.
	return fs.CopyDir(target, src)
}

func (r *Runner) biOwnershipAdjust(target, spec string, isUser bool) error {
	if spec == "" {
		return nil
	}

	var uid, gid int

	if isUser {
		u, err := user.Lookup(spec)
		if err != nil {
			return err
		}

		uid, _ = strconv.Atoi(u.Uid)
		gid, _ = strconv.Atoi(u.Gid)
	} else {
		g, err := user.LookupGroup(spec)
		if err != nil {
			return err
		}

		gid, _ = strconv.Atoi(g.Gid)

		info, err := os.Lstat(target)
		if err != nil {
			return err
		}

		uid = fileUID(info)
	}

	return os.Lchown(target, uid, gid)
}
