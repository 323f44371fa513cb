package initrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/registry"
	"github.com/orchitech/interlayfs/internal/template"
)

func envLookup(vars map[string]string) template.Lookup {
	return func(name string) (string, bool) {
		v, ok := vars[name]

		return v, ok
	}
}

func TestRunner_SkipsExistingPath(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/app", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{Path: "/app", Tree: "base", Type: "d"})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunner_MissingWithSkipIsError(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{Path: "/app", Tree: "base", Type: "d", Opts: option.Set{option.Init: "skip"}})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err == nil {
		t.Fatal("expected init-required-missing error")
	}
}

func TestRunner_BlankInitCmdIsError(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{Path: "/app", Tree: "base", Type: "d", Opts: option.Set{option.Init: "missing"}})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err == nil {
		t.Fatal("expected init-blank-command error")
	}
}

func TestRunner_BuiltinMkdir(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{
		Path: "/app", Tree: "base", Type: "d",
		InitCmd: "mkdir",
		Opts:    option.Set{option.Init: "missing"},
	})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ok, _ := afero.DirExists(fsys, "/srv/base/app"); !ok {
		t.Error("expected /srv/base/app to be created by mkdir builtin")
	}
}

func TestRunner_BuiltinTemplateEnvsubst(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)
	_ = afero.WriteFile(fsys, "/tpl/app.conf.tpl", []byte("NAME1=${VALUE1}\nNAME2=${VALUE2}\n"), 0o644)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{
		Path: "/app.conf", Tree: "base", Type: "f",
		InitCmd: "template_envsubst(/tpl/app.conf.tpl)",
		Opts:    option.Set{option.Init: "missing", option.Type: "f"},
	})

	lookup := envLookup(map[string]string{"VALUE1": "foo", "VALUE2": "bar"})
	r := &Runner{Fs: fsys, Lookup: lookup}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	content, err := afero.ReadFile(fsys, "/srv/base/app.conf")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(content) != "NAME1=foo\nNAME2=bar\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRunner_AlwaysReinitializes(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/app", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{
		Path: "/app", Tree: "base", Type: "d",
		InitCmd: "mkdir",
		Opts:    option.Set{option.Init: "always"},
	})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	// init=always re-runs the initcmd even though /app already exists;
	// mkdir on an already-existing directory must be a harmless no-op.
	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunner_BuiltinCopy(t *testing.T) {
	t.Parallel()

	home := t.TempDir()

	srcDir := filepath.Join(home, "seed")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(srcDir, "file.txt"), []byte("seed content"), 0o644); err != nil {
		t.Fatal(err)
	}

	treeRoot := filepath.Join(home, "tree")
	if err := os.MkdirAll(treeRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	fsys := afero.NewOsFs()

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", treeRoot, option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{
		Path: "/data", Tree: "base", Type: "d",
		InitCmd: "copy(" + srcDir + ")",
		Opts:    option.Set{option.Init: "missing"},
	})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(treeRoot, "data", "file.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(content) != "seed content" {
		t.Errorf("content = %q", content)
	}
}

func TestRunner_BuiltinCopy_RefusesExistingDestination(t *testing.T) {
	t.Parallel()

	home := t.TempDir()

	srcDir := filepath.Join(home, "seed")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}

	treeRoot := filepath.Join(home, "tree")
	if err := os.MkdirAll(filepath.Join(treeRoot, "data"), 0o755); err != nil {
		t.Fatal(err)
	}

	fsys := afero.NewOsFs()

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", treeRoot, option.Set{})

	paths := registry.NewPathRegistry()
	paths.Add(registry.Path{
		Path: "/data", Tree: "base", Type: "d",
		InitCmd: "copy(" + srcDir + ")",
		Opts:    option.Set{option.Init: "always"},
	})

	r := &Runner{Fs: fsys, Lookup: envLookup(nil)}

	if err := r.Run(context.Background(), OpMount, trees, option.NewLayers(), paths); err == nil {
		t.Fatal("expected init-failed error: destination already exists")
	}
}
