package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/registry"
)

func envLookup(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]

		return v, ok
	}
}

func TestLoadTreefile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)
	_ = fsys.MkdirAll("/srv/data", 0o755)

	_ = afero.WriteFile(fsys, "/trees.conf", []byte(
		"base /srv/base\n"+
			"data ${DATA_ROOT} ro\n"+
			"# a comment\n\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(map[string]string{"DATA_ROOT": "/srv/data"})}

	trees := registry.NewTreeRegistry()
	if err := loader.LoadTreefile("/trees.conf", trees); err != nil {
		t.Fatalf("LoadTreefile: %v", err)
	}

	if !trees.Defined("base") || !trees.Defined("data") {
		t.Fatalf("expected both trees defined, got %v", trees.Names())
	}

	if got := trees.Get("data").Opts[option.RO]; got != "1" {
		t.Errorf("data tree ro = %q, want 1", got)
	}
}

func TestLoadTreefile_MissingRoot(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/trees.conf", []byte("base\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	err := loader.LoadTreefile("/trees.conf", registry.NewTreeRegistry())
	if err == nil {
		t.Fatal("expected error for missing root field")
	}
}

func TestLoadPathfile_BasicAndPrecedence(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)
	_ = fsys.MkdirAll("/srv/base/app", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte(
		"base /\n"+
			"base /app type=d,init=missing\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	layers := option.NewLayers()
	paths := registry.NewPathRegistry()

	if err := loader.LoadPathfile("/paths.conf", trees, layers, paths); err != nil {
		t.Fatalf("LoadPathfile: %v", err)
	}

	if !paths.Defined("/") || !paths.Defined("/app") {
		t.Fatalf("expected / and /app registered, got %+v", paths.All())
	}
}

func TestLoadPathfile_ShadowRejected(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/a/b", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte(
		"base /a\n"+
			"base /a/b\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), registry.NewPathRegistry())
	if err == nil {
		t.Fatal("expected path-shadow error")
	}

	var ie *ilfserr.Error
	if !errors.As(err, &ie) || ie.Kind != ilfserr.KindPathShadow {
		t.Fatalf("err = %v, want KindPathShadow", err)
	}
}

func TestLoadPathfile_GlobInitRestriction(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/data", 0o755)
	_ = afero.WriteFile(fsys, "/srv/base/data/a.conf", []byte("x"), 0o644)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	fsysGood := fsys

	_ = afero.WriteFile(fsysGood, "/paths.conf", []byte("base /data/*.conf init=always\n"), 0o644)

	loader := &Loader{Fs: fsysGood, Lookup: envLookup(nil)}

	err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), registry.NewPathRegistry())
	if err == nil {
		t.Fatal("expected init-forbidden-on-glob error")
	}

	var ie *ilfserr.Error
	if !errors.As(err, &ie) || ie.Kind != ilfserr.KindInitForbiddenOnGlob {
		t.Fatalf("err = %v, want KindInitForbiddenOnGlob", err)
	}
}

func TestLoadPathfile_GlobExpansion(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/data", 0o755)
	_ = afero.WriteFile(fsys, "/srv/base/data/a.conf", []byte("x"), 0o644)
	_ = afero.WriteFile(fsys, "/srv/base/data/b.conf", []byte("x"), 0o644)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte("base /data/*.conf\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}
	paths := registry.NewPathRegistry()

	if err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("LoadPathfile: %v", err)
	}

	if !paths.Defined("/data/a.conf") || !paths.Defined("/data/b.conf") {
		t.Fatalf("expected both glob matches registered, got %+v", paths.All())
	}
}

func TestLoadPathfile_NoMatchWithoutInit(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte("base /missing\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), registry.NewPathRegistry())
	if err == nil {
		t.Fatal("expected path-no-match error")
	}

	var ie *ilfserr.Error
	if !errors.As(err, &ie) || ie.Kind != ilfserr.KindPathNoMatch {
		t.Fatalf("err = %v, want KindPathNoMatch", err)
	}
}

func TestLoadPathfile_Include(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base/app", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/included.conf", []byte("base /app\n"), 0o644)
	_ = afero.WriteFile(fsys, "/paths.conf", []byte("base /\ninclude included.conf\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}
	paths := registry.NewPathRegistry()

	if err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("LoadPathfile: %v", err)
	}

	if !paths.Defined("/") || !paths.Defined("/app") {
		t.Fatalf("expected included path registered, got %+v", paths.All())
	}
}

func TestLoadPathfile_IncludeCycle(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/a.conf", []byte("include b.conf\n"), 0o644)
	_ = afero.WriteFile(fsys, "/b.conf", []byte("include a.conf\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	err := loader.LoadPathfile("/a.conf", trees, option.NewLayers(), registry.NewPathRegistry())
	if err == nil {
		t.Fatal("expected cyclic include error")
	}
}

func TestLoadPathfile_TypeMismatch(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)
	_ = afero.WriteFile(fsys, "/srv/base/thing", []byte("x"), 0o644)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte("base /thing type=d\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}

	err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), registry.NewPathRegistry())
	if err == nil {
		t.Fatal("expected path-type-mismatch error")
	}

	var ie *ilfserr.Error
	if !errors.As(err, &ie) || ie.Kind != ilfserr.KindPathTypeMismatch {
		t.Fatalf("err = %v, want KindPathTypeMismatch", err)
	}
}

func TestLoadPathfile_InitCmdCapturesRemainder(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/srv/base", 0o755)

	trees := registry.NewTreeRegistry()
	_, _ = trees.Add(fsys, "base", "/srv/base", option.Set{})

	_ = afero.WriteFile(fsys, "/paths.conf", []byte(`base /missing type=d,init=missing mkdir -p \`+"$ILFS_INIT_SUBPATH\n"), 0o644)

	loader := &Loader{Fs: fsys, Lookup: envLookup(nil)}
	paths := registry.NewPathRegistry()

	if err := loader.LoadPathfile("/paths.conf", trees, option.NewLayers(), paths); err != nil {
		t.Fatalf("LoadPathfile: %v", err)
	}

	p, ok := paths.Get("/missing")
	if !ok {
		t.Fatal("path not registered")
	}

	if p.InitCmd != "mkdir -p $ILFS_INIT_SUBPATH" {
		t.Errorf("InitCmd = %q", p.InitCmd)
	}
}
