// Package engine ties the Config Loader, registries, Mountpoint Planner,
// Initializer Runner, and Mount Executor into the session object the design
// notes call for: one struct holding the three registries plus the global
// option set, passed explicitly rather than through shell-style global
// state.
package engine

import (
	"context"
	"io"

	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/config"
	"github.com/orchitech/interlayfs/internal/debuglog"
	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/initrun"
	"github.com/orchitech/interlayfs/internal/mountexec"
	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/plan"
	"github.com/orchitech/interlayfs/internal/registry"
	"github.com/orchitech/interlayfs/internal/template"
)

// Session is the loaded configuration plus the components that act on it.
type Session struct {
	Trees   *registry.TreeRegistry
	Paths   *registry.PathRegistry
	Layers  option.Layers
	Exec    *mountexec.Executor
	Log     *debuglog.Logger
}

// Config controls how a Session is constructed.
type Config struct {
	Fs           afero.Fs
	Backend      mountexec.Backend
	Lookup       template.Lookup
	GlobalOptStr string
	DebugWriter  io.Writer
}

// Load reads treefile and pathfile and builds a ready-to-run Session.
func Load(treefile, pathfile string, cfg Config) (*Session, error) {
	log := debuglog.New(cfg.DebugWriter)

	layers := option.NewLayers()

	globalOpts, err := option.Parse(cfg.GlobalOptStr)
	if err != nil {
		return nil, ilfserr.New(ilfserr.KindInvalidOptionValue, "global", err)
	}

	layers[option.ScopeGlobal] = globalOpts

	loader := &config.Loader{Fs: cfg.Fs, Lookup: cfg.Lookup}

	trees := registry.NewTreeRegistry()
	if err := loader.LoadTreefile(treefile, trees); err != nil {
		return nil, err
	}

	paths := registry.NewPathRegistry()
	if err := loader.LoadPathfile(pathfile, trees, layers, paths); err != nil {
		return nil, err
	}

	exec := &mountexec.Executor{
		Backend: cfg.Backend,
		Planner: &plan.Planner{Fs: cfg.Fs, Log: log},
		Init:    &initrun.Runner{Fs: cfg.Fs, Lookup: cfg.Lookup, Log: log},
		Log:     log,
	}

	return &Session{Trees: trees, Paths: paths, Layers: layers, Exec: exec, Log: log}, nil
}

// Mount runs the full mount orchestration against target.
func (s *Session) Mount(ctx context.Context, target string) error {
	return s.Exec.Mount(ctx, target, s.Trees, s.Layers, s.Paths)
}

// InitOnly runs initializers without mounting.
func (s *Session) InitOnly(ctx context.Context) error {
	return s.Exec.InitOnly(ctx, s.Trees, s.Layers, s.Paths)
}

// Unmount lazily and recursively unmounts target.
func (s *Session) Unmount(target string) error {
	return s.Exec.Unmount(target)
}
