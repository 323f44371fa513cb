package mountexec

import (
	"context"
	"path/filepath"

	"github.com/orchitech/interlayfs/internal/debuglog"
	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/initrun"
	"github.com/orchitech/interlayfs/internal/option"
	"github.com/orchitech/interlayfs/internal/plan"
	"github.com/orchitech/interlayfs/internal/registry"
)

// State is the session lifecycle: uninit -> configured -> planned -> mounted,
// with mounted -> unmounted on explicit teardown and any error moving to the
// terminal failed state.
type State int

const (
	StateUninit State = iota
	StateConfigured
	StatePlanned
	StateMounted
	StateUnmounted
	StateFailed
)

// Executor drives the Initializer Runner, Mountpoint Planner, and Mount
// Backend in a fixed order: initializers, then placeholders, then mounts.
type Executor struct {
	Backend Backend
	Planner *plan.Planner
	Init    *initrun.Runner
	Log     *debuglog.Logger

	state State
}

// State reports the executor's current lifecycle state.
func (e *Executor) State() State { return e.state }

// Mount runs the full mount orchestration: root-registered check, then
// initializers, then placeholder planning, then the bind mounts themselves,
// in registration order.
func (e *Executor) Mount(ctx context.Context, target string, trees *registry.TreeRegistry, layers option.Layers, paths *registry.PathRegistry) error {
	if e.state != StateUninit && e.state != StateConfigured {
		return ilfserr.Internalf(target, "Mount called from state %d", e.state)
	}

	if !paths.Defined("/") {
		e.state = StateFailed

		return ilfserr.New(ilfserr.KindNoRootConfigured, target, nil)
	}

	e.state = StateConfigured

	if err := e.Init.Run(ctx, initrun.OpMount, trees, layers, paths); err != nil {
		e.state = StateFailed

		return err
	}

	if err := e.Planner.Plan(trees, paths, target); err != nil {
		e.state = StateFailed

		return err
	}

	e.state = StatePlanned

	for _, p := range paths.All() {
		tree := trees.Get(p.Tree)
		if tree == nil {
			e.state = StateFailed

			return ilfserr.Internalf(p.Path, "unknown tree %q", p.Tree)
		}

		ro := option.IsRO(layers.Resolve(option.RO, tree.Opts, p.Opts))

		src := filepath.Join(tree.Root, p.Path)
		dst := filepath.Join(target, p.Path)

		already, err := e.Backend.Mounted(dst)
		if err != nil {
			e.state = StateFailed

			return ilfserr.New(ilfserr.KindMountFailed, p.Path, err)
		}

		if already {
			if e.Log != nil {
				e.Log.Path("mount: already mounted, skipping", dst)
			}

			continue
		}

		if e.Log != nil {
			e.Log.Mount(src, dst, ro)
		}

		if err := e.Backend.BindMount(src, dst, ro); err != nil {
			e.state = StateFailed

			return ilfserr.New(ilfserr.KindMountFailed, p.Path, err)
		}
	}

	e.state = StateMounted

	return nil
}

// InitOnly runs the Initializer Runner in isolation (the CLI's `-i` flag:
// initializers only, no mount), leaving the state machine untouched on
// success since no mount has been attempted.
func (e *Executor) InitOnly(ctx context.Context, trees *registry.TreeRegistry, layers option.Layers, paths *registry.PathRegistry) error {
	if err := e.Init.Run(ctx, initrun.OpInit, trees, layers, paths); err != nil {
		e.state = StateFailed

		return err
	}

	return nil
}

// Unmount recursively and lazily unmounts target in a single operation.
func (e *Executor) Unmount(target string) error {
	if err := e.Backend.RecursiveUnmount(target); err != nil {
		e.state = StateFailed

		return ilfserr.New(ilfserr.KindMountFailed, target, err)
	}

	e.state = StateUnmounted

	return nil
}
