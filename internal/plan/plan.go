// Package plan implements the Mountpoint Planner: for each composed path it
// ensures a placeholder of matching type exists on the parent-in-registry's
// source tree so the bind mount has somewhere to attach.
package plan

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/orchitech/interlayfs/internal/debuglog"
	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/pathutil"
	"github.com/orchitech/interlayfs/internal/registry"
)

// MarkerName is the file dropped in every directory the Planner creates, so
// system-owned placeholders can be told apart from real content.
const MarkerName = ".ilfs-mountpoint"

// FileMarkerContent is the sole content of a placeholder regular file.
const FileMarkerContent = "#ilfs-mountpoint\n"

// Planner creates mountpoint placeholders against a Filesystem Abstraction.
type Planner struct {
	Fs  afero.Fs
	Log *debuglog.Logger
}

// Plan ensures placeholders exist for every path in paths, relative to
// trees, in registration order.
func (p *Planner) Plan(trees *registry.TreeRegistry, paths *registry.PathRegistry, target string) error {
	for _, pth := range paths.All() {
		if err := p.planOne(trees, paths, pth, target); err != nil {
			return err
		}
	}

	return nil
}

func (p *Planner) planOne(trees *registry.TreeRegistry, paths *registry.PathRegistry, pth registry.Path, target string) error {
	parentSrc := target

	if parentPath, ok := paths.ParentInRegistry(pth.Path); ok {
		parentEntry, _ := paths.Get(parentPath)

		parentTree := trees.Get(parentEntry.Tree)
		if parentTree == nil {
			return ilfserr.Internalf(pth.Path, "parent-in-registry %q has unknown tree", parentPath)
		}

		parentSrc = parentTree.Root
	}

	srcTree := trees.Get(pth.Tree)
	if srcTree == nil {
		return ilfserr.Internalf(pth.Path, "unknown tree %q", pth.Tree)
	}

	placeholderPath := filepath.Join(parentSrc, pth.Path)

	if existingType, err := pathutil.OSPathType(p.Fs, placeholderPath); err == nil {
		if existingType != pth.Type && pth.Type != "e" {
			return ilfserr.Newf(ilfserr.KindMountpointCollision, pth.Path, "existing entry at %q has type %q, want %q", placeholderPath, existingType, pth.Type)
		}

		return nil
	}

	return p.createPlaceholder(parentSrc, pth, placeholderPath)
}

// createPlaceholder creates every missing intermediate directory between
// parentSrc and placeholderPath, dropping MarkerName in each one it
// creates, then the leaf itself per pth.Type.
func (p *Planner) createPlaceholder(parentSrc string, pth registry.Path, placeholderPath string) error {
	rel := strings.TrimPrefix(pth.Path, "/")
	components := strings.Split(rel, "/")

	restoreUmask := setUmask022()
	defer restoreUmask()

	cur := parentSrc

	for i, c := range components {
		cur = filepath.Join(cur, c)
		last := i == len(components)-1

		if last && pth.Type == "f" {
			break
		}

		info, statErr := p.Fs.Stat(cur)
		if statErr == nil {
			if !info.IsDir() {
				return ilfserr.Newf(ilfserr.KindMountpointCollision, pth.Path, "%q exists and is not a directory", cur)
			}

			continue
		}

		if err := p.Fs.Mkdir(cur, 0o755); err != nil {
			return ilfserr.New(ilfserr.KindMountpointCollision, pth.Path, err)
		}

		if err := afero.WriteFile(p.Fs, filepath.Join(cur, MarkerName), nil, 0o644); err != nil {
			return ilfserr.New(ilfserr.KindInternal, pth.Path, err)
		}

		if p.Log != nil {
			p.Log.Path("planner: created directory", cur)
		}
	}

	if pth.Type == "f" {
		if err := afero.WriteFile(p.Fs, placeholderPath, []byte(FileMarkerContent), 0o644); err != nil {
			return ilfserr.New(ilfserr.KindInternal, pth.Path, err)
		}

		if p.Log != nil {
			p.Log.Path("planner: created placeholder file", placeholderPath)
		}
	}

	return nil
}
