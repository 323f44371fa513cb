// Package mountexec implements the Mount Executor: it orders the bind
// mounts, issues them through a small Backend interface so tests can
// substitute a recorder, and performs the recursive lazy unmount.
package mountexec

import (
	"fmt"

	"github.com/moby/sys/mount"
	"github.com/moby/sys/mountinfo"
)

// Backend abstracts the two Linux syscalls this component needs
// (mount(2) with MS_BIND|MS_PRIVATE, umount2(2) with MNT_DETACH) behind an
// interface, per the design note to keep mount/unmount testable without a
// real mount namespace.
type Backend interface {
	// BindMount binds src onto dst with private propagation, read-only when
	// ro is true.
	BindMount(src, dst string, ro bool) error
	// Mounted reports whether dst already has something bind-mounted onto
	// it, used for the executor's idempotency check.
	Mounted(dst string) (bool, error)
	// RecursiveUnmount lazily and recursively unmounts everything under
	// target in one operation.
	RecursiveUnmount(target string) error
}

// RealBackend issues actual Linux mount(2)/umount2(2) syscalls via
// github.com/moby/sys/mount, the same library moby-moby itself vendors for
// its bind-mount plumbing.
type RealBackend struct{}

// BindMount performs the three-step bind-then-private-then-maybe-ro-remount
// sequence the Linux VFS requires for a read-only bind mount: a bind mount
// cannot set MS_RDONLY atomically with MS_BIND, so a remount follows.
func (RealBackend) BindMount(src, dst string, ro bool) error {
	if err := mount.Mount(src, dst, "", "bind"); err != nil {
		return fmt.Errorf("mountexec: bind %s -> %s: %w", src, dst, err)
	}

	if err := mount.Mount("", dst, "", "private"); err != nil {
		return fmt.Errorf("mountexec: make-private %s: %w", dst, err)
	}

	if ro {
		if err := mount.Mount(src, dst, "", "remount,bind,ro"); err != nil {
			return fmt.Errorf("mountexec: remount ro %s: %w", dst, err)
		}
	}

	return nil
}

// Mounted reports whether dst is already a mount point, per
// github.com/moby/sys/mountinfo's /proc/self/mountinfo parsing.
func (RealBackend) Mounted(dst string) (bool, error) {
	return mountinfo.Mounted(dst)
}

// RecursiveUnmount lazily and recursively unmounts target.
func (RealBackend) RecursiveUnmount(target string) error {
	return mount.RecursiveUnmount(target)
}

// RecordedMount is one BindMount invocation captured by RecordingBackend.
type RecordedMount struct {
	Src, Dst string
	RO       bool
}

// RecordingBackend is a test double that records calls into an in-memory
// table instead of touching the real mount namespace.
type RecordingBackend struct {
	Mounts     []RecordedMount
	mountedSet map[string]bool
	Unmounted  []string
}

// NewRecordingBackend returns an empty RecordingBackend.
func NewRecordingBackend() *RecordingBackend {
	return &RecordingBackend{mountedSet: map[string]bool{}}
}

func (b *RecordingBackend) BindMount(src, dst string, ro bool) error {
	b.Mounts = append(b.Mounts, RecordedMount{Src: src, Dst: dst, RO: ro})
	b.mountedSet[dst] = true

	return nil
}

func (b *RecordingBackend) Mounted(dst string) (bool, error) {
	return b.mountedSet[dst], nil
}

func (b *RecordingBackend) RecursiveUnmount(target string) error {
	b.Unmounted = append(b.Unmounted, target)

	for dst := range b.mountedSet {
		if dst == target || len(dst) > len(target) && dst[:len(target)+1] == target+"/" {
			delete(b.mountedSet, dst)
		}
	}

	return nil
}
