//go:build linux

package plan

import "golang.org/x/sys/unix"

// setUmask022 applies umask 022 for the duration of placeholder creation
// and returns a function that restores the previous umask. Umask is
// process-global, so callers must not run placeholder creation
// concurrently with other umask-sensitive work.
func setUmask022() func() {
	old := unix.Umask(0o022)

	return func() { unix.Umask(old) }
}
