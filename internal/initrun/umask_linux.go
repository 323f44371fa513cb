//go:build linux

package initrun

import "golang.org/x/sys/unix"

func setUmask022() func() {
	old := unix.Umask(0o022)

	return func() { unix.Umask(old) }
}
