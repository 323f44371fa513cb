//go:build linux

package initrun

import (
	"os"
	"syscall"
)

// fileUID extracts the owning uid from a Linux os.FileInfo, used when a
// chgrp adjustment must preserve the file's existing owner.
func fileUID(info os.FileInfo) int {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(st.Uid)
	}

	return -1
}
