//go:build !linux

package initrun

import "os"

func fileUID(info os.FileInfo) int {
	return -1
}
