// Command interlayfs composes a directory tree from a set of source trees
// by issuing a coordinated sequence of Linux bind mounts onto a target
// directory, driven by a treefile/pathfile configuration pair.
package main

import (
	"fmt"
	"os"

	"github.com/orchitech/interlayfs/internal/ilfserr"
)

func main() {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		code := 1

		if kind, ok := ilfserr.Of(err); ok {
			code = ilfserr.ExitCode(kind)
		}

		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(code)
	}
}
