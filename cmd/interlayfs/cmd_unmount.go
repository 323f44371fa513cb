package main

import (
	"github.com/spf13/cobra"

	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/mountexec"
)

func newUnmountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "unmount TARGET",
		Aliases: []string{"umount"},
		Short:   "Recursively and lazily unmount everything under TARGET",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnmount(args[0])
		},
	}

	return cmd
}

func runUnmount(target string) error {
	backend := mountexec.RealBackend{}

	if err := backend.RecursiveUnmount(target); err != nil {
		return ilfserr.New(ilfserr.KindMountFailed, target, err)
	}

	return nil
}
