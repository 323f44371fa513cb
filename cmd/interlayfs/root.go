package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/orchitech/interlayfs/internal/ilfserr"
)

func newRootCmd() *cobra.Command {
	var (
		showSchema bool
		doUnmount  bool
	)

	root := &cobra.Command{
		Use:           "interlayfs",
		Short:         "Compose a directory tree from bind-mounted source trees",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showSchema {
				return nil
			}

			return checkPlatformPrerequisites()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showSchema {
				return dumpOptionSchema(cmd)
			}

			if doUnmount {
				if len(args) != 1 {
					return ilfserr.Newf(ilfserr.KindUsage, "", "-u requires exactly one TARGET argument")
				}

				return runUnmount(args[0])
			}

			return cmd.Help()
		},
	}

	root.PersistentFlags().BoolVar(&showSchema, "dump-option-schema", false, "Print the CLI defaults file JSON Schema and exit")
	root.Flags().BoolVarP(&doUnmount, "unmount", "u", false, "Recursively and lazily unmount TARGET (same as the unmount subcommand)")

	defaults, _ := loadDefaultsFile()

	root.AddCommand(newMountCmd(defaults))
	root.AddCommand(newUnmountCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCheckCmd(defaults))

	return root
}

func checkPlatformPrerequisites() error {
	if runtime.GOOS != "linux" {
		return ilfserr.Newf(ilfserr.KindPlatform, "", "interlayfs requires Linux (bind mounts are a Linux kernel feature), running on %s", runtime.GOOS)
	}

	return nil
}

func formatError(err error) string {
	prefix := "interlayfs: error:"

	if term.IsTerminal(int(os.Stderr.Fd())) {
		return fmt.Sprintf("\033[31m%s\033[0m %s", prefix, err)
	}

	return fmt.Sprintf("%s %s", prefix, err)
}

func osFs() afero.Fs { return afero.NewOsFs() }
