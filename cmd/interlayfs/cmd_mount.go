package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchitech/interlayfs/internal/config"
	"github.com/orchitech/interlayfs/internal/engine"
	"github.com/orchitech/interlayfs/internal/mountexec"
)

func newMountCmd(defaults Defaults) *cobra.Command {
	var (
		treefile string
		pathfile string
		optStrs  []string
		readOnly bool
		initOnly bool
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "mount TARGET",
		Short: "Compose TARGET from the configured source trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			globalOpts := strings.Join(optStrs, ",")
			if readOnly {
				if globalOpts != "" {
					globalOpts += ","
				}

				globalOpts += "ro"
			}

			var debugWriter io.Writer
			if debug {
				debugWriter = cmd.ErrOrStderr()
			}

			sess, err := engine.Load(treefile, pathfile, engine.Config{
				Fs:           osFs(),
				Backend:      mountexec.RealBackend{},
				Lookup:       config.OSLookup(),
				GlobalOptStr: globalOpts,
				DebugWriter:  debugWriter,
			})
			if err != nil {
				return err
			}

			ctx := context.Background()

			if initOnly {
				return sess.InitOnly(ctx)
			}

			return sess.Mount(ctx, target)
		},
	}

	cmd.Flags().StringVar(&treefile, "treefile", defaults.Treefile, "Path to the trees table")
	cmd.Flags().StringVar(&pathfile, "pathfile", defaults.Pathfile, "Path to the paths table")
	cmd.Flags().StringArrayVarP(&optStrs, "opt", "o", nil, "Global option string (repeatable, concatenated)")
	cmd.Flags().BoolVarP(&readOnly, "ro", "r", false, "Shorthand for -o ro")
	cmd.Flags().BoolVarP(&initOnly, "init-only", "i", false, "Run initializers only, do not mount")
	cmd.Flags().BoolVar(&debug, "debug", false, "Print planning/mount details to stderr")

	if defaults.Treefile == "" {
		_ = cmd.MarkFlagRequired("treefile")
	}

	if defaults.Pathfile == "" {
		_ = cmd.MarkFlagRequired("pathfile")
	}

	if defaults.GlobalOpts != "" {
		optStrs = []string{defaults.GlobalOpts}
	}

	return cmd
}
