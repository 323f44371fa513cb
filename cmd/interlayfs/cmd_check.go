package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchitech/interlayfs/internal/config"
	"github.com/orchitech/interlayfs/internal/engine"
	"github.com/orchitech/interlayfs/internal/ilfserr"
	"github.com/orchitech/interlayfs/internal/mountexec"
)

// newCheckCmd returns the dry-run validation command: it loads and resolves
// a treefile/pathfile pair exactly as `mount` would, but never touches the
// mount namespace or runs an initializer, so a config can be validated
// without side effects.
func newCheckCmd(defaults Defaults) *cobra.Command {
	var (
		treefile string
		pathfile string
		optStrs  []string
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a treefile/pathfile pair without mounting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			globalOpts := strings.Join(optStrs, ",")

			sess, err := engine.Load(treefile, pathfile, engine.Config{
				Fs:           osFs(),
				Backend:      mountexec.NewRecordingBackend(),
				Lookup:       config.OSLookup(),
				GlobalOptStr: globalOpts,
			})
			if err != nil {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "invalid")
				}

				return err
			}

			if !sess.Paths.Defined("/") {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "invalid")
				}

				return ilfserr.New(ilfserr.KindNoRootConfigured, treefile, nil)
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "valid: %d trees, %d paths\n", len(sess.Trees.Names()), len(sess.Paths.All()))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&treefile, "treefile", defaults.Treefile, "Path to the trees table")
	cmd.Flags().StringVar(&pathfile, "pathfile", defaults.Pathfile, "Path to the paths table")
	cmd.Flags().StringArrayVarP(&optStrs, "opt", "o", nil, "Global option string (repeatable, concatenated)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the valid/invalid summary line")

	if defaults.Treefile == "" {
		_ = cmd.MarkFlagRequired("treefile")
	}

	if defaults.Pathfile == "" {
		_ = cmd.MarkFlagRequired("pathfile")
	}

	return cmd
}
