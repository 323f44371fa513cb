package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// newInitCmd returns the interactive scaffold wizard. It is pure
// convenience: it never runs automatically, and skipping it entirely (hand
// writing a treefile/pathfile pair) is always supported.
func newInitCmd() *cobra.Command {
	var (
		treefile string
		pathfile string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively scaffold a starter treefile/pathfile pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWizard(treefile, pathfile)
		},
	}

	cmd.Flags().StringVar(&treefile, "treefile", "interlayfs.trees", "Path to write the new treefile to")
	cmd.Flags().StringVar(&pathfile, "pathfile", "interlayfs.paths", "Path to write the new pathfile to")

	return cmd
}

func runInitWizard(treefile, pathfile string) error {
	for _, p := range []string{treefile, pathfile} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("interlayfs init: %s already exists", p)
		}
	}

	var (
		rootTreeName string
		rootTreeRoot string
		dataTreeName string
		dataTreeRoot string
		dataPath     string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name of the tree supplying the base filesystem").Value(&rootTreeName).Placeholder("base"),
			huh.NewInput().Title("Host directory backing it").Value(&rootTreeRoot).Placeholder("/srv/interlayfs/base"),
		),
		huh.NewGroup(
			huh.NewInput().Title("Name of a second tree to overlay one path from").Value(&dataTreeName).Placeholder("data"),
			huh.NewInput().Title("Host directory backing it").Value(&dataTreeRoot).Placeholder("/srv/interlayfs/data"),
			huh.NewInput().Title("Composed path to bind from it").Value(&dataPath).Placeholder("/var/lib/app"),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interlayfs init: wizard cancelled: %w", err)
	}

	treeTable := fmt.Sprintf("%s\t%s\n%s\t%s\n", rootTreeName, rootTreeRoot, dataTreeName, dataTreeRoot)
	pathTable := fmt.Sprintf("%s\t/\ttype=d\n%s\t%s\ttype=d,init=missing\tmkdir\n", rootTreeName, dataTreeName, dataPath)

	if err := os.WriteFile(treefile, []byte(treeTable), 0o644); err != nil {
		return err
	}

	if err := os.WriteFile(pathfile, []byte(pathTable), 0o644); err != nil {
		return err
	}

	fmt.Printf("Wrote %s and %s\n", treefile, pathfile)
	fmt.Println("Edit these to add trees and composed paths, then run: interlayfs mount --treefile ... --pathfile ... TARGET")

	return nil
}
