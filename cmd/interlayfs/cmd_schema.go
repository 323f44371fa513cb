package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// dumpOptionSchema prints the JSON Schema for the CLI defaults file (the
// same struct tags the TOML defaults decoder uses) and exits. It is wired
// as a root persistent flag rather than a subcommand since it short-circuits
// before any treefile/pathfile is even considered.
func dumpOptionSchema(cmd *cobra.Command) error {
	r := jsonschema.Reflector{
		FieldNameTag:               "toml",
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&Defaults{})
	schema.Title = "interlayfs CLI defaults"
	schema.Description = "Schema for $XDG_CONFIG_HOME/interlayfs/config.toml"
	schema.ID = ""

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}
