package main

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Defaults is the optional CLI-level defaults file at
// $XDG_CONFIG_HOME/interlayfs/config.toml (or ~/.config/interlayfs/config.toml).
// It supplies flag defaults only; the core Config Loader never reads it.
type Defaults struct {
	Treefile     string `toml:"treefile" jsonschema:"description=Default --treefile path"`
	Pathfile     string `toml:"pathfile" jsonschema:"description=Default --pathfile path"`
	GlobalOpts   string `toml:"global_opts" jsonschema:"description=Default global -o option string"`
}

// loadDefaultsFile reads the defaults file if present; a missing file is not
// an error.
func loadDefaultsFile() (Defaults, error) {
	var d Defaults

	path := defaultsFilePath()
	if path == "" {
		return d, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}

		return d, err
	}

	if err := toml.Unmarshal(raw, &d); err != nil {
		return d, err
	}

	return d, nil
}

func defaultsFilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "interlayfs", "config.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "interlayfs", "config.toml")
}
