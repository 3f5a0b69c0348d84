// This file implements "wakesentry init": write a commented default config
// file for the user to edit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/wakesentry/host/internal/config"
)

// runInit handles "wakesentry init".
func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry init [options]\n\nWrite a default config file.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote config to %s\n", configPath)
	return 0
}
