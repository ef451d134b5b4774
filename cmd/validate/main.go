// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// validate checks a qbridge YAML configuration file without starting the
// daemon: strict parsing, env overlay and the full validation pass.
//
// Usage:
//
//	validate -f config.yaml
//	validate --file config.yaml
//
// Exit codes:
//   - 0: Configuration is valid
//   - 1: Configuration is invalid (parse or validation error)
//   - 2: Usage error (missing required flag)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/version"
)

func main() {
	var file string
	var showVersion bool

	flag.StringVar(&file, "file", "", "path to YAML configuration file")
	flag.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Version)
		os.Exit(0)
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  validate -f config.yaml")
		fmt.Fprintln(os.Stderr, "  validate --file config.yaml")
		os.Exit(2)
	}

	cfg, err := config.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n", file)
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ %s is valid (%d instruments, %d monitored paths)\n",
		file, len(cfg.Instruments), len(cfg.Monitor.Paths))
}
