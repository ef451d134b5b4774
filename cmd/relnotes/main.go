// SPDX-License-Identifier: MIT

// relnotes extracts one release's notes from a changelog file.
//
// Usage:
//
//	relnotes -f CHANGELOG.md                 # latest released version
//	relnotes -f CHANGELOG.md -version v0.3.0
//	relnotes -f CHANGELOG.md -version Unreleased -json
//
// Exit codes:
//   - 0: entry found and printed
//   - 1: parse error or version not found
//   - 2: usage error
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/qbridge/qbridge/internal/changelog"
)

func main() {
	var file, version string
	var asJSON bool

	flag.StringVar(&file, "file", "CHANGELOG.md", "path to the changelog file")
	flag.StringVar(&file, "f", "CHANGELOG.md", "path to the changelog file (shorthand)")
	flag.StringVar(&version, "version", "", "version to extract (default: latest released, \"Unreleased\" for the pending entry)")
	flag.BoolVar(&asJSON, "json", false, "emit the entry as JSON")
	flag.Parse()

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	c, err := changelog.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Changelog error in %s:\n  %v\n", file, err)
		os.Exit(1)
	}

	var entry *changelog.Entry
	var ok bool
	switch version {
	case "":
		entry, ok = c.Latest()
	case changelog.VersionUnreleased:
		entry, ok = c.Unreleased()
	default:
		entry, ok = c.Find(version)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no entry for %q in %s\n", version, file)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(entry.Render())
}
