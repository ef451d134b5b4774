// SPDX-License-Identifier: MIT

// matrixcheck expands the job matrices of a CI workflow file and prints
// the resulting job list, so matrix edits can be reviewed before a push.
//
// Usage:
//
//	matrixcheck -f .github/workflows/ci.yml
//	matrixcheck -f ci.yml -branch release/1.2
//
// Exit codes:
//   - 0: workflow parsed, all matrices expanded
//   - 1: parse or expansion error
//   - 2: usage error
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/qbridge/qbridge/internal/cimatrix"
)

func main() {
	var file, branch string

	flag.StringVar(&file, "file", "", "path to the workflow YAML file")
	flag.StringVar(&file, "f", "", "path to the workflow YAML file (shorthand)")
	flag.StringVar(&branch, "branch", "", "also report whether a push to this branch fires the workflow")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  matrixcheck -f .github/workflows/ci.yml")
		os.Exit(2)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	wf, err := cimatrix.ParseWorkflow(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Workflow error in %s:\n  %v\n", file, err)
		os.Exit(1)
	}

	fmt.Printf("workflow: %s\n", wf.Name)
	if branch != "" {
		fmt.Printf("push to %s fires: %v\n", branch, wf.On.MatchesBranchPush(branch))
	}

	names := make([]string, 0, len(wf.Jobs))
	for name := range wf.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := wf.Jobs[name]
		if job.Strategy.Matrix == nil {
			fmt.Printf("\n%s: 1 job (no matrix)\n", name)
			continue
		}
		jobs, err := job.Strategy.Matrix.Expand()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Matrix error in job %s:\n  %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("\n%s: %d jobs\n", name, len(jobs))
		for _, j := range jobs {
			fmt.Printf("  - %s\n", formatJob(j))
		}
	}
}

// formatJob renders a combination as "key=value" pairs in stable key order.
func formatJob(j cimatrix.Job) string {
	keys := make([]string, 0, len(j))
	for k := range j {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+j[k])
	}
	return strings.Join(parts, " ")
}
