// SPDX-License-Identifier: MIT

package cimatrix

import (
	"fmt"
	"path"

	"gopkg.in/yaml.v3"
)

// PushTrigger filters push events by branch and tag globs.
type PushTrigger struct {
	Branches []string `yaml:"branches"`
	Tags     []string `yaml:"tags"`
}

// PullRequestTrigger filters pull request events by base branch.
type PullRequestTrigger struct {
	Branches []string `yaml:"branches"`
}

// Triggers is the subset of workflow trigger configuration the gateway's
// pipelines use.
type Triggers struct {
	Push        *PushTrigger
	PullRequest *PullRequestTrigger
	mergeGroup  bool
}

// UnmarshalYAML accepts both the mapping form ("push:\n  branches: [...]")
// and the shorthand list form ("on: [push, pull_request]"). A bare key with
// a null value still counts as present.
func (t *Triggers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.enable(node.Value)
		return nil
	case yaml.SequenceNode:
		for _, c := range node.Content {
			t.enable(c.Value)
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			t.enable(keyNode.Value)
			if valNode.Kind != yaml.MappingNode {
				continue
			}
			switch keyNode.Value {
			case "push":
				if err := valNode.Decode(t.Push); err != nil {
					return fmt.Errorf("cimatrix: push trigger: %w", err)
				}
			case "pull_request":
				if err := valNode.Decode(t.PullRequest); err != nil {
					return fmt.Errorf("cimatrix: pull_request trigger: %w", err)
				}
			}
		}
		return nil
	}
	return fmt.Errorf("cimatrix: unsupported trigger node")
}

func (t *Triggers) enable(name string) {
	switch name {
	case "push":
		t.Push = &PushTrigger{}
	case "pull_request":
		t.PullRequest = &PullRequestTrigger{}
	case "merge_group":
		t.mergeGroup = true
	}
}

// HasMergeGroup reports whether merge queue events fire the workflow.
func (t Triggers) HasMergeGroup() bool { return t.mergeGroup }

// MatchesBranchPush reports whether a push to the branch fires the
// workflow. Globs like "release/*" are honored.
func (t Triggers) MatchesBranchPush(branch string) bool {
	if t.Push == nil {
		return false
	}
	// No branch filter means every branch (unless the trigger is tag-only).
	if len(t.Push.Branches) == 0 {
		return len(t.Push.Tags) == 0
	}
	return matchesGlobs(t.Push.Branches, branch)
}

// MatchesTagPush reports whether a push of the tag fires the workflow.
func (t Triggers) MatchesTagPush(tag string) bool {
	if t.Push == nil {
		return false
	}
	return matchesGlobs(t.Push.Tags, tag)
}

// MatchesPullRequest reports whether a pull request against the branch
// fires the workflow.
func (t Triggers) MatchesPullRequest(base string) bool {
	if t.PullRequest == nil {
		return false
	}
	if len(t.PullRequest.Branches) == 0 {
		return true
	}
	return matchesGlobs(t.PullRequest.Branches, base)
}

func matchesGlobs(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// WorkflowJob is one job definition with an optional matrix strategy.
type WorkflowJob struct {
	Name     string `yaml:"name"`
	RunsOn   string `yaml:"runs-on"`
	Strategy struct {
		Matrix   *Matrix `yaml:"matrix"`
		FailFast *bool   `yaml:"fail-fast"`
	} `yaml:"strategy"`
}

// Workflow is the parsed subset of a CI workflow file.
type Workflow struct {
	Name string                 `yaml:"name"`
	On   Triggers               `yaml:"on"`
	Jobs map[string]WorkflowJob `yaml:"jobs"`
}

// ParseWorkflow reads a workflow YAML document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("cimatrix: parse workflow: %w", err)
	}
	return &wf, nil
}
