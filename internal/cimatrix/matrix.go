// SPDX-License-Identifier: MIT

// Package cimatrix models the job matrix of a CI workflow: ordered
// dimensions expanded into a cross product, with include and exclude rows
// applied the way GitHub Actions applies them.
package cimatrix

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnknownDimension reports an exclude row naming a key that is not a
// matrix dimension.
var ErrUnknownDimension = errors.New("cimatrix: exclude names unknown dimension")

// Dimension is one matrix axis with its values in declaration order.
type Dimension struct {
	Name   string
	Values []string
}

// Job is one expanded matrix combination.
type Job map[string]string

// Matrix is a workflow job matrix.
type Matrix struct {
	// Dimensions in declaration order. The expansion varies the last
	// dimension fastest.
	Dimensions []Dimension
	// Include rows add or extend jobs after the cross product.
	Include []map[string]string
	// Exclude rows remove cross-product jobs matching all their keys.
	Exclude []map[string]string
}

// UnmarshalYAML decodes a matrix mapping. Plain keys become dimensions in
// document order; "include" and "exclude" are row lists. Scalar dimension
// values (version numbers) decode as strings.
func (m *Matrix) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("cimatrix: matrix must be a mapping, got %s", nodeKind(node))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		switch keyNode.Value {
		case "include":
			if err := valNode.Decode(&m.Include); err != nil {
				return fmt.Errorf("cimatrix: include: %w", err)
			}
		case "exclude":
			if err := valNode.Decode(&m.Exclude); err != nil {
				return fmt.Errorf("cimatrix: exclude: %w", err)
			}
		default:
			var values []string
			if err := valNode.Decode(&values); err != nil {
				return fmt.Errorf("cimatrix: dimension %s: %w", keyNode.Value, err)
			}
			m.Dimensions = append(m.Dimensions, Dimension{Name: keyNode.Value, Values: values})
		}
	}
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	}
	return "document"
}

// dimension reports whether name is a matrix dimension.
func (m *Matrix) dimension(name string) bool {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Expand produces the job list: the cross product of the dimensions in
// declaration order, minus exclude matches, plus include rows. An include
// row carrying no dimension keys adds its pairs to every job; a row that
// shares dimension values with existing jobs merges its extra keys into
// those; otherwise it is appended as a standalone job. A matrix with no
// dimensions yields exactly the include rows.
func (m *Matrix) Expand() ([]Job, error) {
	for _, ex := range m.Exclude {
		for key := range ex {
			if !m.dimension(key) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, key)
			}
		}
	}

	jobs := m.crossProduct()

	// Excludes remove jobs matching every key of the row.
	if len(m.Exclude) > 0 {
		kept := jobs[:0]
		for _, job := range jobs {
			if !matchesAny(job, m.Exclude) {
				kept = append(kept, job)
			}
		}
		jobs = kept
	}

	for _, inc := range m.Include {
		// A row with no dimension keys cannot conflict with any
		// combination, so it decorates all of them.
		if len(m.Dimensions) > 0 && !sharesDimension(inc, m) {
			for _, job := range jobs {
				for k, v := range inc {
					job[k] = v
				}
			}
			continue
		}
		merged := false
		for _, job := range jobs {
			if includeMatches(job, inc, m) {
				for k, v := range inc {
					if !m.dimension(k) {
						job[k] = v
					}
				}
				merged = true
			}
		}
		if !merged {
			job := make(Job, len(inc))
			for k, v := range inc {
				job[k] = v
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// crossProduct expands the dimensions with the last one varying fastest.
func (m *Matrix) crossProduct() []Job {
	if len(m.Dimensions) == 0 {
		return nil
	}
	jobs := []Job{{}}
	for _, d := range m.Dimensions {
		next := make([]Job, 0, len(jobs)*len(d.Values))
		for _, job := range jobs {
			for _, v := range d.Values {
				j := make(Job, len(job)+1)
				for k, jv := range job {
					j[k] = jv
				}
				j[d.Name] = v
				next = append(next, j)
			}
		}
		jobs = next
	}
	return jobs
}

func matchesAny(job Job, rows []map[string]string) bool {
	for _, row := range rows {
		match := len(row) > 0
		for k, v := range row {
			if job[k] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// sharesDimension reports whether an include row names any matrix
// dimension at all.
func sharesDimension(inc map[string]string, m *Matrix) bool {
	for k := range inc {
		if m.dimension(k) {
			return true
		}
	}
	return false
}

// includeMatches reports whether an include row targets a job: every key
// the row shares with the matrix dimensions must match the job's value,
// and the row must share at least one dimension key.
func includeMatches(job Job, inc map[string]string, m *Matrix) bool {
	shared := false
	for k, v := range inc {
		if !m.dimension(k) {
			continue
		}
		shared = true
		if job[k] != v {
			return false
		}
	}
	return shared
}
