// SPDX-License-Identifier: MIT

// Package changelog models release notes: a markdown changelog parsed into
// versioned entries with categorized sections, and rendered back
// deterministically.
package changelog

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// VersionUnreleased is the pseudo-version of the unreleased entry.
const VersionUnreleased = "Unreleased"

// canonicalSections is the section order used when rendering.
var canonicalSections = []string{
	"Breaking Changes",
	"New",
	"Improved",
	"Improved Drivers",
	"New Drivers",
	"Fixed",
}

// Section is one categorized list of changes.
type Section struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Entry is the notes for one release. The unreleased entry has Version
// "Unreleased" and a zero Date.
type Entry struct {
	Version  string    `json:"version"`
	Date     time.Time `json:"date,omitzero"`
	Sections []Section `json:"sections"`
}

// Released reports whether the entry belongs to a tagged release.
func (e *Entry) Released() bool {
	return e.Version != VersionUnreleased
}

// Section returns the section with the given title, if present.
func (e *Entry) Section(title string) (*Section, bool) {
	for i := range e.Sections {
		if e.Sections[i].Title == title {
			return &e.Sections[i], true
		}
	}
	return nil, false
}

// Changelog is a parsed changelog document, newest entry first.
type Changelog struct {
	Entries []Entry
}

// Latest returns the newest released entry.
func (c *Changelog) Latest() (*Entry, bool) {
	for i := range c.Entries {
		if c.Entries[i].Released() {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

// Unreleased returns the unreleased entry, if the document has one.
func (c *Changelog) Unreleased() (*Entry, bool) {
	for i := range c.Entries {
		if !c.Entries[i].Released() {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

// Find returns the entry for a version.
func (c *Changelog) Find(version string) (*Entry, bool) {
	for i := range c.Entries {
		if c.Entries[i].Version == version {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

var versionRe = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

const dateLayout = "2006-01-02"

// Parse reads a changelog document. Entries start with
// "## vX.Y.Z — YYYY-MM-DD" (or "## Unreleased"), sections with
// "### Title", items with "- ". Text before the first entry heading is
// ignored.
func Parse(data []byte) (*Changelog, error) {
	c := &Changelog{}
	var entry *Entry
	var section *Section

	flushSection := func() {
		if entry != nil && section != nil {
			entry.Sections = append(entry.Sections, *section)
		}
		section = nil
	}
	flushEntry := func() {
		flushSection()
		if entry != nil {
			c.Entries = append(c.Entries, *entry)
		}
		entry = nil
	}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t")

		switch {
		case strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "### "):
			flushEntry()
			e, err := parseHeading(strings.TrimPrefix(line, "## "))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			entry = e

		case strings.HasPrefix(line, "### "):
			if entry == nil {
				return nil, fmt.Errorf("line %d: section outside of an entry", lineNo)
			}
			flushSection()
			title := strings.TrimSpace(strings.TrimPrefix(line, "### "))
			if title == "" {
				return nil, fmt.Errorf("line %d: empty section title", lineNo)
			}
			section = &Section{Title: title}

		case strings.HasPrefix(line, "- "):
			if section == nil {
				if entry == nil {
					continue // preamble bullet, ignore
				}
				return nil, fmt.Errorf("line %d: item outside of a section", lineNo)
			}
			item := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if item != "" {
				section.Items = append(section.Items, item)
			}

		case strings.HasPrefix(line, "  ") && section != nil && len(section.Items) > 0:
			// Continuation line of the previous item.
			section.Items[len(section.Items)-1] += " " + strings.TrimSpace(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flushEntry()
	return c, nil
}

func parseHeading(h string) (*Entry, error) {
	h = strings.TrimSpace(h)
	if h == VersionUnreleased {
		return &Entry{Version: VersionUnreleased}, nil
	}

	version, rest, found := strings.Cut(h, " — ")
	if !found {
		version, rest, found = strings.Cut(h, " - ")
	}
	if !found {
		return nil, fmt.Errorf("entry heading %q lacks a date separator", h)
	}
	version = strings.TrimSpace(version)
	if !versionRe.MatchString(version) {
		return nil, fmt.Errorf("bad version %q (want vX.Y.Z)", version)
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(rest))
	if err != nil {
		return nil, fmt.Errorf("bad date in heading %q: %w", h, err)
	}
	return &Entry{Version: version, Date: date}, nil
}

// sectionRank orders sections canonically; unknown titles sort after the
// known ones, keeping their relative order.
func sectionRank(title string) int {
	for i, s := range canonicalSections {
		if s == title {
			return i
		}
	}
	return len(canonicalSections)
}

// Render writes the entry as markdown. Sections come out in canonical
// order regardless of input order.
func (e *Entry) Render() string {
	var b strings.Builder
	if e.Released() {
		fmt.Fprintf(&b, "## %s — %s\n", e.Version, e.Date.Format(dateLayout))
	} else {
		b.WriteString("## Unreleased\n")
	}

	sections := make([]Section, len(e.Sections))
	copy(sections, e.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sectionRank(sections[i].Title) < sectionRank(sections[j].Title)
	})

	for _, s := range sections {
		if len(s.Items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", s.Title)
		for _, item := range s.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

// Render writes the whole changelog as markdown.
func (c *Changelog) Render() string {
	var b strings.Builder
	b.WriteString("# Changelog\n")
	for i := range c.Entries {
		b.WriteString("\n")
		b.WriteString(c.Entries[i].Render())
	}
	return b.String()
}
