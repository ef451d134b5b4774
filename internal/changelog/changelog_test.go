package changelog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# Changelog

All notable changes to this project.

## Unreleased

### New

- monitor: per-path sampling errors no longer abort the poll cycle

## v0.4.0 — 2026-07-02

### Breaking Changes

- station: instrument names are now normalized (NFC, lowercase,
  underscores), configs relying on case-distinct names must be updated

### Improved Drivers

- cryomag: heater settle time is configurable via heater_settle_seconds
- decadac: ramp completion polls the slope register instead of sleeping

### Fixed

- rcspdt: SWPORT? bitmask parsing for boxes with more than 4 switches

## v0.3.0 — 2026-04-18

### New Drivers

- rcspdt: Mini-Circuits RC-SPDT switch matrix

### Improved

- config: deprecated keys are migrated with a warning
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, c.Entries, 3)

	un, ok := c.Unreleased()
	require.True(t, ok)
	assert.False(t, un.Released())
	assert.True(t, un.Date.IsZero())

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "v0.4.0", latest.Version)
	assert.Equal(t, time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC), latest.Date)
	require.Len(t, latest.Sections, 3)

	drivers, ok := latest.Section("Improved Drivers")
	require.True(t, ok)
	assert.Len(t, drivers.Items, 2)
	assert.Contains(t, drivers.Items[0], "heater_settle_seconds")

	// Continuation lines fold into the item.
	breaking, ok := latest.Section("Breaking Changes")
	require.True(t, ok)
	require.Len(t, breaking.Items, 1)
	assert.Contains(t, breaking.Items[0], "case-distinct names")
}

func TestFind(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	e, ok := c.Find("v0.3.0")
	require.True(t, ok)
	assert.Equal(t, "v0.3.0", e.Version)

	_, ok = c.Find("v9.9.9")
	assert.False(t, ok)
}

func TestParseRejectsBadHeadings(t *testing.T) {
	cases := map[string]string{
		"missing date":  "## v1.0.0\n",
		"bad version":   "## 1.0.0 — 2026-01-01\n",
		"bad date":      "## v1.0.0 — first of June\n",
		"stray section": "### Fixed\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	rendered := c.Render()
	c2, err := Parse([]byte(rendered))
	require.NoError(t, err)
	assert.Equal(t, c.Entries, c2.Entries)

	// Deterministic: rendering twice is identical.
	assert.Equal(t, rendered, c2.Render())
}

func TestRenderCanonicalSectionOrder(t *testing.T) {
	e := Entry{
		Version: "v1.0.0",
		Date:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Sections: []Section{
			{Title: "Fixed", Items: []string{"a fix"}},
			{Title: "Breaking Changes", Items: []string{"a break"}},
			{Title: "Docs", Items: []string{"a note"}},
		},
	}
	out := e.Render()
	breakIdx := strings.Index(out, "### Breaking Changes")
	fixedIdx := strings.Index(out, "### Fixed")
	docsIdx := strings.Index(out, "### Docs")
	assert.Less(t, breakIdx, fixedIdx)
	assert.Less(t, fixedIdx, docsIdx)
}
