package logscan

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"level":"info","service":"qbridge","component":"station","event":"connect.start","instrument":"dac1","time":"2026-08-23T10:00:00Z","message":"connecting"}
panic: something went wrong
goroutine 1 [running]:
{"level":"info","service":"qbridge","component":"station","event":"connect.done","instrument":"dac1","time":"2026-08-23T10:00:02Z","message":"connected"}
{"level":"warn","service":"qbridge","component":"monitor","event":"poll.slow","time":"2026-08-23T10:00:05Z","message":"slow poll"}
`

func TestParseSkipsNonJSONLines(t *testing.T) {
	recs, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "connect.start", recs[0].Event)
	assert.Equal(t, "station", recs[0].Component)
	assert.Equal(t, "dac1", recs[0].Fields["instrument"])
	assert.Equal(t, time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC), recs[0].Time)
}

func TestFilterSelect(t *testing.T) {
	recs, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)

	station := Filter{Component: "station"}.Select(recs)
	assert.Len(t, station, 2)

	warns := Filter{Level: "warn"}.Select(recs)
	require.Len(t, warns, 1)
	assert.Equal(t, "poll.slow", warns[0].Event)

	none := Filter{Component: "station", Level: "warn"}.Select(recs)
	assert.Empty(t, none)
}

func TestTimeDifference(t *testing.T) {
	recs, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)

	starts := Filter{Event: "connect.start"}.Select(recs)
	dones := Filter{Event: "connect.done"}.Select(recs)
	deltas, err := TimeDifference(starts, dones)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.InDelta(t, 2.0, deltas[0], 1e-9)

	_, err = TimeDifference(recs, starts)
	assert.Error(t, err)
}

func TestCaptureRoundTrip(t *testing.T) {
	c := NewCapture()
	_, err := c.Write([]byte(`{"level":"debug","event":"x","time":"2026-08-23T11:00:00Z"}` + "\n"))
	require.NoError(t, err)

	recs := c.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "x", recs[0].Event)
}
