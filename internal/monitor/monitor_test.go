package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePSU answers the cryomag line protocol. gate, when set, blocks TEMP?
// queries until released; entered is closed when the first query blocks.
type fakePSU struct {
	mu      sync.Mutex
	broken  bool
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (f *fakePSU) Ask(ctx context.Context, cmd string) (string, error) {
	switch {
	case cmd == "*IDN?":
		return "QBRIDGE,CRYOMAG-9,CM90012,1.4.2", nil
	case cmd == "HEATER?":
		return "HEATER:OFF", nil
	case cmd == "FIELD?":
		return "FIELD:0.5T", nil
	case strings.HasPrefix(cmd, "TEMP? "):
		if f.gate != nil {
			f.once.Do(func() { close(f.entered) })
			select {
			case <-f.gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		f.mu.Lock()
		broken := f.broken
		f.mu.Unlock()
		if broken && strings.HasSuffix(cmd, "PT2") {
			return "garbage", nil
		}
		return "TEMP:4.2K", nil
	}
	return "", fmt.Errorf("unexpected command %q", cmd)
}

func (f *fakePSU) Write(ctx context.Context, cmd string) error {
	_, err := f.Ask(ctx, cmd)
	return err
}

func (f *fakePSU) Close() error { return nil }

func newTestStation(t *testing.T, psu *fakePSU) *station.Station {
	t.Helper()
	s, err := station.New(
		[]station.InstrumentConfig{{Name: "magnet_psu", Driver: "cryomag", Address: "x"}},
		station.WithTransportFactory(func(string) instrument.Transport { return psu }),
	)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func TestPollRecordsReadings(t *testing.T) {
	psu := &fakePSU{}
	st := newTestStation(t, psu)
	store := readings.NewMemory(0)
	c := cache.NewMemory(0)

	snapPath := filepath.Join(t.TempDir(), "latest.json")
	mon := New(st, store, c, Config{
		Paths: []string{
			"magnet_psu.magnet_temp",
			"magnet_psu.pt1_temp",
			"magnet_psu.output_field",
		},
		SnapshotPath: snapPath,
		CacheTTL:     time.Minute,
	})

	status, err := mon.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, status.Readings)
	assert.Empty(t, status.Error)

	latest, err := store.Latest(context.Background(), "magnet_psu.output_field")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, latest.Value, 1e-9)
	assert.Equal(t, "T", latest.Unit)

	v, ok := c.Get("magnet_psu.magnet_temp")
	require.True(t, ok)
	assert.InDelta(t, 4.2, v.(float64), 1e-9)

	// Snapshot file is valid JSON with the station tree.
	raw, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	var snap snapshotFile
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Contains(t, snap.Instruments, "magnet_psu")
	assert.Equal(t, 3, snap.Status.Readings)
}

func TestPollContinuesPastFailedSensor(t *testing.T) {
	psu := &fakePSU{broken: true}
	st := newTestStation(t, psu)
	store := readings.NewMemory(0)

	mon := New(st, store, nil, Config{
		Paths: []string{"magnet_psu.pt2_temp", "magnet_psu.pt1_temp"},
	})

	status, err := mon.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, status.Readings)
	assert.NotEmpty(t, status.Error)

	// The healthy sensor was still recorded.
	_, err = store.Latest(context.Background(), "magnet_psu.pt1_temp")
	assert.NoError(t, err)
}

func TestPollRejectsOverlap(t *testing.T) {
	psu := &fakePSU{gate: make(chan struct{}), entered: make(chan struct{})}
	st := newTestStation(t, psu)
	mon := New(st, readings.NewMemory(0), nil, Config{
		Paths: []string{"magnet_psu.magnet_temp"},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = mon.Poll(context.Background())
	}()

	// Wait until the first poll is blocked inside the transport.
	<-psu.entered
	_, err := mon.Poll(context.Background())
	assert.ErrorIs(t, err, ErrPollRunning)

	close(psu.gate)
	<-done

	// After completion a new poll is allowed again.
	_, err = mon.Poll(context.Background())
	assert.NoError(t, err)
}

func TestPollUnknownPath(t *testing.T) {
	psu := &fakePSU{}
	st := newTestStation(t, psu)
	mon := New(st, readings.NewMemory(0), nil, Config{
		Paths: []string{"ghost.temp"},
	})

	status, err := mon.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, status.Readings)
}

func TestRunnerIntervalJitter(t *testing.T) {
	runner := NewRunner(nil, time.Minute)
	for i := 0; i < 100; i++ {
		d := runner.next()
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.Less(t, d, time.Minute+6*time.Second)
	}
}

func TestRunnerPollsUntilCancelled(t *testing.T) {
	psu := &fakePSU{}
	st := newTestStation(t, psu)
	store := readings.NewMemory(0)
	mon := New(st, store, nil, Config{Paths: []string{"magnet_psu.magnet_temp"}})

	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(mon, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	assert.Eventually(t, func() bool {
		got, err := store.Range(context.Background(), "magnet_psu.magnet_temp",
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		return err == nil && len(got) >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
