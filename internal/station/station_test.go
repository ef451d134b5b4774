package station

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbridge/qbridge/internal/instrument"
)

// fakeSupplyTransport answers the cryomag line protocol.
type fakeSupplyTransport struct{ heater bool }

func (f *fakeSupplyTransport) Ask(_ context.Context, cmd string) (string, error) {
	switch {
	case cmd == "*IDN?":
		return "QBRIDGE,CRYOMAG-9,CM90012,1.4.2", nil
	case cmd == "HEATER?":
		if f.heater {
			return "HEATER:ON", nil
		}
		return "HEATER:OFF", nil
	case strings.HasPrefix(cmd, "HEATER:"):
		f.heater = cmd == "HEATER:ON"
		return cmd, nil
	case strings.HasPrefix(cmd, "TEMP? "):
		return "TEMP:4.2K", nil
	case cmd == "FIELD?":
		return "FIELD:0T", nil
	}
	return "", fmt.Errorf("unexpected command %q", cmd)
}

func (f *fakeSupplyTransport) Write(ctx context.Context, cmd string) error {
	_, err := f.Ask(ctx, cmd)
	return err
}

func (f *fakeSupplyTransport) Close() error { return nil }

// fakeBoxTransport answers the RC-SPDT line protocol for a 2-switch box.
type fakeBoxTransport struct{ mask int64 }

func (f *fakeBoxTransport) Ask(_ context.Context, cmd string) (string, error) {
	switch {
	case cmd == "FIRMWARE?":
		return "C8-1", nil
	case cmd == "MN?":
		return "MN=RC-2SPDT-A18", nil
	case cmd == "SN?":
		return "SN=001", nil
	case cmd == "SWPORT?":
		return fmt.Sprintf("%d", f.mask), nil
	case strings.HasPrefix(cmd, "SET"):
		return "1", nil
	}
	return "", fmt.Errorf("unexpected command %q", cmd)
}

func (f *fakeBoxTransport) Write(ctx context.Context, cmd string) error {
	_, err := f.Ask(ctx, cmd)
	return err
}

func (f *fakeBoxTransport) Close() error { return nil }

func fakeTransports(address string) instrument.Transport {
	if strings.HasPrefix(address, "box") {
		return &fakeBoxTransport{}
	}
	return &fakeSupplyTransport{}
}

func testConfigs() []InstrumentConfig {
	return []InstrumentConfig{
		{Name: "Magnet PSU", Driver: "cryomag", Address: "psu:7180"},
		{Name: "switch", Driver: "minicircuits_rc_spdt", Address: "box:23"},
	}
}

func newConnectedStation(t *testing.T) *Station {
	t.Helper()
	s, err := New(testConfigs(), WithTransportFactory(fakeTransports))
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New([]InstrumentConfig{{Name: "x", Driver: "nope", Address: "a"}},
		WithTransportFactory(fakeTransports))
	require.ErrorIs(t, err, ErrUnknownDriver)
	// The error lists the registered drivers.
	assert.Contains(t, err.Error(), "cryomag")
	assert.Contains(t, err.Error(), "decadac")
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	cfgs := []InstrumentConfig{
		{Name: "Magnet PSU", Driver: "cryomag", Address: "a"},
		{Name: "magnet_psu", Driver: "cryomag", Address: "b"},
	}
	_, err := New(cfgs, WithTransportFactory(fakeTransports))
	assert.ErrorIs(t, err, ErrDuplicateInstrument)
}

func TestConnectAndLookup(t *testing.T) {
	s := newConnectedStation(t)
	defer s.Close()

	inst, ok := s.Instrument("magnet_psu")
	require.True(t, ok)
	assert.Equal(t, "magnet_psu", inst.Name())

	// Lookup normalizes the queried name too.
	_, ok = s.Instrument("Magnet PSU")
	assert.True(t, ok)

	assert.Len(t, s.Instruments(), 2)
}

func TestResolve(t *testing.T) {
	s := newConnectedStation(t)
	defer s.Close()

	p, err := s.Resolve("magnet_psu.heater_switch")
	require.NoError(t, err)
	assert.Equal(t, "heater_switch", p.Name())

	p, err = s.Resolve("switch.switch_a.position")
	require.NoError(t, err)
	assert.Equal(t, "position", p.Name())

	_, err = s.Resolve("ghost.heater_switch")
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	_, err = s.Resolve("magnet_psu.nope")
	assert.ErrorIs(t, err, ErrUnknownParameter)

	_, err = s.Resolve("magnet_psu")
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

func TestSnapshot(t *testing.T) {
	s := newConnectedStation(t)
	defer s.Close()

	snap := s.Snapshot()
	require.Contains(t, snap, "magnet_psu")
	require.Contains(t, snap, "switch")
	assert.Equal(t, "magnet_psu", snap["magnet_psu"].Name)
	assert.Len(t, snap["switch"].Submodules, 2)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "magnet_psu", NormalizeName("  Magnet PSU "))
	assert.Equal(t, "rc_spdt", NormalizeName("RC-SPDT"))
	assert.Equal(t, "a_b", NormalizeName("a - b"))
}
