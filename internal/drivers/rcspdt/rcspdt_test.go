package rcspdt

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbridge/qbridge/internal/instrument"
)

// fakeBox simulates an RC-4SPDT over its line protocol.
type fakeBox struct {
	model string
	mask  int64
}

func (f *fakeBox) Ask(_ context.Context, cmd string) (string, error) {
	switch {
	case cmd == "FIRMWARE?":
		return "C8-1", nil
	case cmd == "MN?":
		return "MN=" + f.model, nil
	case cmd == "SN?":
		return "SN=11501260001", nil
	case cmd == "SWPORT?":
		return fmt.Sprintf("%d", f.mask), nil
	case strings.HasPrefix(cmd, "SET"):
		// SET<letter>=<0|1>
		letter := cmd[3]
		bit := int64(1) << uint(letter-'A')
		if strings.HasSuffix(cmd, "=1") {
			f.mask |= bit
		} else {
			f.mask &^= bit
		}
		return "1", nil
	}
	return "", fmt.Errorf("unexpected command %q", cmd)
}

func (f *fakeBox) Write(ctx context.Context, cmd string) error {
	_, err := f.Ask(ctx, cmd)
	return err
}

func (f *fakeBox) Close() error { return nil }

func newConnected(t *testing.T, model string) (*Device, *fakeBox) {
	t.Helper()
	fake := &fakeBox{model: model}
	dev := New(instrument.NewBase("switch1", fake))
	require.NoError(t, dev.Connect(context.Background()))
	return dev, fake
}

func TestConnectCountsSwitchesFromModel(t *testing.T) {
	dev, _ := newConnected(t, "RC-4SPDT-A18")
	assert.Len(t, dev.Switches(), 4)

	_, ok := dev.Submodule("switch_a")
	assert.True(t, ok)
	_, ok = dev.Submodule("switch_e")
	assert.False(t, ok)
}

func TestConnectRejectsUnparsableModel(t *testing.T) {
	fake := &fakeBox{model: "RC-XSPDT"}
	dev := New(instrument.NewBase("switch1", fake))
	assert.ErrorIs(t, dev.Connect(context.Background()), ErrProtocol)
}

func TestIDNStripsPrefixes(t *testing.T) {
	dev, _ := newConnected(t, "RC-1SPDT-A18")
	idn, err := dev.IDN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mini-Circuits", idn["vendor"])
	assert.Equal(t, "RC-1SPDT-A18", idn["model"])
	assert.Equal(t, "11501260001", idn["serial"])
	assert.Equal(t, "C8-1", idn["firmware"])
}

func TestPositionSetGet(t *testing.T) {
	dev, fake := newConnected(t, "RC-4SPDT-A18")
	ctx := context.Background()
	b := dev.Switches()[1]

	require.NoError(t, b.Position.Set(ctx, 2))
	assert.Equal(t, int64(0b0010), fake.mask)

	pos, err := b.Position.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	// Neighbours stay in position 1.
	pos, err = dev.Switches()[0].Position.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	require.NoError(t, b.Position.Set(ctx, 1))
	assert.Equal(t, int64(0), fake.mask)
}

func TestPositionRejectsOutOfRange(t *testing.T) {
	dev, _ := newConnected(t, "RC-2SPDT-A18")
	err := dev.Switches()[0].Position.Set(context.Background(), 3)
	assert.Error(t, err)
}

func TestSetAll(t *testing.T) {
	dev, fake := newConnected(t, "RC-4SPDT-A18")
	require.NoError(t, dev.SetAll(context.Background(), 2))
	assert.Equal(t, int64(0b1111), fake.mask)
}
