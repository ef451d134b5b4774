package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTCPAskRoundTrip(t *testing.T) {
	mock := NewMockServer(func(cmd string) string {
		if cmd == "MN?" {
			return "MN=RC-4SPDT-A18"
		}
		return ""
	})
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr()})
	defer tr.Close() //nolint:errcheck // test cleanup

	resp, err := tr.Ask(context.Background(), "MN?")
	require.NoError(t, err)
	assert.Equal(t, "MN=RC-4SPDT-A18", resp)
	assert.Equal(t, []string{"MN?"}, mock.Received())
}

func TestTCPCustomResponseTerminator(t *testing.T) {
	mock := NewMockServer(func(cmd string) string {
		if cmd == "TEMP?" {
			return "4.21"
		}
		return ""
	})
	mock.SetTerminator(";")
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr(), ResponseTerminator: ";"})
	defer tr.Close() //nolint:errcheck // test cleanup

	resp, err := tr.Ask(context.Background(), "TEMP?")
	require.NoError(t, err)
	assert.Equal(t, "4.21", resp)
}

func TestTCPAskTimesOutWithoutResponse(t *testing.T) {
	mock := NewMockServer(nil) // consumes commands, never answers
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr(), CommandTimeout: 100 * time.Millisecond})
	defer tr.Close() //nolint:errcheck // test cleanup

	_, err := tr.Ask(context.Background(), "PING?")
	assert.Error(t, err)
}

func TestTCPReconnectsAfterError(t *testing.T) {
	mock := NewMockServer(func(cmd string) string { return "OK" })
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr(), CommandTimeout: 100 * time.Millisecond})
	defer tr.Close() //nolint:errcheck // test cleanup

	// Break the first connection by asking a command the mock never answers.
	m2 := NewMockServer(nil)
	tr2 := NewTCP(TCPConfig{Address: m2.Addr(), CommandTimeout: 50 * time.Millisecond})
	_, err := tr2.Ask(context.Background(), "X?")
	require.Error(t, err)
	m2.Close()
	require.NoError(t, tr2.Close())

	// Healthy transport keeps working across commands.
	for i := 0; i < 3; i++ {
		resp, err := tr.Ask(context.Background(), "PING?")
		require.NoError(t, err)
		assert.Equal(t, "OK", resp)
	}
}

func TestTCPClosedTransportRejectsCommands(t *testing.T) {
	mock := NewMockServer(func(cmd string) string { return "OK" })
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr()})
	require.NoError(t, tr.Close())

	_, err := tr.Ask(context.Background(), "PING?")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTCPFlushDiscardsBanner(t *testing.T) {
	mock := NewMockServer(func(cmd string) string { return "PONG" })
	mock.SetBanner("Model 2026 ready")
	defer mock.Close()

	tr := NewTCP(TCPConfig{Address: mock.Addr()})
	defer tr.Close() //nolint:errcheck // test cleanup

	// Without a flush the banner would be read as the first response.
	_, err := tr.Ask(context.Background(), "NOOP?")
	require.NoError(t, err)
	require.NoError(t, tr.Flush())

	resp, err := tr.Ask(context.Background(), "PING?")
	require.NoError(t, err)
	assert.Equal(t, "PONG", resp)
}
