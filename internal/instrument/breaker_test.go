package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// First command after the reset timeout probes the instrument.
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Execute(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	require.NoError(t, b.Execute(func() error { return nil }))
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	assert.Equal(t, StateClosed, b.State())
}
