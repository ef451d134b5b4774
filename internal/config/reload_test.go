package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderReloadSwapsConfig(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	initial, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(initial, path)
	assert.Equal(t, ":9090", h.Get().Listen)

	notify := make(chan AppConfig, 1)
	h.RegisterListener(notify)

	require.NoError(t, os.WriteFile(path, []byte("listen: \":7070\"\n"), 0o644))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, ":7070", h.Get().Listen)

	select {
	case got := <-notify:
		assert.Equal(t, ":7070", got.Listen)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolderReloadKeepsOldOnBrokenFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	initial, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(initial, path)

	require.NoError(t, os.WriteFile(path, []byte("readings_backend: etcd\n"), 0o644))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, ":9090", h.Get().Listen)
}

func TestStartWatcherWithoutPathIsNoOp(t *testing.T) {
	h := NewHolder(Defaults(), "")
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("debounced watcher test")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o644))
	initial, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(initial, path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("listen: \":7070\"\n"), 0o644))
	assert.Eventually(t, func() bool {
		return h.Get().Listen == ":7070"
	}, 3*time.Second, 50*time.Millisecond)
}
