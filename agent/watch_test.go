package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: a\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	w := NewWatcher(path, c)

	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: a\n  - id: b\n"), 0o600))
	require.NoError(t, w.Reload())
	assert.Equal(t, 2, c.Len())

	require.NoError(t, os.WriteFile(path, []byte("agents: [[["), 0o600))
	require.Error(t, w.Reload())
	assert.Equal(t, 2, c.Len(), "broken file keeps previous catalog")
}

func TestWatcher_RunPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: a\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	reloaded := make(chan error, 8)
	w := NewWatcher(path, c, func(o *WatcherOptions) {
		o.OnReload = func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Writes may race the watcher registration, so keep rewriting.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("agents:\n  - id: a\n  - id: b\n  - id: c\n"), 0o600)
		return c.Len() == 3
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
