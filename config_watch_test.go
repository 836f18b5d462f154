package packforge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.yaml")
	require.NoError(t, writeFile(path, "mode: initial\n"))

	scope := NewConfigScope("watched", path, NewDeferredLogger())
	require.NoError(t, scope.Load())

	reloaded := make(chan struct{}, 4)
	_, err := scope.Changes().Subscribe(func(context.Context, cloudevents.Event) error {
		reloaded <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	watcher, err := NewConfigWatcher(NewDeferredLogger())
	require.NoError(t, err)
	defer watcher.Stop()
	require.NoError(t, watcher.Watch(scope))
	watcher.Start()

	require.NoError(t, writeFile(path, "mode: updated\n"))

	// Truncate and write may arrive as separate events; wait until a reload
	// observed the final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			if mode, ok := scope.GetString("mode"); ok && mode == "updated" {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not reload the scope after a file write")
		}
	}
}

func TestConfigWatcherRejectsNilScope(t *testing.T) {
	watcher, err := NewConfigWatcher(NewDeferredLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	require.ErrorIs(t, watcher.Watch(nil), ErrConfigScopeNil)
}
