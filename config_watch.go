package packforge

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads config scopes when their backing files change on
// disk, which in turn fires each scope's change event and the global
// ConfigChanges hook. Hosts that edit participant config files while the
// loader runs get live reloads without polling.
type ConfigWatcher struct {
	logger  Logger
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	scopes map[string]*ConfigScope
	done   chan struct{}
}

// NewConfigWatcher creates a watcher. Call Watch for each scope of
// interest, then Start.
func NewConfigWatcher(logger Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	return &ConfigWatcher{
		logger:  logger,
		watcher: w,
		scopes:  make(map[string]*ConfigScope),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers a scope for reload on file change. The scope's parent
// directory is watched rather than the file itself so editors that replace
// the file (write to temp, rename over) still trigger.
func (w *ConfigWatcher) Watch(scope *ConfigScope) error {
	if scope == nil {
		return ErrConfigScopeNil
	}
	dir := filepath.Dir(scope.Path())

	w.mu.Lock()
	w.scopes[scope.Path()] = scope
	w.mu.Unlock()

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Start begins dispatching file events. It returns immediately; reloads
// happen on the watcher goroutine.
func (w *ConfigWatcher) Start() {
	go w.run()
}

func (w *ConfigWatcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			scope := w.scopes[event.Name]
			w.mu.Unlock()
			if scope == nil {
				continue
			}
			if err := scope.Reload(); err != nil {
				w.logger.Error("Config reload failed", "scope", scope.Name(), "error", err)
			} else {
				w.logger.Info("Config reloaded", "scope", scope.Name(), "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)
		}
	}
}

// Stop ends dispatching and releases the underlying watcher.
func (w *ConfigWatcher) Stop() error {
	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing config watcher: %w", err)
	}
	return nil
}
