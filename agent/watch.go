package agent

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/runmesh/logging"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Logger logging.Logger
	// OnReload is called after every reload attempt with its outcome.
	OnReload func(err error)
}

// Watcher reloads a Catalog whenever its backing file changes. A file that
// fails to parse leaves the catalog untouched.
type Watcher struct {
	path    string
	catalog *Catalog
	opts    WatcherOptions
}

// NewWatcher creates a watcher for path feeding catalog.
func NewWatcher(path string, catalog *Catalog, optFns ...func(o *WatcherOptions)) *Watcher {
	opts := WatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Watcher{path: path, catalog: catalog, opts: opts}
}

// Reload re-reads the file into the catalog.
func (w *Watcher) Reload() error {
	specs, err := LoadFile(w.path)
	if err == nil {
		err = w.catalog.Replace(specs)
	}

	if err != nil {
		w.opts.Logger.Warn("agent.catalog.reload_failed", "path", w.path, "error", err.Error())
	} else {
		w.opts.Logger.Info("agent.catalog.reloaded", "path", w.path, "agent_count", len(specs))
	}

	if w.opts.OnReload != nil {
		w.opts.OnReload(err)
	}

	return err
}

// Run watches the file's directory (editors often replace files via rename)
// until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				_ = w.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("agent.catalog.watch_error", "path", w.path, "error", err.Error())
		}
	}
}
