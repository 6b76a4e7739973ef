package tools

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ============================================================================
// TOOL DIRECTORY WATCHER
// ============================================================================

// Watcher reloads the tool registry when scripts in the tool directory are
// created, modified or removed. Events are debounced so a burst of writes
// triggers a single reload.
type Watcher struct {
	registry *Registry
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	isWatching bool
}

// NewWatcher creates a watcher for the given registry and tool directory.
func NewWatcher(reg *Registry, dir string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		registry: reg,
		dir:      dir,
		watcher:  fsWatcher,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Start begins watching. Reloads run until the context is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	var watchCtx context.Context
	watchCtx, w.cancel = context.WithCancel(ctx)
	w.isWatching = true

	go w.watchEvents(watchCtx)

	slog.Info("watching tool directory", "dir", w.dir)
	return nil
}

// Stop stops watching and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}
	w.cancel()
	w.isWatching = false
	return w.watcher.Close()
}

func (w *Watcher) watchEvents(ctx context.Context) {
	var timer *time.Timer
	reload := func() {
		if err := w.registry.Reload(w.dir); err != nil {
			slog.Warn("tool reload failed", "dir", w.dir, "error", err)
			return
		}
		slog.Debug("tool registry reloaded", "dir", w.dir, "tools", w.registry.Count())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, allowed := interpretersByExt[filepath.Ext(event.Name)]; !allowed {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("tool watcher error", "error", err)
		}
	}
}
