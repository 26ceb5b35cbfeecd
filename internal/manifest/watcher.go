package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"rigproc/internal/logging"
)

// Watcher keeps a manifest in sync with the steps directory of a process.
type Watcher struct {
	store    *Store
	lister   UnitLister
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onSync   func(SyncResult)

	watcher  *fsnotify.Watcher
	trigger  chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
	// OnSync is called after every sync that changed the manifest.
	OnSync func(SyncResult)
}

// NewWatcher prepares a watcher over stepsDir. Call Start to begin watching.
func NewWatcher(store *Store, lister UnitLister, stepsDir string, opts WatcherOptions) (*Watcher, error) {
	if store == nil || lister == nil {
		return nil, fmt.Errorf("manifest watcher requires store and lister")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		store:    store,
		lister:   lister,
		root:     stepsDir,
		debounce: debounce,
		logger:   logging.NewComponentLogger(opts.Logger, "manifest-watcher"),
		onSync:   opts.OnSync,
		watcher:  fsw,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start syncs once and then watches the steps tree until ctx is done or Stop
// is called. The watcher is closed when Start fails.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		_ = w.Stop()
		return fmt.Errorf("create steps directory: %w", err)
	}
	if err := w.addTree(w.root); err != nil {
		_ = w.Stop()
		return err
	}
	w.sync(ctx)

	go w.watchLoop(ctx)
	go w.syncLoop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", logging.Error(err))
					}
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug("steps tree changed",
					logging.String("path", event.Name),
					logging.String("op", event.Op.String()),
				)
				w.requestSync()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("steps watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) syncLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.done:
			stop()
			return
		case <-w.trigger:
			stop()
			timer = time.AfterFunc(w.debounce, func() { w.sync(ctx) })
		}
	}
}

func (w *Watcher) requestSync() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) sync(ctx context.Context) {
	result, err := w.store.Sync(ctx, w.lister)
	if err != nil {
		w.logger.Error("manifest sync failed", logging.Error(err))
		return
	}
	if result.Changed() && w.onSync != nil {
		w.onSync(result)
	}
}
