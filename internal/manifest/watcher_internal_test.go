package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"rigproc/internal/logging"
)

type emptyLister struct{}

func (emptyLister) List() ([]string, error) { return nil, nil }

func TestWatcherStartFailureClosesWatcher(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "steps")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(NewStore(dir, logging.NewNop()), emptyLister{}, filepath.Join(blocker, "nested"), WatcherOptions{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when the steps path is a file")
	}
	if err := w.watcher.Add(dir); !errors.Is(err, fsnotify.ErrClosed) {
		t.Fatalf("expected closed watcher, Add returned %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}
