package trains

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a file-backed train list into a Store whenever the file is
// written or recreated. It watches the parent directory so editors that
// replace the file by rename are picked up too.
type Watcher struct {
	loader *FileLoader
	store  *Store
	logger logging.Logger
	path   string
	fsw    *fsnotify.Watcher
}

func NewWatcher(loader *FileLoader, store *Store, logger logging.Logger) (*Watcher, error) {
	path, err := filepath.Abs(loader.Path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		loader: loader,
		store:  store,
		logger: logger.With("module", "trains_watcher"),
		path:   path,
		fsw:    fsw,
	}, nil
}

// Run processes events until ctx is done and then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			n, err := Reload(ctx, w.loader, w.store)
			if err != nil {
				w.logger.Warn(ctx, "trains reload failed, keeping previous list", "error", err)
				continue
			}
			w.logger.Info(ctx, "trains reloaded", "count", n)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", "error", err)
		}
	}
}
