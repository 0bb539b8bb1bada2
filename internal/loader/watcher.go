// ABOUTME: Watches directories for created or modified material files
// ABOUTME: Rapid successive writes to one file are coalesced before the handler runs
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must be quiet before it is handled
const DefaultSettle = 500 * time.Millisecond

// Watcher reports material files that were created or written
type Watcher struct {
	loader *Loader
	settle time.Duration
	logger *zap.Logger
}

// NewWatcher creates a watcher filtering with loader
func NewWatcher(loader *Loader, settle time.Duration, logger *zap.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{loader: loader, settle: settle, logger: logger}
}

// Watch calls handle for every settled file change under root until ctx is done.
// New subdirectories are watched as they appear.
func (w *Watcher) Watch(ctx context.Context, root string, handle func(path string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addTree(fsw, root); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		var timer *time.Timer
		timer = time.AfterFunc(w.settle, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == timer {
				delete(pending, path)
			}
			mu.Unlock()
			if ctx.Err() == nil {
				handle(path)
			}
		})
		pending[path] = timer
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.isNewDir(event) {
				if err := w.addTree(fsw, event.Name); err != nil {
					w.logger.Warn("cannot watch directory", zap.String("path", event.Name), zap.Error(err))
				}
				continue
			}
			if path, ok := w.handleEvent(event); ok {
				schedule(path)
			}
		}
	}
}

// handleEvent returns the file to ingest for an event, if any
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !w.loader.Accepts(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) isNewDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir() && !w.loader.SkipDir(filepath.Base(event.Name))
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.loader.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
