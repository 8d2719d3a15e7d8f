// Package watcher re-runs a callback when declaration files change.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a reload function when a watched file changes
type Watcher struct {
	watcher    *fsnotify.Watcher
	reloadFunc func(string) error
	debouncer  *Debouncer

	// files are the watched absolute paths; their directories are what
	// fsnotify watches so editors that replace files are still seen
	files map[string]bool
	done  chan struct{}
	wg    sync.WaitGroup
}

// Debouncer prevents rapid-fire reloads
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// NewWatcher creates a new file watcher. A zero debounce uses DefaultDebounce.
func NewWatcher(reloadFunc func(string) error, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:    fsWatcher,
		reloadFunc: reloadFunc,
		debouncer:  &Debouncer{duration: debounce},
		files:      make(map[string]bool),
		done:       make(chan struct{}),
	}, nil
}

// Watch starts watching files
func (w *Watcher) Watch(paths ...string) error {
	logger.Info("Starting file watcher", zap.Strings("paths", paths))

	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		w.files[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// processEvents processes file system events
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// handleEvent handles a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.files[filepath.Clean(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	logger.Debug("File changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))

	name := event.Name
	w.debouncer.Debounce(func() {
		if err := w.reloadFunc(name); err != nil {
			logger.Error("Failed to regenerate after file change",
				zap.String("file", name),
				zap.Error(err))
		} else {
			logger.Info("Regenerated after file change", zap.String("file", name))
		}
	})
}

// Debounce runs fn once no further call arrives within the duration
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Stop cancels a pending call
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
