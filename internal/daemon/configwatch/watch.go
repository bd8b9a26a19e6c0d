// Package configwatch reports edits of the partsd config file while the
// application runs.
package configwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jacoelho/partstore/log"
)

// DefaultDebounceDelay coalesces editors that write a file in several steps.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher is a part that watches a single file.
type Watcher struct {
	path          string
	debounceDelay time.Duration
	onChange      func(path string)
	logger        log.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	debounce *time.Timer
	wg       sync.WaitGroup
}

// New creates a watcher for path. onChange may be nil; changes are always logged.
func New(path string, debounceDelay time.Duration, onChange func(string), logger log.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}
	return &Watcher{
		path:          filepath.Clean(path),
		debounceDelay: debounceDelay,
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching the file's directory.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	// editors often replace the file, so the directory is watched
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	w.mu.Lock()
	w.watcher = fw
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fw)

	w.logger.Info("config watcher started", log.String("path", w.path))
	return nil
}

// Stop ends watching and waits for the loop to exit.
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	fw, cancel := w.watcher, w.cancel
	w.watcher, w.cancel = nil, nil
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("config file changed, restart to apply", log.String("path", w.path))
		if w.onChange != nil {
			w.onChange(w.path)
		}
	})
}
