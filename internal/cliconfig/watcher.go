package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/holoship/pkg/log"
)

// DefaultReloadDelay coalesces bursts of writes from editors.
const DefaultReloadDelay = 100 * time.Millisecond

// Watcher reloads a TOML config file when it changes on disk.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(FileConfig)
	logger   log.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher watches path and calls onChange with every successfully
// parsed version of the file.
func NewWatcher(path string, onChange func(FileConfig), logger log.Logger) *Watcher {
	return &Watcher{
		path:     path,
		delay:    DefaultReloadDelay,
		onChange: onChange,
		logger:   log.OrNoop(logger).With(log.String("component", "config_watcher")),
	}
}

// Run watches the file's directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching config file", log.String("path", w.path))

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
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
	w.debounce = time.AfterFunc(w.delay, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	w.logger.Info("config reloaded", log.String("path", w.path))
	w.onChange(fc)
}
