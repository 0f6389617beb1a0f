// Package configwatch reloads screen definitions when the screens file changes.
package configwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain/entity"
)

const (
	defaultDebounce    = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Applier receives validated screen definitions.
type Applier interface {
	ApplyDefinitions(defs []entity.ScreenDefinition) error
}

// Watcher watches the screens file's directory, debounces bursts of writes,
// skips unchanged content and applies the parsed definitions. A file that
// fails to parse or validate is rejected and the running screens are kept.
type Watcher struct {
	path     string
	applier  Applier
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	lastHash uint64
	timer    *time.Timer
	applied  int
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, applier Applier, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     path,
		applier:  applier,
		debounce: defaultDebounce,
		logger:   logger.Named("config-watch"),
	}
}

// Load reads the file once and records its hash so the first watch event
// for identical content is skipped.
func (w *Watcher) Load() ([]entity.ScreenDefinition, error) {
	defs, hash, err := config.LoadScreens(w.path)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
	return defs, nil
}

// Reload parses the file and applies it if the content changed.
// It reports whether definitions were applied.
func (w *Watcher) Reload() (bool, error) {
	defs, hash, err := config.LoadScreens(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hash == w.lastHash {
		w.logger.Debug("screens file unchanged; skipping", zap.String("path", w.path))
		return false, nil
	}
	if err := w.applier.ApplyDefinitions(defs); err != nil {
		return false, fmt.Errorf("applying screens file: %w", err)
	}
	w.lastHash = hash
	w.applied++
	w.logger.Info("screens file applied",
		zap.String("path", w.path),
		zap.Int("screens", len(defs)),
		zap.String("hash", fmt.Sprintf("%x", hash)),
	)
	return true, nil
}

// Applied returns how many reloads were applied.
func (w *Watcher) Applied() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applied
}

// Watch blocks until ctx ends, recreating the fsnotify watcher with backoff
// if it breaks.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	backoff := restartBackoffBase

	defer w.stopTimer()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := w.open(dir)
		if err != nil {
			w.logger.Warn("config watch init failed", zap.String("dir", dir), zap.Error(err))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, restartBackoffMax)
			continue
		}
		backoff = restartBackoffBase
		w.logger.Debug("config watcher started", zap.String("dir", dir), zap.String("file", file))

		broken := w.run(ctx, fw, file)
		_ = fw.Close()
		if !broken {
			return nil
		}

		w.logger.Warn("config watcher stopped; restarting", zap.String("dir", dir), zap.Duration("backoff", backoff))
		if !sleep(ctx, backoff) {
			return nil
		}
		backoff = min(backoff*2, restartBackoffMax)
	}
}

func (w *Watcher) open(dir string) (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return fw, nil
}

// run consumes events until ctx ends (false) or the watcher breaks (true).
func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, file string) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-fw.Events:
			if !ok {
				return true
			}
			// Editors often replace the file, so match on the base name.
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return true
			}
			if err == nil {
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				w.logger.Warn("config watch overflow; forcing reload", zap.Error(err))
				w.schedule()
				continue
			}
			w.logger.Warn("config watch error", zap.Error(err))
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if _, err := w.Reload(); err != nil {
			w.logger.Warn("screens file rejected", zap.String("path", w.path), zap.Error(err))
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
