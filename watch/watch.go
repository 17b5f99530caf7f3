// Package watch re-runs a callback whenever a single file's content changes.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename keep being observed. Bursts of events are
// debounced and a content hash suppresses callbacks for writes that leave
// the file unchanged.
package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long to wait for more changes before firing.
const DefaultDebounce = 300 * time.Millisecond

// Func receives the file content after each change. Errors are logged and
// watching continues.
type Func func(ctx context.Context, content []byte) error

// Watcher observes one file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	lastHash [sha256.Size]byte
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for path. The file must exist.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, err
	}

	w := &Watcher{path: abs, debounce: DefaultDebounce, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run calls fn once with the current content and again after every change,
// until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, fn Func) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.fire(ctx, fn)
	w.logger.Info("Watching for changes", "path", w.path, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)

		case <-timer.C:
			w.fire(ctx, fn)
		}
	}
}

// fire invokes fn when the content hash differs from the last one seen.
func (w *Watcher) fire(ctx context.Context, fn Func) {
	content, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("Failed to read watched file", "path", w.path, "error", err)
		}
		return
	}

	sum := sha256.Sum256(content)
	if sum == w.lastHash {
		w.logger.Debug("Content unchanged", "path", w.path)
		return
	}
	w.lastHash = sum

	if err := fn(ctx, content); err != nil {
		w.logger.Warn("Watch callback failed", "path", w.path, "error", err)
	}
}
