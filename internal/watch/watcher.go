package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a trigger fires.
const DefaultDebounce = 500 * time.Millisecond

// DefaultIgnoreDirs are directory names never watched.
var DefaultIgnoreDirs = []string{".git", "node_modules", ".next", ".turbo", "dist"}

// ErrNoPaths is returned by New without any directory to watch.
var ErrNoPaths = errors.New("watch: no paths given")

// Event reports that files changed.
type Event struct {
	// Paths are the changed files, sorted and deduplicated.
	Paths []string

	// At is when the debounce interval elapsed.
	At time.Time
}

// Watcher watches directory trees and emits debounced Events.
type Watcher struct {
	fsw        *fsnotify.Watcher
	debounce   time.Duration
	ignoreDirs []string
	ignore     []string
	logger     *slog.Logger
	triggers   chan Event
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnoreDirs replaces the directory names that are skipped.
func WithIgnoreDirs(names ...string) Option {
	return func(w *Watcher) {
		w.ignoreDirs = names
	}
}

// WithIgnorePaths skips events for files under the given paths, such as the
// screenshot output directory, so that a run does not retrigger itself.
func WithIgnorePaths(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher over paths and their subdirectories.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{
		fsw:        fsw,
		debounce:   DefaultDebounce,
		ignoreDirs: DefaultIgnoreDirs,
		triggers:   make(chan Event, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	for _, p := range paths {
		if err := w.addTree(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Triggers returns the channel Events are delivered on. It is closed when
// Run returns.
func (w *Watcher) Triggers() <-chan Event {
	return w.triggers
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	slices.Sort(list)
	return list
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory removed mid-walk is not an error.
			if errors.Is(err, os.ErrNotExist) && path != root {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	return slices.Contains(w.ignoreDirs, name)
}

// relevant reports whether an event should count toward a trigger.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(ev.Name), "/") {
		if w.skipDir(part) {
			return false
		}
	}

	if len(w.ignore) > 0 {
		abs, err := filepath.Abs(ev.Name)
		if err != nil {
			return true
		}
		for _, ignored := range w.ignore {
			if abs == ignored || strings.HasPrefix(abs, ignored+string(filepath.Separator)) {
				return false
			}
		}
	}
	return true
}

// Run processes file system events until ctx is done. It closes the
// Triggers channel on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.triggers)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			w.logger.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = struct{}{}
			arm()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)

			select {
			case w.triggers <- Event{Paths: paths, At: time.Now()}:
				clear(pending)
			default:
				// The consumer is still busy with the previous Event.
				arm()
			}
		}
	}
}
