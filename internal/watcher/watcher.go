// Package watcher implements the File Watcher + Change Analyzer :
// it debounces OS-level filesystem events per path into batched
// TransactionDeltas, applying glob ignore patterns and an extension
// whitelist, then hands the batch to a ChangeAnalyzer to classify scope
// before the orchestrator decides between patch and rebuild.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/codegraph-dev/codegraph/internal/errs"
)

// EventKind classifies one normalised filesystem change.
type EventKind int

// Event kinds the watcher emits after normalisation.
const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

// FileEvent is one normalised, filtered filesystem change.
type FileEvent struct {
	Path string
	Kind EventKind
}

// Config mirrors the `watcher: {...}` configuration block.
type Config struct {
	DebounceWindow time.Duration
	Extensions []string
	IgnoreGlobs []string
	Recursive bool
}

// Watcher debounces fsnotify events per path by Config.DebounceWindow,
// applying ignore-glob and extension filters, and flushes batches of
// FileEvent on Events().
type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher
	logger *slog.Logger
	events chan []FileEvent
	errors chan error
	done chan struct{}
	closeMu sync.Mutex
	closed bool
}

// New creates a Watcher rooted at root, recursing into subdirectories
// when cfg.Recursive is set.
func New(root string, cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.New(errs.CategoryTransient, "watcher.new", err)
	}

	w := &Watcher{
		cfg: cfg,
		fsw: fsw,
		logger: logger,
		events: make(chan []FileEvent, 64),
		errors: make(chan error, 16),
		done: make(chan struct{}),
	}

	if err := w.addRoot(root); err != nil {
		_ = fsw.Close()

		return nil, err
	}

	go w.run()

	return w, nil
}

func (w *Watcher) addRoot(root string) error {
	if !w.cfg.Recursive {
		return w.fsw.Add(root)
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if w.isIgnored(path) {
				return filepath.SkipDir
			}

			return w.fsw.Add(path)
		}

		return nil
	})
}

// Events returns the channel of debounced, filtered event batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of asynchronous watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and releases the underlying OS handle.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	close(w.done)

	return w.fsw.Close()
}

// debounceEntry tracks the most recently seen event for one path and
// when it was last observed, so rapid successive edits collapse into a
// single emitted event.
type debounceEntry struct {
	event FileEvent
	lastSeen time.Time
}

// run is the single-goroutine event loop: it owns debounceMap
// exclusively, so no locking is needed around it, matching the "small
// async runtime... single-threaded per responsibility" model.
func (w *Watcher) run() {
	window := w.cfg.DebounceWindow
	if window <= 0 {
		window = 200 * time.Millisecond
	}

	ticker := time.NewTicker(window)
	defer ticker.Stop()

	debounceMap := make(map[string]debounceEntry)

	for {
		select {
		case <-w.done:
			return

		case raw, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if ev, accept := w.normalise(raw); accept {
				debounceMap[ev.Path] = debounceEntry{event: ev, lastSeen: time.Now()}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.trySendError(err)

		case <-ticker.C:
			w.flush(debounceMap, window)
		}
	}
}

// flush emits a batch for every path whose debounce window has
// elapsed, and prunes entries older than 2x the debounce window per
// the back-pressure policy so memory stays bounded under a long-idle
// watcher.
func (w *Watcher) flush(debounceMap map[string]debounceEntry, window time.Duration) {
	now := time.Now()

	var batch []FileEvent

	for path, entry := range debounceMap {
		switch {
		case now.Sub(entry.lastSeen) >= window:
			batch = append(batch, entry.event)
			delete(debounceMap, path)
		case now.Sub(entry.lastSeen) >= 2*window:
			delete(debounceMap, path)
		}
	}

	if len(batch) == 0 {
		return
	}

	select {
	case w.events <- batch:
	default:
		w.logger.Warn("watcher event batch dropped, consumer too slow", "batch_size", len(batch))
	}
}

func (w *Watcher) trySendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// normalise converts a raw fsnotify.Event into a filtered FileEvent,
// applying ignore globs and the extension whitelist, and disambiguates
// a bare "modified" signal into Modified vs. Deleted by checking path
// existence, the same rule platforms without sub-kinds require.
func (w *Watcher) normalise(raw fsnotify.Event) (FileEvent, bool) {
	if w.isIgnored(raw.Name) {
		return FileEvent{}, false
	}

	if !w.extensionAllowed(raw.Name) {
		return FileEvent{}, false
	}

	switch {
	case raw.Has(fsnotify.Create):
		if w.cfg.Recursive {
			if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
				_ = w.fsw.Add(raw.Name)
			}
		}

		return FileEvent{Path: raw.Name, Kind: EventCreated}, true

	case raw.Has(fsnotify.Remove), raw.Has(fsnotify.Rename):
		return FileEvent{Path: raw.Name, Kind: EventDeleted}, true

	case raw.Has(fsnotify.Write), raw.Has(fsnotify.Chmod):
		if _, err := os.Stat(raw.Name); err != nil {
			return FileEvent{Path: raw.Name, Kind: EventDeleted}, true
		}

		return FileEvent{Path: raw.Name, Kind: EventModified}, true

	default:
		return FileEvent{}, false
	}
}

func (w *Watcher) isIgnored(path string) bool {
	for _, pattern := range w.cfg.IgnoreGlobs {
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(path)); matched {
			return true
		}
	}

	return false
}

func (w *Watcher) extensionAllowed(path string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}

	ext = ext[1:] // drop the leading dot to match the whitelist's bare extensions.

	for _, allowed := range w.cfg.Extensions {
		if allowed == ext {
			return true
		}
	}

	return false
}
