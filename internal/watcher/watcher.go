package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes folders for live filesystem events.
//
// fsnotify is not recursive, so watching a directory also registers its
// subdirectories, and directories created while watching are added on the
// fly. The observation loop runs on its own goroutine independently of the
// caller; the installed callback fires there.
type Watcher struct {
	fsw    *fsnotify.Watcher
	deb    *Debouncer
	logger *log.Logger

	mu       sync.Mutex
	roots    map[string]bool // paths registered via Watch
	callback Callback
	running  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher and starts its observation loop.
// The watcher emits nothing until a callback is installed and a path is
// watched. The caller MUST call Stop() when done.
func New(logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}

	w := &Watcher{
		fsw:    fsw,
		logger: logger,
		roots:  make(map[string]bool),
		done:   make(chan struct{}),
	}
	w.deb = NewDebouncer(DefaultDebounceDelay, w.deliver)

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// SetCallback installs (replacing) the single event sink.
func (w *Watcher) SetCallback(fn Callback) {
	w.mu.Lock()
	w.callback = fn
	w.mu.Unlock()
}

// SetDebounceDelay configures how long a path must stay quiet before its
// buffered events flush.
func (w *Watcher) SetDebounceDelay(delay time.Duration) {
	w.deb.SetDelay(delay)
}

// Watch begins observing a directory tree.
//
// A nonexistent path fails cleanly with no side effects. Watching an
// already-watched path is a no-op.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("watcher is stopped")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}

	if w.roots[path] {
		return nil
	}

	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	if info.IsDir() {
		if err := w.addSubdirs(path); err != nil {
			// Roll back the root watch so a failed Watch leaves no state.
			_ = w.fsw.Remove(path)
			return err
		}
	}

	w.roots[path] = true
	return nil
}

// addSubdirs registers every subdirectory of root with fsnotify.
func (w *Watcher) addSubdirs(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entry, skip
		}
		if !info.IsDir() || path == root {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch subdirectory %s: %w", path, err)
		}
		return nil
	})
}

// Unwatch stops observing one previously watched path and its subtree.
func (w *Watcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.roots[path] {
		return fmt.Errorf("not watching %s", path)
	}

	delete(w.roots, path)

	// Best effort: fsnotify forgets removed directories on its own.
	for _, watched := range w.fsw.WatchList() {
		if watched == path || strings.HasPrefix(watched, path+string(filepath.Separator)) {
			_ = w.fsw.Remove(watched)
		}
	}

	return nil
}

// IsWatching reports whether the path was registered via Watch and not yet
// unwatched.
func (w *Watcher) IsWatching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots[path]
}

// Stop halts all observation and blocks until the loop has exited.
// Buffered events are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.roots = make(map[string]bool)
	w.mu.Unlock()

	close(w.done)

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	w.deb.Stop()
	return nil
}

// processEvents is the observation loop translating fsnotify events into
// debounced FileEvents.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			fileEvent, ok := convertEvent(event)
			if !ok {
				continue
			}

			// New directories need their own watch before anything
			// inside them can be observed.
			if fileEvent.Action == ActionCreated {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(event.Name); err != nil {
						w.logger.Printf("Failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			w.deb.Offer(fileEvent)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

// deliver hands a debounced event to the installed callback.
func (w *Watcher) deliver(ev FileEvent) {
	w.mu.Lock()
	fn := w.callback
	w.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}

// convertEvent maps a raw fsnotify event onto the three canonical actions.
// Returns false for events with no canonical equivalent (chmod etc).
func convertEvent(event fsnotify.Event) (FileEvent, bool) {
	var action FileAction
	switch {
	case event.Has(fsnotify.Create):
		action = ActionCreated
	case event.Has(fsnotify.Write):
		action = ActionModified
	case event.Has(fsnotify.Remove):
		action = ActionDeleted
	case event.Has(fsnotify.Rename):
		// The old name is gone; the new name triggers its own create.
		action = ActionDeleted
	default:
		return FileEvent{}, false
	}

	return FileEvent{Path: event.Name, Action: action}, true
}
