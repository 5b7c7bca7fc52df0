package watcher

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDebounceDelay is the quiet window required before a buffered
// event flushes.
const DefaultDebounceDelay = 100 * time.Millisecond

// Debouncer buffers raw events per path and emits one coalesced event per
// path once the debounce window elapses with no further activity.
//
// Coalescing keeps the net effect of a burst: a create followed by writes
// is still a create, anything ending in a delete is a delete, and a delete
// followed by a re-create collapses to a modify. A create that is deleted
// within the same window nets out to nothing and is dropped.
//
// The debouncer is OS-independent; event translation lives in the adapter
// below it.
type Debouncer struct {
	clock clockwork.Clock
	emit  Callback

	mu      sync.Mutex
	delay   time.Duration
	pending map[string]FileAction
	timers  map[string]clockwork.Timer
	stopped bool
}

// NewDebouncer returns a Debouncer flushing into emit after delay.
func NewDebouncer(delay time.Duration, emit Callback) *Debouncer {
	return NewDebouncerWithClock(delay, emit, clockwork.NewRealClock())
}

// NewDebouncerWithClock injects the clock. Tests pass a fake clock to make
// window expiry deterministic.
func NewDebouncerWithClock(delay time.Duration, emit Callback, clock clockwork.Clock) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{
		clock:   clock,
		emit:    emit,
		delay:   delay,
		pending: make(map[string]FileAction),
		timers:  make(map[string]clockwork.Timer),
	}
}

// SetDelay reconfigures the debounce window for subsequent events.
func (d *Debouncer) SetDelay(delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// SetEmit installs (replacing) the flush sink.
func (d *Debouncer) SetEmit(emit Callback) {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()
}

// Offer buffers one raw event, restarting the path's debounce window.
func (d *Debouncer) Offer(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	prev, buffered := d.pending[ev.Path]
	action, keep := merge(prev, buffered, ev.Action)
	if !keep {
		delete(d.pending, ev.Path)
		if t, ok := d.timers[ev.Path]; ok {
			t.Stop()
			delete(d.timers, ev.Path)
		}
		return
	}

	d.pending[ev.Path] = action

	if t, ok := d.timers[ev.Path]; ok {
		t.Reset(d.delay)
		return
	}

	path := ev.Path
	d.timers[path] = d.clock.AfterFunc(d.delay, func() {
		d.flush(path)
	})
}

// Flush forces out every buffered event immediately. Used on shutdown so
// a short-lived watcher doesn't swallow trailing changes.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for path := range d.pending {
		paths = append(paths, path)
	}
	d.mu.Unlock()

	for _, path := range paths {
		d.flush(path)
	}
}

// Stop drops all buffered events and cancels their timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
	d.pending = make(map[string]FileAction)
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	action, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
	}
	if t, tok := d.timers[path]; tok {
		t.Stop()
		delete(d.timers, path)
	}
	emit := d.emit
	d.mu.Unlock()

	if !ok || emit == nil {
		return
	}
	emit(FileEvent{Path: path, Action: action})
}

// merge folds a new raw action into the buffered one for the same path.
// Returns the coalesced action and whether anything remains to emit.
func merge(prev FileAction, buffered bool, next FileAction) (FileAction, bool) {
	if !buffered {
		return next, true
	}

	switch {
	case prev == ActionCreated && next == ActionDeleted:
		// Created and destroyed inside one window: observers never saw it.
		return 0, false
	case prev == ActionCreated:
		return ActionCreated, true
	case next == ActionDeleted:
		return ActionDeleted, true
	case prev == ActionDeleted && next == ActionCreated:
		// Replaced in place: the file existed before and exists now.
		return ActionModified, true
	default:
		return ActionModified, true
	}
}
