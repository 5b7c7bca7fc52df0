// Package watcher provides live filesystem observation for foldsync.
//
// It wraps fsnotify behind a uniform callback interface and coalesces raw
// OS event bursts through a debouncer, so editors and bulk operations that
// generate many events per logical change produce a minimal event set.
package watcher

// FileAction represents the type of filesystem change delivered to the
// event callback.
type FileAction int

const (
	// ActionCreated indicates a new file or directory appeared.
	ActionCreated FileAction = iota
	// ActionModified indicates existing content was rewritten.
	ActionModified
	// ActionDeleted indicates the path was removed or renamed away.
	ActionDeleted
)

// String returns a human-readable representation of the action.
func (a FileAction) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionModified:
		return "modified"
	case ActionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is one debounced filesystem change.
type FileEvent struct {
	// Path is the absolute path that changed.
	Path string
	// Action is the net effect observed over the debounce window.
	Action FileAction
}

// Callback is the single event sink installed via SetCallback.
//
// Callbacks fire on the watcher's own goroutine, concurrently with any
// engine activity; implementations must synchronize their own state.
type Callback func(FileEvent)
