// Package watcher implements the File Watcher & Scheduler (spec C7): a
// recursive, per-workspace filesystem watcher that debounces raw events
// into a compact per-project change set and dispatches incremental
// indexing jobs, merging any change set that arrives while a job for the
// same project is already in flight.
package watcher

import (
	"context"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpGitignoreChange indicates a .gitignore file was modified. This
	// triggers index reconciliation to remove newly-ignored files and
	// add newly-unignored files.
	OpGitignoreChange
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpGitignoreChange:
		return "GITIGNORE_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a single filesystem event, relative to the root
// being watched.
type FileEvent struct {
	// Path is the relative path to the file or directory.
	Path string

	// OldPath is the previous path for rename events. Empty otherwise.
	OldPath string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// RawWatcher is the interface a concrete watching mechanism (fsnotify or
// polling) implements; HybridWatcher composes one of these with a
// Debouncer to produce batched, filtered events.
type RawWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan FileEvent
	Errors() <-chan error
}

// Options configures a HybridWatcher and its Debouncer.
type Options struct {
	// DebounceWindow is the inactivity window before a pending batch
	// flushes. Default: 500ms (spec §4.7).
	DebounceWindow time.Duration

	// MaxHold bounds how long a batch can stay pending regardless of
	// continued activity. Default: 5s (spec §4.7).
	MaxHold time.Duration

	// PollInterval is the scan interval used by the polling fallback.
	PollInterval time.Duration

	// EventBufferSize is the size of the batched-event channel buffer.
	EventBufferSize int

	// IgnorePatterns are additional patterns to ignore beyond .gitignore.
	// Patterns use gitignore syntax.
	IgnorePatterns []string
}

// DefaultOptions returns the default watcher options (spec §4.7).
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		MaxHold:         5 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
		IgnorePatterns:  nil,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.MaxHold == 0 {
		o.MaxHold = defaults.MaxHold
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
