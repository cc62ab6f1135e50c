package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events to prevent index thrashing.
// Events for the same path within the debounce window are merged according
// to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
//
// A batch flushes on whichever comes first: window of inactivity, or
// maxHold elapsed since the batch's oldest pending event. Without the
// second timer a path under continuous rapid modification would never
// flush, since every Add resets the inactivity window indefinitely.
type Debouncer struct {
	window  time.Duration
	maxHold time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	windowTimer  *time.Timer
	maxHoldTimer *time.Timer
	stopCh  chan struct{}
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation // first operation seen for this path, drives coalescing
}

// NewDebouncer creates a debouncer with the given inactivity window and
// hard hold ceiling.
func NewDebouncer(window, maxHold time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		maxHold: maxHold,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
		stopCh:  make(chan struct{}),
	}
}

// Add adds an event to be debounced. Events for the same path are
// coalesced according to the coalescing rules.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		coalesced := d.coalesce(existing, event)
		if coalesced == nil {
			// CREATE + DELETE cancel out.
			delete(d.pending, path)
		} else {
			existing.event = *coalesced
		}
	} else {
		d.pending[path] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	d.scheduleWindow()
	if d.maxHoldTimer == nil && len(d.pending) > 0 {
		d.maxHoldTimer = time.AfterFunc(d.maxHold, d.flush)
	}
}

// coalesce merges two events according to the coalescing rules.
// Returns nil if the events cancel each other out.
func (d *Debouncer) coalesce(existing *pendingEvent, new FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch new.Operation {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		default:
			return &new
		}

	case OpModify:
		return &new

	case OpDelete:
		switch new.Operation {
		case OpCreate:
			result := new
			result.Operation = OpModify
			return &result
		default:
			return &new
		}

	default:
		return &new
	}
}

// scheduleWindow (re)starts the inactivity timer. Every Add resets it,
// unlike maxHoldTimer which is anchored to the batch's first event.
func (d *Debouncer) scheduleWindow() {
	if d.windowTimer != nil {
		d.windowTimer.Stop()
	}
	d.windowTimer = time.AfterFunc(d.window, d.flush)
}

// flush emits all pending events as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.windowTimer != nil {
		d.windowTimer.Stop()
		d.windowTimer = nil
	}
	if d.maxHoldTimer != nil {
		d.maxHoldTimer.Stop()
		d.maxHoldTimer = nil
	}

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced events, emitted as batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.windowTimer != nil {
		d.windowTimer.Stop()
	}
	if d.maxHoldTimer != nil {
		d.maxHoldTimer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
