// Package eventbus implements the in-process publish/subscribe bus (spec
// C8) that the Indexing Executor and Watcher use to announce progress to
// the HTTP server's SSE stream and any other in-process observer. Publish
// never blocks: a slow subscriber loses its oldest queued event rather than
// stalling the publisher.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the event kinds from spec 4.8.
type Kind string

const (
	KindWorkspaceIndexingStarted   Kind = "workspace_indexing_started"
	KindWorkspaceIndexingCompleted Kind = "workspace_indexing_completed"
	KindWorkspaceIndexingFailed    Kind = "workspace_indexing_failed"
	KindProjectIndexingStarted     Kind = "project_indexing_started"
	KindProjectIndexingCompleted   Kind = "project_indexing_completed"
	KindProjectIndexingFailed      Kind = "project_indexing_failed"
	KindProjectChangeDetected      Kind = "project_change_detected"
)

// Event is one published occurrence.
type Event struct {
	ID            string // assigned by Publish if empty, so every SSE client sees a stable correlation ID
	Kind          Kind
	WorkspacePath string
	ProjectHash   string // "" for workspace-scoped events
	Timestamp     time.Time
	FilesIndexed  int
	DefsIndexed   int
	ErrorMessage  string // set only for *Failed kinds
}

// defaultQueueSize bounds each subscriber's channel; a slow subscriber
// drops its oldest queued event rather than applying backpressure to Publish.
const defaultQueueSize = 256

// Bus is a single in-process pub/sub hub. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	queueSize   int
}

type subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// New creates a Bus with the default per-subscriber queue size.
func New() *Bus {
	return &Bus{subscribers: make(map[int]*subscriber), queueSize: defaultQueueSize}
}

// Subscription is a handle returned by Subscribe. Events arrive on C;
// Unsubscribe stops delivery and releases the subscriber's queue.
type Subscription struct {
	id  int
	bus *Bus
	C   <-chan Event
	sub *subscriber
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscriber{ch: make(chan Event, b.queueSize)}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	return &Subscription{id: id, bus: b, C: sub.ch, sub: sub}
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subscribers[s.id]; !ok {
		return
	}
	delete(s.bus.subscribers, s.id)
	close(s.sub.ch)
}

// DroppedCount returns how many events this subscription has lost to queue
// overflow since it was created.
func (s *Subscription) DroppedCount() uint64 {
	return s.sub.dropped.Load()
}

// Publish fans an event out to every current subscriber. It never blocks:
// a full subscriber queue has its oldest event evicted to make room, and
// the eviction is counted rather than silently lost.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		deliver(s, ev)
	}
}

func deliver(s *subscriber, ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	// Queue full: drop the oldest queued event, then retry once. A
	// concurrent receiver may have already drained an entry, so the retry
	// falls back to dropping ev itself if the channel is still full.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
