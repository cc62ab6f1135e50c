package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Dispatch_RunsOnce(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	s := NewScheduler(func(ctx context.Context, workspacePath, projectRoot string) error {
		calls.Add(1)
		close(done)
		return nil
	})

	s.Dispatch(context.Background(), "/ws", "/ws/proj")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatched job never ran")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_DispatchWhileInFlight_MergesIntoOneFollowUp(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var mu sync.Mutex
	var started []string

	s := NewScheduler(func(ctx context.Context, workspacePath, projectRoot string) error {
		n := calls.Add(1)
		mu.Lock()
		started = append(started, projectRoot)
		mu.Unlock()
		if n == 1 {
			<-release // block the first run until the test dispatches again
		}
		return nil
	})

	s.Dispatch(context.Background(), "/ws", "/ws/proj")
	require.Eventually(t, func() bool { return s.InFlight("/ws/proj") }, time.Second, time.Millisecond)

	// Two more change sets arrive while the first run is still in flight.
	s.Dispatch(context.Background(), "/ws", "/ws/proj")
	s.Dispatch(context.Background(), "/ws", "/ws/proj")

	close(release)

	require.Eventually(t, func() bool { return !s.InFlight("/ws/proj") }, time.Second, time.Millisecond)
	// Exactly one extra run folds in both pending dispatches, not two.
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_DifferentProjects_RunConcurrently(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{})

	s := NewScheduler(func(ctx context.Context, workspacePath, projectRoot string) error {
		mu.Lock()
		seen[projectRoot] = true
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return nil
	})

	s.Dispatch(context.Background(), "/ws", "/ws/a")
	s.Dispatch(context.Background(), "/ws", "/ws/b")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("both projects never ran")
	}
}
