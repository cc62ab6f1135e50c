package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkg/knowledgegraph/internal/eventbus"
)

func TestManager_WatchDetectsChangeAndDispatchesIncrementalIndex(t *testing.T) {
	workspace := t.TempDir()
	projectRoot := filepath.Join(workspace, "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "main.go"), []byte("package main"), 0o644))

	var mu sync.Mutex
	var indexed []string
	done := make(chan struct{})

	indexFn := func(ctx context.Context, wsPath, projRoot string) error {
		mu.Lock()
		indexed = append(indexed, projRoot)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}

	bus := eventbus.New()
	opts := Options{DebounceWindow: 20 * time.Millisecond, MaxHold: time.Second, EventBufferSize: 100}
	m := NewManager(opts, indexFn, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Watch(ctx, workspace))
	defer m.StopAll()

	time.Sleep(150 * time.Millisecond) // let fsnotify register watches

	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "extra.go"), []byte("package main"), 0o644))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("incremental index was never dispatched for the changed project")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, indexed, 1)
	assert.Equal(t, projectRoot, indexed[0])
}

func TestManager_WatchTwiceIsNoop(t *testing.T) {
	workspace := t.TempDir()
	m := NewManager(DefaultOptions(), func(ctx context.Context, ws, proj string) error { return nil }, eventbus.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Watch(ctx, workspace))
	require.NoError(t, m.Watch(ctx, workspace))
	m.StopAll()
}
