package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gkg/knowledgegraph/internal/discovery"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/registry"
)

// maxProjectDiscoveryDepth mirrors the executor's bound on how deep
// FindProjects descends looking for nested VCS roots.
const maxProjectDiscoveryDepth = 8

// Manager watches every registered workspace folder and feeds the change
// sets it detects into a Scheduler that drives incremental re-indexing
// (spec §4.7). One Manager serves the whole daemon process.
type Manager struct {
	opts      Options
	scheduler *Scheduler
	bus       *eventbus.Bus

	mu        sync.Mutex
	watchers  map[string]*HybridWatcher // workspacePath -> watcher
	projects  map[string]*ProjectSet    // workspacePath -> known project roots
	cancelFns map[string]context.CancelFunc
}

// NewManager builds a Manager. indexFn is called once per project per
// flushed change set (via the Scheduler's merge-on-pending-job dispatch).
func NewManager(opts Options, indexFn IndexFunc, bus *eventbus.Bus) *Manager {
	return &Manager{
		opts:      opts.WithDefaults(),
		scheduler: NewScheduler(indexFn),
		bus:       bus,
		watchers:  make(map[string]*HybridWatcher),
		projects:  make(map[string]*ProjectSet),
		cancelFns: make(map[string]context.CancelFunc),
	}
}

// Watch starts watching workspacePath. It performs an initial project
// discovery pass to seed the path-to-project mapping, then watches for
// filesystem changes in the background. Calling Watch again for an
// already-watched workspace is a no-op.
func (m *Manager) Watch(ctx context.Context, workspacePath string) error {
	m.mu.Lock()
	if _, ok := m.watchers[workspacePath]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	roots, err := discovery.FindProjects(workspacePath, maxProjectDiscoveryDepth)
	if err != nil {
		return err
	}
	projects := NewProjectSet()
	projects.Set(roots)

	hw, err := NewHybridWatcher(m.opts)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.watchers[workspacePath] = hw
	m.projects[workspacePath] = projects
	m.cancelFns[workspacePath] = cancel
	m.mu.Unlock()

	go m.consume(runCtx, workspacePath, hw)

	go func() {
		if err := hw.Start(runCtx, workspacePath); err != nil && runCtx.Err() == nil {
			slog.Warn("workspace watcher stopped", slog.String("workspace", workspacePath), slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Unwatch stops watching workspacePath, releasing its HybridWatcher.
func (m *Manager) Unwatch(workspacePath string) {
	m.mu.Lock()
	hw, ok := m.watchers[workspacePath]
	cancel := m.cancelFns[workspacePath]
	delete(m.watchers, workspacePath)
	delete(m.projects, workspacePath)
	delete(m.cancelFns, workspacePath)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ok {
		_ = hw.Stop()
	}
}

// RefreshProjects updates the known project roots for workspacePath, e.g.
// after a new project is discovered or an existing one removed.
func (m *Manager) RefreshProjects(workspacePath string, roots []string) {
	m.mu.Lock()
	projects, ok := m.projects[workspacePath]
	m.mu.Unlock()
	if ok {
		projects.Set(roots)
	}
}

// consume reads batched raw events off hw, groups them into per-project
// change sets, and dispatches one (merged) incremental job per project.
func (m *Manager) consume(ctx context.Context, workspacePath string, hw *HybridWatcher) {
	m.mu.Lock()
	projects := m.projects[workspacePath]
	m.mu.Unlock()

	resolve := func(relPath string) (string, string, bool) {
		abs := filepath.Join(workspacePath, relPath)
		root, ok := projects.ProjectFor(abs)
		if !ok {
			return "", "", false
		}
		within, err := filepath.Rel(root, abs)
		if err != nil {
			within = relPath
		}
		return root, within, true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-hw.Events():
			if !ok {
				return
			}
			for _, cs := range buildChangeSets(batch, resolve) {
				if cs.Total() == 0 {
					continue
				}
				m.bus.Publish(eventbus.Event{
					Kind:          eventbus.KindProjectChangeDetected,
					WorkspacePath: workspacePath,
					ProjectHash:   registry.HashPath(cs.ProjectRoot),
					FilesIndexed:  cs.Total(),
					Timestamp:     time.Now(),
				})
				m.scheduler.Dispatch(ctx, workspacePath, cs.ProjectRoot)
			}
		case err, ok := <-hw.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher error", slog.String("workspace", workspacePath), slog.String("error", err.Error()))
		}
	}
}

// StopAll stops every watched workspace. Intended for daemon shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	workspaces := make([]string, 0, len(m.watchers))
	for ws := range m.watchers {
		workspaces = append(workspaces, ws)
	}
	m.mu.Unlock()

	for _, ws := range workspaces {
		m.Unwatch(ws)
	}
}
