package watcher

import (
	"context"
	"log/slog"
	"sync"
)

// IndexFunc runs one incremental indexing pass for a project. It matches
// Executor.IndexProjectIncremental's signature.
type IndexFunc func(ctx context.Context, workspacePath, projectRoot string) error

// Scheduler dispatches incremental indexing jobs per project, merging any
// change set that arrives for a project already Queued or Running into a
// single follow-up run instead of stacking a second job behind it (spec
// §4.7's "merge-on-pending-job" requirement). This generalizes the
// teacher's single daemon-wide lock/dirty-rerun loop in BackgroundIndexer
// to one such loop per project, run on demand rather than once at
// startup.
type Scheduler struct {
	indexFn IndexFunc

	mu       sync.Mutex
	inFlight map[string]bool
	dirty    map[string]bool
}

// NewScheduler builds a Scheduler that calls indexFn to actually run a job.
func NewScheduler(indexFn IndexFunc) *Scheduler {
	return &Scheduler{
		indexFn:  indexFn,
		inFlight: make(map[string]bool),
		dirty:    make(map[string]bool),
	}
}

// Dispatch requests an incremental index of projectRoot. If a run for this
// project is already in flight, the request is recorded and folded into
// one additional run once the current one finishes; it does not start a
// second concurrent run.
func (s *Scheduler) Dispatch(ctx context.Context, workspacePath, projectRoot string) {
	s.mu.Lock()
	if s.inFlight[projectRoot] {
		s.dirty[projectRoot] = true
		s.mu.Unlock()
		return
	}
	s.inFlight[projectRoot] = true
	s.mu.Unlock()

	go s.run(ctx, workspacePath, projectRoot)
}

func (s *Scheduler) run(ctx context.Context, workspacePath, projectRoot string) {
	for {
		if err := s.indexFn(ctx, workspacePath, projectRoot); err != nil {
			slog.Warn("incremental indexing run failed", slog.String("project", projectRoot), slog.String("error", err.Error()))
		}

		s.mu.Lock()
		if s.dirty[projectRoot] {
			delete(s.dirty, projectRoot)
			s.mu.Unlock()
			continue
		}
		delete(s.inFlight, projectRoot)
		s.mu.Unlock()
		return
	}
}

// InFlight reports whether a project currently has a run in progress (used
// by tests).
func (s *Scheduler) InFlight(projectRoot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[projectRoot]
}
