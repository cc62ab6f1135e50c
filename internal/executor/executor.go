// Package executor implements the Indexing Executor (spec C6): it drives a
// project through the discovery → parse pipeline → resolver → graph store
// pipeline, enforcing a per-project state machine and a bounded global
// concurrency across all projects in all workspaces the daemon knows about.
//
// A project is always in exactly one of Idle, Queued, Running, or Error.
// Queued blocks on the global concurrency semaphore; Running is guarded by a
// per-project mutex so two indexing runs for the same project can never
// overlap, mirroring the teacher's BackgroundIndexer lock-file discipline
// but scoped per project instead of per daemon.
package executor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/config"
	"github.com/gkg/knowledgegraph/internal/discovery"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
	"github.com/gkg/knowledgegraph/internal/pipeline"
	"github.com/gkg/knowledgegraph/internal/registry"
	"github.com/gkg/knowledgegraph/internal/resolver"
)

// State is one project's position in the C6 state machine.
type State string

const (
	StateIdle    State = "idle"
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateError   State = "error"
)

// maxProjectDiscoveryDepth bounds how deep FindProjects descends looking
// for nested VCS roots under a workspace folder.
const maxProjectDiscoveryDepth = 8

// Executor orchestrates full and incremental indexing runs. One Executor is
// shared by the whole daemon process; it owns the global concurrency
// semaphore and the per-project serialization locks.
type Executor struct {
	cfg       config.IndexingConfig
	reg       *registry.Registry
	analyzers *analyzer.Registry
	driver    graphstore.Driver
	bus       *eventbus.Bus
	walker    *discovery.Walker

	sem chan struct{} // bounds simultaneously Running projects, spec default min(4, cores)

	mu           sync.Mutex
	projectLocks map[string]*sync.Mutex
	states       map[string]State
}

// New builds an Executor. reg is the workspace registry that owns manifest
// status and per-project data directories; analyzers is the shared,
// stateless Analyzer registry; bus receives lifecycle events for the HTTP
// SSE surface.
func New(cfg config.IndexingConfig, reg *registry.Registry, analyzers *analyzer.Registry, driver graphstore.Driver, bus *eventbus.Bus) (*Executor, error) {
	walker, err := discovery.NewWalker()
	if err != nil {
		return nil, err
	}
	global := cfg.GlobalConcurrency
	if global < 1 {
		global = 1
	}
	return &Executor{
		cfg:          cfg,
		reg:          reg,
		analyzers:    analyzers,
		driver:       driver,
		bus:          bus,
		walker:       walker,
		sem:          make(chan struct{}, global),
		projectLocks: make(map[string]*sync.Mutex),
		states:       make(map[string]State),
	}, nil
}

// State reports a project's current state machine position. Unknown
// projects report Idle, matching an unindexed project's natural state.
func (e *Executor) State(projectHash string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.states[projectHash]; ok {
		return s
	}
	return StateIdle
}

func (e *Executor) setState(projectHash string, s State) {
	e.mu.Lock()
	e.states[projectHash] = s
	e.mu.Unlock()
}

func (e *Executor) lockFor(projectHash string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.projectLocks[projectHash]
	if !ok {
		l = &sync.Mutex{}
		e.projectLocks[projectHash] = l
	}
	return l
}

// acquireSlot blocks until a global concurrency slot is free or ctx is
// cancelled, transitioning the project to Queued while it waits.
func (e *Executor) acquireSlot(ctx context.Context, projectHash string) error {
	e.setState(projectHash, StateQueued)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) releaseSlot() {
	<-e.sem
}

// IndexWorkspace discovers every project under workspacePath (spec C3) and
// runs a full index of each, publishing workspace-scoped lifecycle events
// around the project-scoped ones each IndexProject call emits.
func (e *Executor) IndexWorkspace(ctx context.Context, workspacePath string) error {
	e.bus.Publish(eventbus.Event{Kind: eventbus.KindWorkspaceIndexingStarted, WorkspacePath: workspacePath, Timestamp: time.Now()})

	roots, err := discovery.FindProjects(workspacePath, maxProjectDiscoveryDepth)
	if err != nil {
		e.bus.Publish(eventbus.Event{Kind: eventbus.KindWorkspaceIndexingFailed, WorkspacePath: workspacePath, ErrorMessage: err.Error(), Timestamp: time.Now()})
		return err
	}

	var firstErr error
	for _, root := range roots {
		if err := e.IndexProject(ctx, workspacePath, root); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		e.bus.Publish(eventbus.Event{Kind: eventbus.KindWorkspaceIndexingFailed, WorkspacePath: workspacePath, ErrorMessage: firstErr.Error(), Timestamp: time.Now()})
		return firstErr
	}
	e.bus.Publish(eventbus.Event{Kind: eventbus.KindWorkspaceIndexingCompleted, WorkspacePath: workspacePath, Timestamp: time.Now()})
	return nil
}

// IndexProject runs a full index of one project: discover → pipeline →
// resolver → single bulk-load transaction → manifest update. It serializes
// against any other run of the same project and blocks on the executor's
// global concurrency semaphore.
func (e *Executor) IndexProject(ctx context.Context, workspacePath, projectRoot string) error {
	hash := registry.HashPath(projectRoot)
	lock := e.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	if err := e.acquireSlot(ctx, hash); err != nil {
		e.setState(hash, StateIdle)
		return err
	}
	defer e.releaseSlot()

	e.setState(hash, StateRunning)
	e.bus.Publish(eventbus.Event{Kind: eventbus.KindProjectIndexingStarted, WorkspacePath: workspacePath, ProjectHash: hash, Timestamp: time.Now()})

	proj := model.Project{WorkspacePath: workspacePath, Path: projectRoot, Hash: hash, Status: model.StatusIndexing}
	if err := e.reg.UpsertProject(workspacePath, proj); err != nil {
		e.setState(hash, StateError)
		return err
	}

	batch, stats, err := e.buildFullBatch(ctx, hash, projectRoot)
	if err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}

	dataDir := e.reg.ProjectDataDir(hash)
	store, err := graphstore.Open(ctx, dataDir, e.driver)
	if err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}
	defer store.Close()

	if err := store.BulkLoad(ctx, batch); err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}

	proj.Status = model.StatusIndexed
	proj.LastIndexedAt = time.Now()
	proj.ErrorMessage = ""
	if err := e.reg.UpsertProject(workspacePath, proj); err != nil {
		e.setState(hash, StateError)
		return err
	}

	e.setState(hash, StateIdle)
	e.bus.Publish(eventbus.Event{
		Kind: eventbus.KindProjectIndexingCompleted, WorkspacePath: workspacePath, ProjectHash: hash,
		FilesIndexed: stats.filesIndexed, DefsIndexed: stats.defsIndexed, Timestamp: time.Now(),
	})
	return nil
}

// failProject records an indexing failure against the manifest and the
// state machine without disturbing the last successfully committed graph
// (spec C6: on error, the previous graph remains queryable).
func (e *Executor) failProject(workspacePath, hash string, proj model.Project, cause error) error {
	e.setState(hash, StateError)
	proj.Status = model.StatusError
	proj.ErrorMessage = cause.Error()
	_ = e.reg.UpsertProject(workspacePath, proj)
	e.bus.Publish(eventbus.Event{Kind: eventbus.KindProjectIndexingFailed, WorkspacePath: workspacePath, ProjectHash: hash, ErrorMessage: cause.Error(), Timestamp: time.Now()})
	return cause
}

type batchStats struct {
	filesIndexed int
	defsIndexed  int
}

// collectedFacts is the pipeline+resolver output for a project's complete
// file set, shared by both the full and incremental paths.
type collectedFacts struct {
	facts    []resolver.FileFacts
	files    []model.File
	dirs     []model.Directory
	edges    []model.Relationship
	skipped  int // files that failed Stage A/B and contribute no facts
}

// walkAndParse runs discovery + the parse pipeline over projectRoot and
// resolves the result into graph-ready facts and containment edges. It is
// the shared core of both the full and incremental index paths: a correct
// incremental resolve still needs every file's facts, since an unchanged
// file's reference may target a definition in a changed file.
func (e *Executor) walkAndParse(ctx context.Context, projectHash, projectRoot string) (collectedFacts, error) {
	opts := discovery.Options{
		Include:          e.cfg.Include,
		Exclude:          e.cfg.Exclude,
		RespectGitignore: true,
		MaxFileSize:      e.cfg.MaxFileSize,
	}
	results := e.walker.Walk(ctx, projectRoot, opts)

	pOpts := pipeline.Options{
		ReaderConcurrency: e.cfg.ReaderConcurrency,
		ParserConcurrency: e.cfg.ParserConcurrency,
		BufferSize:        e.cfg.PipelineBufferSize,
		MaxFileSize:       e.cfg.MaxFileSize,
	}
	items := pipeline.Run(ctx, results, e.analyzers, pOpts)

	dirs := newDirectoryBuilder(projectHash, projectRoot)
	var out collectedFacts

	for item := range items {
		if item.Err != nil {
			out.skipped++
			continue
		}

		fileNode := pipeline.ToFileNode(projectHash, item)
		out.files = append(out.files, fileNode)
		dirs.addFile(fileNode.RelPath)

		defs := make([]model.Definition, len(item.Analysis.Definitions))
		for i, d := range item.Analysis.Definitions {
			d.ProjectHash = projectHash
			defs[i] = d
		}
		imps := make([]model.ImportedSymbol, len(item.Analysis.ImportedSymbols))
		for i, s := range item.Analysis.ImportedSymbols {
			s.ProjectHash = projectHash
			imps[i] = s
		}

		out.facts = append(out.facts, resolver.FileFacts{
			File:        fileNode,
			Definitions: defs,
			Imports:     imps,
			References:  item.Analysis.References,
		})
	}

	if err := ctx.Err(); err != nil {
		return collectedFacts{}, err
	}

	res, err := resolver.New(projectHash, out.facts)
	if err != nil {
		return collectedFacts{}, err
	}
	out.edges = res.Resolve()
	out.dirs = dirs.containmentEdges(&out.edges)
	return out, nil
}

// buildFullBatch produces the complete graphstore.Batch for a full index.
func (e *Executor) buildFullBatch(ctx context.Context, projectHash, projectRoot string) (graphstore.Batch, batchStats, error) {
	collected, err := e.walkAndParse(ctx, projectHash, projectRoot)
	if err != nil {
		return graphstore.Batch{}, batchStats{}, err
	}

	var defs []model.Definition
	var imports []model.ImportedSymbol
	for _, f := range collected.facts {
		defs = append(defs, f.Definitions...)
		imports = append(imports, f.Imports...)
	}

	batch := graphstore.Batch{
		Directories:     collected.dirs,
		Files:           collected.files,
		Definitions:     defs,
		ImportedSymbols: imports,
		Relationships:   collected.edges,
	}
	stats := batchStats{filesIndexed: len(collected.files), defsIndexed: len(defs)}
	return batch, stats, nil
}

func repoNameFor(projectRoot string) string {
	return filepath.Base(filepath.Clean(projectRoot))
}
