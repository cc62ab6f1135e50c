package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/config"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
	"github.com/gkg/knowledgegraph/internal/registry"
)

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry, string) {
	t.Helper()
	home := t.TempDir()
	reg := registry.New(
		filepath.Join(home, "gkg_manifest.json"),
		filepath.Join(home, "gkg.lock"),
		filepath.Join(home, "gkg_workspace_folders"),
	)

	cfg := config.IndexingConfig{
		MaxFileSize:        10 * 1024 * 1024,
		GlobalConcurrency:  2,
		ReaderConcurrency:  2,
		ParserConcurrency:  2,
		PipelineBufferSize: 16,
	}
	analyzers := analyzer.NewRegistry(analyzer.NewGoAnalyzer(), analyzer.NewPythonAnalyzer())

	ex, err := New(cfg, reg, analyzers, graphstore.DriverSQLite, eventbus.New())
	require.NoError(t, err)

	workspace := t.TempDir()
	_, err = reg.RegisterWorkspace(workspace, "test")
	require.NoError(t, err)
	return ex, reg, workspace
}

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

const sampleGoSource = `package widgets

func NewWidget() string { return "w" }

func Run() string {
	return NewWidget()
}
`

func TestIndexProjectFullIndexPopulatesStoreAndManifest(t *testing.T) {
	ex, reg, workspace := newTestExecutor(t)
	projectRoot := filepath.Join(workspace, "proj")
	writeProjectFile(t, projectRoot, "widget.go", sampleGoSource)
	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, ".git"), 0o755))

	require.NoError(t, ex.IndexProject(context.Background(), workspace, projectRoot))

	hash := registry.HashPath(projectRoot)
	assert.Equal(t, StateIdle, ex.State(hash))

	projects, err := reg.ListProjects(workspace)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, model.StatusIndexed, projects[0].Status)

	store, err := graphstore.OpenReadOnly(context.Background(), reg.ProjectDataDir(hash), graphstore.DriverSQLite)
	require.NoError(t, err)
	defer store.Close()

	var fileCount, defCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&fileCount))
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM definitions`).Scan(&defCount))
	assert.Equal(t, 1, fileCount)
	assert.Equal(t, 2, defCount)

	var refCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM relationships WHERE kind = ?`, string(model.RelReferences)).Scan(&refCount))
	assert.Equal(t, 1, refCount, "expected Run -> NewWidget reference edge")
}

func TestIndexProjectIncrementalPicksUpModifiedFileDefinitions(t *testing.T) {
	ex, reg, workspace := newTestExecutor(t)
	projectRoot := filepath.Join(workspace, "proj")
	writeProjectFile(t, projectRoot, "widget.go", sampleGoSource)
	writeProjectFile(t, projectRoot, "other.go", "package widgets\n\nfunc Other() {}\n")

	require.NoError(t, ex.IndexProject(context.Background(), workspace, projectRoot))

	// Modify only widget.go, adding a third definition; other.go is untouched.
	writeProjectFile(t, projectRoot, "widget.go", sampleGoSource+"\nfunc Extra() {}\n")

	require.NoError(t, ex.IndexProjectIncremental(context.Background(), workspace, projectRoot))

	hash := registry.HashPath(projectRoot)
	store, err := graphstore.OpenReadOnly(context.Background(), reg.ProjectDataDir(hash), graphstore.DriverSQLite)
	require.NoError(t, err)
	defer store.Close()

	var defCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM definitions`).Scan(&defCount))
	assert.Equal(t, 4, defCount, "widget.go now has 3 definitions, other.go still has 1")

	var otherStillPresent int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM definitions WHERE fqn = ?`, "widgets.Other").Scan(&otherStillPresent))
	assert.Equal(t, 1, otherStillPresent, "other.go was never touched by the incremental run")
}

func TestIndexProjectIncrementalRemovesDeletedFiles(t *testing.T) {
	ex, reg, workspace := newTestExecutor(t)
	projectRoot := filepath.Join(workspace, "proj")
	writeProjectFile(t, projectRoot, "a.go", "package widgets\n\nfunc A() {}\n")
	writeProjectFile(t, projectRoot, "b.go", "package widgets\n\nfunc B() {}\n")

	require.NoError(t, ex.IndexProject(context.Background(), workspace, projectRoot))
	require.NoError(t, os.Remove(filepath.Join(projectRoot, "b.go")))
	require.NoError(t, ex.IndexProjectIncremental(context.Background(), workspace, projectRoot))

	hash := registry.HashPath(projectRoot)
	store, err := graphstore.OpenReadOnly(context.Background(), reg.ProjectDataDir(hash), graphstore.DriverSQLite)
	require.NoError(t, err)
	defer store.Close()

	var fileCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&fileCount))
	assert.Equal(t, 1, fileCount)

	var remaining string
	require.NoError(t, store.DB().QueryRow(`SELECT rel_path FROM files`).Scan(&remaining))
	assert.Equal(t, "a.go", remaining)
}

func TestIndexWorkspaceIndexesEachDiscoveredProject(t *testing.T) {
	ex, reg, workspace := newTestExecutor(t)
	projA := filepath.Join(workspace, "a")
	projB := filepath.Join(workspace, "b")
	writeProjectFile(t, projA, "main.go", "package main\n\nfunc main() {}\n")
	writeProjectFile(t, projB, "main.go", "package main\n\nfunc main() {}\n")
	require.NoError(t, os.MkdirAll(filepath.Join(projA, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(projB, ".git"), 0o755))

	require.NoError(t, ex.IndexWorkspace(context.Background(), workspace))

	projects, err := reg.ListProjects(workspace)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	for _, p := range projects {
		assert.Equal(t, model.StatusIndexed, p.Status)
	}
}

func TestIndexProjectFailureLeavesPreviousGraphIntact(t *testing.T) {
	ex, reg, workspace := newTestExecutor(t)
	projectRoot := filepath.Join(workspace, "proj")
	writeProjectFile(t, projectRoot, "main.go", "package main\n\nfunc main() {}\n")

	require.NoError(t, ex.IndexProject(context.Background(), workspace, projectRoot))

	hash := registry.HashPath(projectRoot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ex.IndexProject(ctx, workspace, projectRoot)
	assert.Error(t, err)

	store, err := graphstore.OpenReadOnly(context.Background(), reg.ProjectDataDir(hash), graphstore.DriverSQLite)
	require.NoError(t, err)
	defer store.Close()

	var fileCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&fileCount))
	assert.Equal(t, 1, fileCount, "a cancelled run must not clobber the last committed graph")
}
