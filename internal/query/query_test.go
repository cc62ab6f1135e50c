package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
	"github.com/gkg/knowledgegraph/internal/registry"
)

func newTestService(t *testing.T) (*Service, *registry.Registry, string) {
	t.Helper()
	home := t.TempDir()
	reg := registry.New(
		filepath.Join(home, "gkg_manifest.json"),
		filepath.Join(home, "gkg.lock"),
		filepath.Join(home, "gkg_workspace_folders"),
	)
	svc, err := New(reg, graphstore.DriverSQLite)
	require.NoError(t, err)
	return svc, reg, home
}

func seedProject(t *testing.T, reg *registry.Registry, projectHash string) {
	t.Helper()
	ctx := context.Background()
	dataDir := reg.ProjectDataDir(projectHash)
	store, err := graphstore.Open(ctx, dataDir, graphstore.DriverSQLite)
	require.NoError(t, err)
	defer store.Close()

	batch := graphstore.Batch{
		Directories: []model.Directory{
			{ProjectHash: projectHash, RelPath: ".", AbsPath: "/repo", RepoName: "repo"},
		},
		Files: []model.File{
			{ProjectHash: projectHash, RelPath: "widgets.go", AbsPath: "/repo/widgets.go", Language: "go", Extension: ".go", ContentHash: "abc", Size: 42},
		},
		Definitions: []model.Definition{
			{
				ProjectHash: projectHash, FQN: "widgets.NewWidget", Kind: model.DefKindFunction,
				PrimaryLocation: model.Location{FilePath: "widgets.go", Lines: model.LineRange{StartLine: 3, EndLine: 3}, Bytes: model.ByteRange{StartByte: 10, EndByte: 40}},
			},
			{
				ProjectHash: projectHash, FQN: "widgets.Run", Kind: model.DefKindFunction,
				PrimaryLocation: model.Location{FilePath: "widgets.go", Lines: model.LineRange{StartLine: 5, EndLine: 7}, Bytes: model.ByteRange{StartByte: 50, EndByte: 90}},
			},
		},
	}
	require.NoError(t, store.BulkLoad(ctx, batch))

	fromKey := model.Definition{ProjectHash: projectHash, FQN: "widgets.Run", Kind: model.DefKindFunction,
		PrimaryLocation: model.Location{FilePath: "widgets.go"}}.Key()
	toKey := model.Definition{ProjectHash: projectHash, FQN: "widgets.NewWidget", Kind: model.DefKindFunction,
		PrimaryLocation: model.Location{FilePath: "widgets.go"}}.Key()
	require.NoError(t, store.ApplyPatch(ctx, graphstore.Patch{
		Upsert: graphstore.Batch{
			Relationships: []model.Relationship{
				{ProjectHash: projectHash, Kind: model.RelReferences, FromKey: fromKey, ToKey: toKey, CallSite: &model.LineRange{StartLine: 6, EndLine: 6}},
			},
		},
	}))
}

func TestService_Stats(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	st, err := svc.Stats(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Directories)
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, 2, st.Definitions)
	assert.Equal(t, 1, st.Relationships)
}

func TestService_InitialSubgraph(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	sg, err := svc.InitialSubgraph(context.Background(), "deadbeef", 10)
	require.NoError(t, err)
	assert.Len(t, sg.Directories, 1)
	assert.Len(t, sg.Files, 1)
	assert.Len(t, sg.Definitions, 2)
}

func TestService_Neighbors(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	runKey := model.Definition{ProjectHash: "deadbeef", FQN: "widgets.Run", Kind: model.DefKindFunction,
		PrimaryLocation: model.Location{FilePath: "widgets.go"}}.Key()

	n, err := svc.Neighbors(context.Background(), "deadbeef", NodeDefinition, runKey, 0)
	require.NoError(t, err)
	require.Len(t, n.Outgoing, 1)
	assert.Equal(t, model.RelReferences, n.Outgoing[0].Kind)
	assert.Empty(t, n.Incoming)
	assert.Equal(t, "widgets.Run", n.Labels[runKey])
	assert.Equal(t, "widgets.NewWidget", n.Labels[n.Outgoing[0].ToKey])
}

func TestService_Neighbors_RejectsUnknownNodeType(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	_, err := svc.Neighbors(context.Background(), "deadbeef", NodeType("bogus"), "deadbeef:def:x", 0)
	assert.Error(t, err)
}

func TestService_Search_Substring(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	res, err := svc.Search(context.Background(), "deadbeef", "Widget", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "widgets.NewWidget", res.Hits[0].Label)
	assert.False(t, res.HasMore)
}

func TestService_DefinitionsByName(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	defs, err := svc.DefinitionsByName(context.Background(), "deadbeef", "widgets.Run")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 5, defs[0].PrimaryLocation.Lines.StartLine)
}

func TestService_DefinitionAt(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	d, ok, err := svc.DefinitionAt(context.Background(), "deadbeef", "widgets.go", 6)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widgets.Run", d.FQN)

	_, ok, err = svc.DefinitionAt(context.Background(), "deadbeef", "widgets.go", 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_References(t *testing.T) {
	svc, reg, _ := newTestService(t)
	seedProject(t, reg, "deadbeef")

	newWidgetKey := model.Definition{ProjectHash: "deadbeef", FQN: "widgets.NewWidget", Kind: model.DefKindFunction,
		PrimaryLocation: model.Location{FilePath: "widgets.go"}}.Key()

	refs, err := svc.References(context.Background(), "deadbeef", newWidgetKey, 0)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.NotNil(t, refs[0].CallSite)
	assert.Equal(t, 6, refs[0].CallSite.StartLine)
}
