package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/model"
)

func loc(path string, start, end int) model.Location {
	return model.Location{FilePath: path, Lines: model.LineRange{StartLine: start, EndLine: end}}
}

func TestResolveWithinSamePackageAcrossFiles(t *testing.T) {
	widgetFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "widget.go"},
		Definitions: []model.Definition{
			{FQN: "widgets.Widget", Kind: model.DefKindClass, PrimaryLocation: loc("widget.go", 1, 5), EnclosingScope: "widgets"},
			{FQN: "widgets.NewWidget", Kind: model.DefKindFunction, PrimaryLocation: loc("widget.go", 7, 9), EnclosingScope: "widgets"},
		},
	}
	callerFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "main.go"},
		Definitions: []model.Definition{
			{FQN: "widgets.Run", Kind: model.DefKindFunction, PrimaryLocation: loc("main.go", 1, 4), EnclosingScope: "widgets"},
		},
		References: []analyzer.Reference{
			{Chain: []string{"NewWidget"}, Lines: model.LineRange{StartLine: 2, EndLine: 2}, IsCall: true},
		},
	}

	r, err := New("p1", []FileFacts{widgetFile, callerFile})
	require.NoError(t, err)

	edges := r.Resolve()
	var found bool
	for _, e := range edges {
		if e.Kind == model.RelReferences && e.ToKey == widgetFile.Definitions[1].Key() {
			found = true
			assert.Equal(t, callerFile.Definitions[0].Key(), e.FromKey)
			assert.False(t, e.Ambiguous)
		}
	}
	assert.True(t, found, "expected a references edge from widgets.Run to widgets.NewWidget")
}

func TestResolveExplicitImportAlias(t *testing.T) {
	libFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "lib/helpers.go"},
		Definitions: []model.Definition{
			{FQN: "helpers.Format", Kind: model.DefKindFunction, PrimaryLocation: loc("lib/helpers.go", 1, 3), EnclosingScope: "helpers"},
		},
	}
	mainFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "main.go"},
		Definitions: []model.Definition{
			{FQN: "main.Run", Kind: model.DefKindFunction, PrimaryLocation: loc("main.go", 1, 6), EnclosingScope: "main"},
		},
		Imports: []model.ImportedSymbol{
			{FilePath: "main.go", Form: "import", Name: "helpers", TargetPath: "example.com/proj/helpers", Lines: model.LineRange{StartLine: 1, EndLine: 1}},
		},
		References: []analyzer.Reference{
			{Chain: []string{"helpers", "Format"}, Lines: model.LineRange{StartLine: 3, EndLine: 3}, IsCall: true},
		},
	}

	r, err := New("p1", []FileFacts{libFile, mainFile})
	require.NoError(t, err)

	edges := r.Resolve()
	var found bool
	for _, e := range edges {
		if e.Kind == model.RelReferences && e.ToKey == libFile.Definitions[0].Key() {
			found = true
		}
	}
	assert.True(t, found, "expected helpers.Format to resolve via the explicit import alias")
}

func TestResolveMarksAmbiguousDefinitionsSharingFQN(t *testing.T) {
	fileA := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "a.go"},
		Definitions: []model.Definition{
			{FQN: "widgets.Build", Kind: model.DefKindFunction, PrimaryLocation: loc("a.go", 5, 7), EnclosingScope: "widgets"},
		},
	}
	fileB := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "b.go"},
		Definitions: []model.Definition{
			{FQN: "widgets.Build", Kind: model.DefKindFunction, PrimaryLocation: loc("b.go", 1, 3), EnclosingScope: "widgets"},
		},
	}

	r, err := New("p1", []FileFacts{fileA, fileB})
	require.NoError(t, err)

	defs := r.defsByFQN["widgets.Build"]
	require.Len(t, defs, 2)
	assert.True(t, defs[0].Ambiguous)
	assert.True(t, defs[1].Ambiguous)
	// Tie-break: the earlier file by (file path, start line) ordering wins.
	assert.Equal(t, "a.go", defs[0].PrimaryLocation.FilePath)
}

func TestResolveDropsUnresolvableChainsSilently(t *testing.T) {
	f := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "main.go"},
		Definitions: []model.Definition{
			{FQN: "main.Run", Kind: model.DefKindFunction, PrimaryLocation: loc("main.go", 1, 6), EnclosingScope: "main"},
		},
		References: []analyzer.Reference{
			{Chain: []string{"unknownPkg", "DoThing"}, Lines: model.LineRange{StartLine: 3, EndLine: 3}, IsCall: true},
		},
	}

	r, err := New("p1", []FileFacts{f})
	require.NoError(t, err)

	edges := r.Resolve()
	for _, e := range edges {
		assert.NotEqual(t, model.RelReferences, e.Kind)
	}
}

func TestResolveEmitsImportsEdgeRegardlessOfResolution(t *testing.T) {
	f := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "main.go"},
		Imports: []model.ImportedSymbol{
			{FilePath: "main.go", Form: "import", Name: "fmt", TargetPath: "fmt", Lines: model.LineRange{StartLine: 1, EndLine: 1}},
		},
	}

	r, err := New("p1", []FileFacts{f})
	require.NoError(t, err)

	edges := r.Resolve()
	require.Len(t, edges, 1)
	assert.Equal(t, model.RelImports, edges[0].Kind)
	assert.Equal(t, f.File.Key(), edges[0].FromKey)
	assert.Equal(t, f.Imports[0].Key(), edges[0].ToKey)
}

func TestResolvePythonFromImportResolvesToDefinition(t *testing.T) {
	shapesFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "widgets/shapes.py"},
		Definitions: []model.Definition{
			{FQN: "Circle", Kind: model.DefKindClass, PrimaryLocation: loc("widgets/shapes.py", 1, 3), EnclosingScope: ""},
		},
	}
	mainFile := FileFacts{
		File: model.File{ProjectHash: "p1", RelPath: "main.py"},
		Imports: []model.ImportedSymbol{
			{FilePath: "main.py", Form: "from-import", Name: "Circle", TargetPath: "widgets.shapes", Lines: model.LineRange{StartLine: 1, EndLine: 1}},
		},
	}

	r, err := New("p1", []FileFacts{shapesFile, mainFile})
	require.NoError(t, err)

	edges := r.Resolve()
	var found bool
	for _, e := range edges {
		if e.Kind == model.RelResolvesTo && e.ToKey == shapesFile.Definitions[0].Key() {
			found = true
		}
	}
	assert.True(t, found, "expected 'from widgets.shapes import Circle' to resolve to Circle's definition")
}
