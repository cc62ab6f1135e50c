package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/discovery"
)

func writeFile(t *testing.T, dir, rel, content string) discovery.File {
	t.Helper()
	abs := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return discovery.File{RelPath: rel, AbsPath: abs, Language: discovery.DetectLanguage(rel)}
}

func collect(t *testing.T, ch <-chan Item, timeout time.Duration) []Item {
	t.Helper()
	var items []Item
	deadline := time.After(timeout)
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return items
			}
			items = append(items, item)
		case <-deadline:
			t.Fatal("timed out waiting for pipeline output")
		}
	}
}

func TestRunProducesOneItemPerFile(t *testing.T) {
	dir := t.TempDir()
	f1 := writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	f2 := writeFile(t, dir, "util.py", "def helper():\n    pass\n")

	in := make(chan discovery.Result, 2)
	in <- discovery.Result{File: &f1}
	in <- discovery.Result{File: &f2}
	close(in)

	reg := analyzer.NewRegistry(analyzer.NewGoAnalyzer(), analyzer.NewPythonAnalyzer())
	out := Run(context.Background(), in, reg, Options{ReaderConcurrency: 2, ParserConcurrency: 2, BufferSize: 8})

	items := collect(t, out, 5*time.Second)
	require.Len(t, items, 2)

	byPath := make(map[string]Item)
	for _, item := range items {
		byPath[item.File.RelPath] = item
	}

	require.Contains(t, byPath, "main.go")
	assert.NoError(t, byPath["main.go"].Err)
	assert.NotEmpty(t, byPath["main.go"].ContentHash)
	assert.NotEmpty(t, byPath["main.go"].Analysis.Definitions)

	require.Contains(t, byPath, "util.py")
	assert.NotEmpty(t, byPath["util.py"].Analysis.Definitions)
}

func TestRunSurfacesWalkErrorsAsItems(t *testing.T) {
	in := make(chan discovery.Result, 1)
	in <- discovery.Result{Err: os.ErrPermission}
	close(in)

	reg := analyzer.NewRegistry()
	out := Run(context.Background(), in, reg, Options{})

	items := collect(t, out, 5*time.Second)
	require.Len(t, items, 1)
	assert.Error(t, items[0].Err)
}

func TestRunSkipsFilesWithoutARegisteredAnalyzer(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "notes.md", "# notes\n")

	in := make(chan discovery.Result, 1)
	in <- discovery.Result{File: &f}
	close(in)

	reg := analyzer.NewRegistry(analyzer.NewGoAnalyzer())
	out := Run(context.Background(), in, reg, Options{})

	items := collect(t, out, 5*time.Second)
	require.Len(t, items, 1)
	assert.NoError(t, items[0].Err)
	assert.Empty(t, items[0].Analysis.Definitions)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	in := make(chan discovery.Result)
	ctx, cancel := context.WithCancel(context.Background())
	reg := analyzer.NewRegistry()
	out := Run(ctx, in, reg, Options{})
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not shut down after cancellation")
	}
}

func TestToFileNodeDerivesExtension(t *testing.T) {
	item := Item{
		File:        discovery.File{RelPath: "pkg/widget.go", AbsPath: "/tmp/pkg/widget.go", Language: "go"},
		ContentHash: "abc123",
		Size:        42,
	}
	node := ToFileNode("proj1", item)
	assert.Equal(t, "proj1", node.ProjectHash)
	assert.Equal(t, ".go", node.Extension)
	assert.Equal(t, "abc123", node.ContentHash)
	assert.Equal(t, int64(42), node.Size)
}
