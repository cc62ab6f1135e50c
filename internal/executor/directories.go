package executor

import (
	"path/filepath"

	"github.com/gkg/knowledgegraph/internal/model"
)

// directoryBuilder accumulates the Directory nodes implied by a project's
// discovered files and the contains_directory edges linking each directory
// to its immediate children (sub-directories and files alike — the graph
// has a single containment relationship kind for both, per spec.md §3).
type directoryBuilder struct {
	projectHash string
	projectRoot string
	dirs        map[string]model.Directory
	children    map[string][]string // parent rel path -> child rel paths (dir or file)
}

func newDirectoryBuilder(projectHash, projectRoot string) *directoryBuilder {
	b := &directoryBuilder{
		projectHash: projectHash,
		projectRoot: projectRoot,
		dirs:        make(map[string]model.Directory),
		children:    make(map[string][]string),
	}
	b.ensureDir(".")
	return b
}

// ensureDir registers rel (and, transitively, every ancestor up to the
// project root) as a known Directory, recording the parent-child link.
func (b *directoryBuilder) ensureDir(rel string) {
	if _, ok := b.dirs[rel]; ok {
		return
	}
	abs := b.projectRoot
	if rel != "." {
		abs = filepath.Join(b.projectRoot, rel)
	}
	b.dirs[rel] = model.Directory{
		ProjectHash: b.projectHash,
		RelPath:     rel,
		AbsPath:     abs,
		RepoName:    repoNameFor(b.projectRoot),
	}
	if rel != "." {
		parent := parentOf(rel)
		b.ensureDir(parent)
		b.children[parent] = append(b.children[parent], rel)
	}
}

// addFile registers a discovered file's containing directory chain.
func (b *directoryBuilder) addFile(relPath string) {
	dir := parentOf(relPath)
	b.ensureDir(dir)
	b.children[dir] = append(b.children[dir], relPath)
}

// containmentEdges appends every directory->child contains_directory edge
// to edges and returns the full set of Directory nodes discovered so far.
func (b *directoryBuilder) containmentEdges(edges *[]model.Relationship) []model.Directory {
	dirs := make([]model.Directory, 0, len(b.dirs))
	for _, d := range b.dirs {
		dirs = append(dirs, d)
	}
	for parent, kids := range b.children {
		parentDir := b.dirs[parent]
		for _, kid := range kids {
			var toKey string
			if d, ok := b.dirs[kid]; ok {
				toKey = d.Key()
			} else {
				toKey = model.File{ProjectHash: b.projectHash, RelPath: kid}.Key()
			}
			*edges = append(*edges, model.Relationship{
				ProjectHash: b.projectHash,
				Kind:        model.RelContainsDirectory,
				FromKey:     parentDir.Key(),
				ToKey:       toKey,
			})
		}
	}
	return dirs
}

// parentOf returns rel's containing directory in the project-relative
// namespace, "." for a top-level entry.
func parentOf(rel string) string {
	d := filepath.Dir(rel)
	if d == "." || d == "" {
		return "."
	}
	return d
}
