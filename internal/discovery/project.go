package discovery

import (
	"os"
	"path/filepath"
	"sort"
)

// vcsMarkers are directory/file names whose presence at a directory marks
// it as the root of a version-controlled project (spec C3: "VCS-marker-
// based project detection").
var vcsMarkers = []string{".git", ".hg", ".svn", ".jj"}

// FindProjects walks workspaceRoot up to maxDepth levels looking for VCS
// markers, returning each project root as an absolute path. workspaceRoot
// itself is returned as the sole project when no marker is found anywhere
// under it. Repositories below the workspace root are discovered up to
// maxDepth, but a root that lies inside another discovered root (e.g. a git
// submodule) is dropped by dedupeNested, so only the outermost is returned.
func FindProjects(workspaceRoot string, maxDepth int) ([]string, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "find-projects", Path: abs, Err: os.ErrInvalid}
	}

	var roots []string
	seen := make(map[string]bool)
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if hasVCSMarker(dir) && !seen[dir] {
			roots = append(roots, dir)
			seen[dir] = true
			// Keep descending (but never into the marker directory
			// itself); roots found inside this one are removed by
			// dedupeNested once the walk is done.
		}
		if depth >= maxDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil // unreadable subdirectory: skip, do not abort the walk
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if name == ".git" || name == ".hg" || name == ".svn" || name == ".jj" || name == "node_modules" {
				continue
			}
			if err := walk(filepath.Join(dir, name), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(abs, 0); err != nil {
		return nil, err
	}

	if len(roots) == 0 {
		// No VCS marker anywhere under the workspace: treat the workspace
		// root itself as the sole project (spec C3 edge case).
		roots = append(roots, abs)
	}

	sort.Strings(roots)
	return dedupeNested(roots), nil
}

func hasVCSMarker(dir string) bool {
	for _, marker := range vcsMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// dedupeNested removes any root that is itself nested inside another root
// already present in the (sorted) list, guarding against canonicalization
// producing duplicate or overlapping entries.
func dedupeNested(sortedRoots []string) []string {
	var out []string
	for _, r := range sortedRoots {
		nested := false
		for _, kept := range out {
			if r != kept && hasPathPrefix(r, kept) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r)
		}
	}
	return out
}

func hasPathPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	return err == nil && rel != ".." && len(rel) > 0 && rel[0] != '.' && rel != "."
}
