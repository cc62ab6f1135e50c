// Package registry implements the workspace registry (spec C2): the
// durable JSON manifest of known workspaces and their projects, guarded by
// a process-wide file lock so the daemon and one-shot CLI invocations never
// race on the same manifest file.
package registry

import (
	"os"
	"path/filepath"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// Registry mediates all reads and writes of gkg_manifest.json.
type Registry struct {
	manifestPath     string
	lock             *FileLock
	workspaceDataDir string // root dir holding per-project graph store directories
}

// New creates a Registry backed by the given manifest and lock file paths
// (see internal/logging.ManifestPath / LockPath / WorkspaceFoldersDir).
func New(manifestPath, lockPath, workspaceDataDir string) *Registry {
	return &Registry{
		manifestPath:     manifestPath,
		lock:             NewFileLock(lockPath),
		workspaceDataDir: workspaceDataDir,
	}
}

// withLock acquires the manifest lock, loads the manifest, runs fn, and
// persists the manifest if fn reports it mutated anything.
func (r *Registry) withLock(fn func(m *manifest) (mutated bool, err error)) error {
	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = r.lock.Unlock() }()

	m, err := loadManifestFile(r.manifestPath)
	if err != nil {
		return err
	}
	mutated, err := fn(m)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}
	return saveManifestFile(r.manifestPath, m)
}

// withReadLock acquires the manifest lock for a read-only operation, still
// using the exclusive OS lock since gofrs/flock has no cross-platform
// shared-lock guarantee for this use case and reads are infrequent
// relative to indexing writes.
func (r *Registry) withReadLock(fn func(m *manifest) error) error {
	return r.withLock(func(m *manifest) (bool, error) {
		return false, fn(m)
	})
}

// ProjectDataDir returns the on-disk directory holding a project's graph
// store files.
func (r *Registry) ProjectDataDir(projectHash string) string {
	return filepath.Join(r.workspaceDataDir, projectHash)
}

// RegisterWorkspace adds a workspace to the manifest if absent, returning
// its canonical record. Re-registering an existing workspace is a no-op
// that returns the existing record.
func (r *Registry) RegisterWorkspace(path, frameworkVersion string) (model.Workspace, error) {
	canon, err := canonicalize(path)
	if err != nil {
		return model.Workspace{}, err
	}
	dataDirName := HashPath(canon)

	var result model.Workspace
	err = r.withLock(func(m *manifest) (bool, error) {
		if existing, ok := m.Workspaces[dataDirName]; ok {
			result = toWorkspace(existing)
			return false, nil
		}
		entry := &workspaceEntry{
			Path:             canon,
			DataDirName:      dataDirName,
			FrameworkVersion: frameworkVersion,
			Projects:         make(map[string]*projectEntry),
		}
		m.Workspaces[dataDirName] = entry
		result = toWorkspace(entry)
		return true, nil
	})
	return result, err
}

// RemoveWorkspace deletes a workspace and all of its projects' on-disk
// graph stores (spec C2: delete cascade).
func (r *Registry) RemoveWorkspace(path string) error {
	canon, err := canonicalize(path)
	if err != nil {
		return err
	}
	dataDirName := HashPath(canon)

	var projectHashes []string
	err = r.withLock(func(m *manifest) (bool, error) {
		entry, ok := m.Workspaces[dataDirName]
		if !ok {
			return false, nil
		}
		for hash := range entry.Projects {
			projectHashes = append(projectHashes, hash)
		}
		delete(m.Workspaces, dataDirName)
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, hash := range projectHashes {
		if rmErr := os.RemoveAll(r.ProjectDataDir(hash)); rmErr != nil && !os.IsNotExist(rmErr) {
			return gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to remove project data directory during workspace delete", rmErr)
		}
	}
	return nil
}

// ListWorkspaces returns every registered workspace with its aggregated
// status.
func (r *Registry) ListWorkspaces() ([]model.Workspace, error) {
	var out []model.Workspace
	err := r.withReadLock(func(m *manifest) error {
		for _, entry := range m.Workspaces {
			out = append(out, toWorkspace(entry))
		}
		return nil
	})
	return out, err
}

// GetWorkspace looks up a workspace by path.
func (r *Registry) GetWorkspace(path string) (model.Workspace, bool, error) {
	canon, err := canonicalize(path)
	if err != nil {
		return model.Workspace{}, false, err
	}
	dataDirName := HashPath(canon)

	var ws model.Workspace
	var found bool
	err = r.withReadLock(func(m *manifest) error {
		entry, ok := m.Workspaces[dataDirName]
		if ok {
			ws, found = toWorkspace(entry), true
		}
		return nil
	})
	return ws, found, err
}

// ListProjects returns every project registered under a workspace.
func (r *Registry) ListProjects(workspacePath string) ([]model.Project, error) {
	canon, err := canonicalize(workspacePath)
	if err != nil {
		return nil, err
	}
	dataDirName := HashPath(canon)

	var out []model.Project
	err = r.withReadLock(func(m *manifest) error {
		entry, ok := m.Workspaces[dataDirName]
		if !ok {
			return gkgerrors.New(gkgerrors.ErrCodeFileNotFound, "workspace not registered: "+canon, nil)
		}
		for _, p := range entry.Projects {
			out = append(out, toProject(canon, p))
		}
		return nil
	})
	return out, err
}

// UpsertProject registers or updates a project's record under its
// workspace, keyed by Project.Hash.
func (r *Registry) UpsertProject(workspacePath string, proj model.Project) error {
	canon, err := canonicalize(workspacePath)
	if err != nil {
		return err
	}
	dataDirName := HashPath(canon)

	return r.withLock(func(m *manifest) (bool, error) {
		entry, ok := m.Workspaces[dataDirName]
		if !ok {
			return false, gkgerrors.New(gkgerrors.ErrCodeFileNotFound, "workspace not registered: "+canon, nil)
		}
		entry.Projects[proj.Hash] = &projectEntry{
			Path:          proj.Path,
			Hash:          proj.Hash,
			Status:        string(proj.Status),
			LastIndexedAt: proj.LastIndexedAt,
			ErrorMessage:  proj.ErrorMessage,
		}
		return true, nil
	})
}

// RemoveProject drops a single project's manifest record and removes its
// on-disk graph store.
func (r *Registry) RemoveProject(workspacePath, projectHash string) error {
	canon, err := canonicalize(workspacePath)
	if err != nil {
		return err
	}
	dataDirName := HashPath(canon)

	err = r.withLock(func(m *manifest) (bool, error) {
		entry, ok := m.Workspaces[dataDirName]
		if !ok {
			return false, nil
		}
		if _, ok := entry.Projects[projectHash]; !ok {
			return false, nil
		}
		delete(entry.Projects, projectHash)
		return true, nil
	})
	if err != nil {
		return err
	}
	if rmErr := os.RemoveAll(r.ProjectDataDir(projectHash)); rmErr != nil && !os.IsNotExist(rmErr) {
		return gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to remove project data directory", rmErr)
	}
	return nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", gkgerrors.New(gkgerrors.ErrCodeConfigInvalid, "failed to canonicalize path "+path, err)
	}
	return filepath.Clean(abs), nil
}

func toWorkspace(e *workspaceEntry) model.Workspace {
	status := aggregateStatus(e.Projects)
	return model.Workspace{
		Path:             e.Path,
		DataDirName:      e.DataDirName,
		Status:           status,
		FrameworkVersion: e.FrameworkVersion,
	}
}

func toProject(workspacePath string, p *projectEntry) model.Project {
	return model.Project{
		WorkspacePath: workspacePath,
		Path:          p.Path,
		Hash:          p.Hash,
		Status:        model.WorkspaceStatus(p.Status),
		LastIndexedAt: p.LastIndexedAt,
		ErrorMessage:  p.ErrorMessage,
	}
}
