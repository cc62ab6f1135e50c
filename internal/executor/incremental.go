package executor

import (
	"context"
	"time"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
	"github.com/gkg/knowledgegraph/internal/registry"
)

// IndexProjectIncremental re-parses a project and applies only the changes
// since its last commit as a single transactional Patch (spec C6). Unlike
// the full-index path, unchanged files' rows are left untouched; but
// resolution still runs over the project's complete current file set,
// because an unchanged file's reference may target a definition that moved
// or disappeared in a changed one — re-resolution cannot be scoped to only
// the changed files without risking stale edges.
func (e *Executor) IndexProjectIncremental(ctx context.Context, workspacePath, projectRoot string) error {
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

	dataDir := e.reg.ProjectDataDir(hash)
	store, err := graphstore.Open(ctx, dataDir, e.driver)
	if err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}
	defer store.Close()

	existing, err := existingFileHashes(ctx, store)
	if err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}

	collected, err := e.walkAndParse(ctx, hash, projectRoot)
	if err != nil {
		return e.failProject(workspacePath, hash, proj, err)
	}

	patch := graphstore.Patch{Upsert: graphstore.Batch{Directories: collected.dirs}}
	seen := make(map[string]bool, len(collected.files))
	for i, f := range collected.files {
		seen[f.RelPath] = true
		prevHash, ok := existing[f.RelPath]
		if ok && prevHash == f.ContentHash {
			continue
		}
		if ok {
			// Clear the changed file's old rows first so definitions and
			// imports it no longer declares do not survive the upsert.
			patch.DeleteFileKeys = append(patch.DeleteFileKeys, model.File{ProjectHash: hash, RelPath: f.RelPath}.Key())
		}
		patch.Upsert.Files = append(patch.Upsert.Files, f)
		patch.Upsert.Definitions = append(patch.Upsert.Definitions, collected.facts[i].Definitions...)
		patch.Upsert.ImportedSymbols = append(patch.Upsert.ImportedSymbols, collected.facts[i].Imports...)
	}
	for relPath := range existing {
		if !seen[relPath] {
			patch.DeleteFileKeys = append(patch.DeleteFileKeys, model.File{ProjectHash: hash, RelPath: relPath}.Key())
		}
	}
	// The edge set is always recomputed in full: cheap relative to parsing,
	// and ApplyPatch's relationship upsert is idempotent per (kind, from, to).
	patch.Upsert.Relationships = collected.edges

	if err := store.ApplyPatch(ctx, patch); err != nil {
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
		FilesIndexed: len(patch.Upsert.Files), DefsIndexed: len(patch.Upsert.Definitions), Timestamp: time.Now(),
	})
	return nil
}

// existingFileHashes reads every currently-committed file's content hash,
// keyed by project-relative path, to diff against a fresh parse pass.
func existingFileHashes(ctx context.Context, store *graphstore.GraphStore) (map[string]string, error) {
	rows, err := store.DB().QueryContext(ctx, `SELECT rel_path, content_hash FROM files`)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeStoreBusy, "failed to read existing files for incremental diff", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var relPath, hash string
		if err := rows.Scan(&relPath, &hash); err != nil {
			return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan existing file row", err)
		}
		out[relPath] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to iterate existing file rows", err)
	}
	return out, nil
}
