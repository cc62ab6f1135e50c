package query

import (
	"context"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// defaultInitialLimit bounds each node kind in an initial subgraph when the
// caller does not specify one, keeping the first paint of a UI cheap
// regardless of project size.
const defaultInitialLimit = 500

// InitialSubgraph is the bounded node set used to seed a UI (spec §4.9).
type InitialSubgraph struct {
	Directories     []model.Directory       `json:"directories"`
	Files           []model.File            `json:"files"`
	Definitions     []model.Definition      `json:"definitions"`
	ImportedSymbols []model.ImportedSymbol  `json:"imported_symbols"`
}

// InitialSubgraph returns up to limit directories, files, definitions, and
// imported symbols for a project. A non-positive limit falls back to
// defaultInitialLimit.
func (s *Service) InitialSubgraph(ctx context.Context, projectHash string, limit int) (InitialSubgraph, error) {
	if limit <= 0 {
		limit = defaultInitialLimit
	}
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return InitialSubgraph{}, err
	}
	defer store.Close()

	var out InitialSubgraph

	dirRows, err := store.DB().QueryContext(ctx, `SELECT rel_path, abs_path, repo_name FROM directories LIMIT ?`, limit)
	if err != nil {
		return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query directories", err)
	}
	for dirRows.Next() {
		var d model.Directory
		if err := dirRows.Scan(&d.RelPath, &d.AbsPath, &d.RepoName); err != nil {
			dirRows.Close()
			return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan directory row", err)
		}
		d.ProjectHash = projectHash
		out.Directories = append(out.Directories, d)
	}
	dirRows.Close()

	fileRows, err := store.DB().QueryContext(ctx, `SELECT rel_path, abs_path, language, extension, content_hash, size FROM files LIMIT ?`, limit)
	if err != nil {
		return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query files", err)
	}
	for fileRows.Next() {
		var f model.File
		if err := fileRows.Scan(&f.RelPath, &f.AbsPath, &f.Language, &f.Extension, &f.ContentHash, &f.Size); err != nil {
			fileRows.Close()
			return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan file row", err)
		}
		f.ProjectHash = projectHash
		out.Files = append(out.Files, f)
	}
	fileRows.Close()

	defRows, err := store.DB().QueryContext(ctx, `SELECT fqn, kind, file_path, start_line, end_line, start_byte, end_byte, ambiguous, enclosing_scope FROM definitions LIMIT ?`, limit)
	if err != nil {
		return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query definitions", err)
	}
	for defRows.Next() {
		d, err := scanDefinitionRow(defRows, projectHash)
		if err != nil {
			defRows.Close()
			return InitialSubgraph{}, err
		}
		out.Definitions = append(out.Definitions, d)
	}
	defRows.Close()

	impRows, err := store.DB().QueryContext(ctx, `SELECT file_path, form, name, wildcard, start_line, end_line, target_path, alias FROM imported_symbols LIMIT ?`, limit)
	if err != nil {
		return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query imported symbols", err)
	}
	for impRows.Next() {
		var imp model.ImportedSymbol
		var wildcard int
		if err := impRows.Scan(&imp.FilePath, &imp.Form, &imp.Name, &wildcard, &imp.Lines.StartLine, &imp.Lines.EndLine, &imp.TargetPath, &imp.Alias); err != nil {
			impRows.Close()
			return InitialSubgraph{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan imported symbol row", err)
		}
		imp.ProjectHash = projectHash
		imp.Wildcard = wildcard != 0
		out.ImportedSymbols = append(out.ImportedSymbols, imp)
	}
	impRows.Close()

	return out, nil
}
