package query

import (
	"context"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// DefinitionsByName returns every Definition exactly matching fqn (there
// may be more than one when Ambiguous is set).
func (s *Service) DefinitionsByName(ctx context.Context, projectHash, fqn string) ([]model.Definition, error) {
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	rows, err := store.DB().QueryContext(ctx,
		`SELECT fqn, kind, file_path, start_line, end_line, start_byte, end_byte, ambiguous, enclosing_scope FROM definitions WHERE fqn = ?`,
		fqn)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query definitions by name", err)
	}
	defer rows.Close()

	var out []model.Definition
	for rows.Next() {
		d, err := scanDefinitionRow(rows, projectHash)
		if err != nil {
			return nil, err
		}
		locs, err := secondaryLocations(store.DB(), d.Key())
		if err != nil {
			return nil, err
		}
		d.SecondaryLocations = locs
		out = append(out, d)
	}
	return out, nil
}

// DefinitionAt returns the Definition, if any, whose primary location
// covers (filePath, line) — the lookup behind a "go to definition" style
// call keyed by cursor position rather than name.
func (s *Service) DefinitionAt(ctx context.Context, projectHash, filePath string, line int) (model.Definition, bool, error) {
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return model.Definition{}, false, err
	}
	defer store.Close()

	rows, err := store.DB().QueryContext(ctx,
		`SELECT fqn, kind, file_path, start_line, end_line, start_byte, end_byte, ambiguous, enclosing_scope
		 FROM definitions WHERE file_path = ? AND start_line <= ? AND end_line >= ?
		 ORDER BY (end_line - start_line) ASC LIMIT 1`,
		filePath, line, line)
	if err != nil {
		return model.Definition{}, false, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query definition at location", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.Definition{}, false, nil
	}
	d, err := scanDefinitionRow(rows, projectHash)
	if err != nil {
		return model.Definition{}, false, err
	}
	return d, true, nil
}

// References returns every Relationship of kind RelReferences whose ToKey
// is the given definition's node key — i.e. every call site referencing it.
func (s *Service) References(ctx context.Context, projectHash, definitionKey string, limit int) ([]model.Relationship, error) {
	if limit <= 0 {
		limit = defaultNeighborsLimit
	}
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return queryRelationships(ctx, store, projectHash,
		`SELECT kind, from_key, to_key, call_start, call_end, ambiguous FROM relationships WHERE to_key = ? AND kind = 'references' LIMIT ?`,
		definitionKey, limit)
}
