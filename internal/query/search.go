package query

import (
	"context"
	"fmt"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// defaultSearchLimit bounds a single search page when the caller does not
// specify one.
const defaultSearchLimit = 50

// SearchHit is one match against a node's label or FQN.
type SearchHit struct {
	NodeKey string         `json:"node_key"`
	Kind    NodeType       `json:"kind"`
	Label   string         `json:"label"`
	File    model.File     `json:"file,omitempty"`
	Def     *model.Definition `json:"definition,omitempty"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Hits       []SearchHit `json:"hits"`
	NextOffset int         `json:"next_offset,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// Search performs a substring (or, if exact is true, exact) match over
// file paths and definition FQNs, paginated by limit/offset (spec §4.9).
// offset applies independently to each source table rather than to a
// single merged ordering across both.
func (s *Service) Search(ctx context.Context, projectHash, term string, exact bool, limit, offset int) (SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return SearchResult{}, err
	}
	defer store.Close()

	// instr gives a literal, case-sensitive substring match; LIKE would fold
	// ASCII case and treat % and _ in the term as wildcards.
	fileCond, defCond := "instr(rel_path, ?) > 0", "instr(fqn, ?) > 0"
	if exact {
		fileCond, defCond = "rel_path = ?", "fqn = ?"
	}

	// Fetch one extra row past the page to learn whether more results
	// remain, without a second COUNT query.
	fileRows, err := store.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT rel_path, abs_path, language, extension, content_hash, size FROM files WHERE %s ORDER BY rel_path LIMIT ? OFFSET ?`, fileCond),
		term, limit+1, offset)
	if err != nil {
		return SearchResult{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to search files", err)
	}
	var hits []SearchHit
	for fileRows.Next() {
		var f model.File
		if err := fileRows.Scan(&f.RelPath, &f.AbsPath, &f.Language, &f.Extension, &f.ContentHash, &f.Size); err != nil {
			fileRows.Close()
			return SearchResult{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan file search row", err)
		}
		f.ProjectHash = projectHash
		hits = append(hits, SearchHit{NodeKey: f.Key(), Kind: NodeFile, Label: f.RelPath, File: f})
	}
	fileRows.Close()

	defRows, err := store.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT fqn, kind, file_path, start_line, end_line, start_byte, end_byte, ambiguous, enclosing_scope FROM definitions WHERE %s ORDER BY fqn LIMIT ? OFFSET ?`, defCond),
		term, limit+1, offset)
	if err != nil {
		return SearchResult{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to search definitions", err)
	}
	for defRows.Next() {
		d, err := scanDefinitionRow(defRows, projectHash)
		if err != nil {
			defRows.Close()
			return SearchResult{}, err
		}
		hits = append(hits, SearchHit{NodeKey: d.Key(), Kind: NodeDefinition, Label: d.FQN, Def: &d})
	}
	defRows.Close()

	hasMore := len(hits) > limit
	if hasMore {
		hits = hits[:limit]
	}
	result := SearchResult{Hits: hits, HasMore: hasMore}
	if hasMore {
		result.NextOffset = offset + limit
	}
	return result, nil
}
