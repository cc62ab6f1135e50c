package query

import (
	"context"
	"database/sql"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
)

// defaultNeighborsLimit bounds outgoing and incoming edges returned per
// direction when the caller does not specify one.
const defaultNeighborsLimit = 200

// Neighbors is the outgoing/incoming edge set for one node (spec §4.9).
type Neighbors struct {
	NodeKey  string               `json:"node_key"`
	Outgoing []model.Relationship `json:"outgoing"`
	Incoming []model.Relationship `json:"incoming"`
	// Labels maps every node key appearing above (including NodeKey
	// itself) to a human-readable label, so a UI can render an edge list
	// without a second round trip per endpoint.
	Labels map[string]string `json:"labels"`
}

// Neighbors returns the edges touching nodeKey, up to limit per direction.
func (s *Service) Neighbors(ctx context.Context, projectHash string, nodeType NodeType, nodeKey string, limit int) (Neighbors, error) {
	switch nodeType {
	case NodeDirectory, NodeFile, NodeDefinition, NodeImport:
	default:
		return Neighbors{}, gkgerrors.New(gkgerrors.ErrCodeConfigInvalid, "unknown node type: "+string(nodeType), nil)
	}
	if limit <= 0 {
		limit = defaultNeighborsLimit
	}
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return Neighbors{}, err
	}
	defer store.Close()

	out := Neighbors{NodeKey: nodeKey}

	out.Outgoing, err = queryRelationships(ctx, store, projectHash, `SELECT kind, from_key, to_key, call_start, call_end, ambiguous FROM relationships WHERE from_key = ? LIMIT ?`, nodeKey, limit)
	if err != nil {
		return Neighbors{}, err
	}
	out.Incoming, err = queryRelationships(ctx, store, projectHash, `SELECT kind, from_key, to_key, call_start, call_end, ambiguous FROM relationships WHERE to_key = ? LIMIT ?`, nodeKey, limit)
	if err != nil {
		return Neighbors{}, err
	}

	out.Labels, err = s.labelsFor(ctx, store, projectHash, out.endpointKeys())
	if err != nil {
		return Neighbors{}, err
	}
	return out, nil
}

// endpointKeys collects every distinct node key touched by the outgoing and
// incoming edges plus the queried node itself.
func (n Neighbors) endpointKeys() []string {
	seen := map[string]bool{n.NodeKey: true}
	keys := []string{n.NodeKey}
	for _, rels := range [][]model.Relationship{n.Outgoing, n.Incoming} {
		for _, r := range rels {
			for _, k := range [2]string{r.FromKey, r.ToKey} {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}

// labelsFor resolves a human-readable label for each node key, checking the
// Service's bounded label cache before falling back to a lookup against the
// definitions/files/directories tables.
func (s *Service) labelsFor(ctx context.Context, store *graphstore.GraphStore, projectHash string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if label, ok := s.labels.Get(key); ok {
			out[key] = label
			continue
		}
		label, err := lookupLabel(ctx, store, key)
		if err != nil {
			return nil, err
		}
		if label != "" {
			s.labels.Add(key, label)
			out[key] = label
		}
	}
	return out, nil
}

// lookupLabel tries each node table in turn for a key, since a bare key
// string doesn't otherwise reveal its owning table.
func lookupLabel(ctx context.Context, store *graphstore.GraphStore, key string) (string, error) {
	for _, q := range []string{
		`SELECT fqn FROM definitions WHERE key = ?`,
		`SELECT rel_path FROM files WHERE key = ?`,
		`SELECT rel_path FROM directories WHERE key = ?`,
		`SELECT name FROM imported_symbols WHERE key = ?`,
	} {
		var label string
		err := store.DB().QueryRowContext(ctx, q, key).Scan(&label)
		if err == nil {
			return label, nil
		}
		if err != sql.ErrNoRows {
			return "", gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to resolve node label", err)
		}
	}
	return "", nil
}

func queryRelationships(ctx context.Context, store *graphstore.GraphStore, projectHash, query, nodeKey string, limit int) ([]model.Relationship, error) {
	rows, err := store.DB().QueryContext(ctx, query, nodeKey, limit)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to query relationships", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		var r model.Relationship
		var kind string
		var ambiguous int
		var callStart, callEnd *int
		if err := rows.Scan(&kind, &r.FromKey, &r.ToKey, &callStart, &callEnd, &ambiguous); err != nil {
			return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan relationship row", err)
		}
		r.ProjectHash = projectHash
		r.Kind = model.RelationshipKind(kind)
		r.Ambiguous = ambiguous != 0
		if callStart != nil && callEnd != nil {
			r.CallSite = &model.LineRange{StartLine: *callStart, EndLine: *callEnd}
		}
		out = append(out, r)
	}
	return out, nil
}
