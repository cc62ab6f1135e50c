// Package query implements the Query Surface (spec C9): read-only
// operations used by the HTTP server. Every call opens a short-lived
// connection via graphstore.OpenReadOnly and returns a plain struct — it
// never holds a connection open across calls, so it composes freely with
// the single-writer graph store.
package query

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/model"
	"github.com/gkg/knowledgegraph/internal/registry"
)

// labelCacheSize bounds the node-label cache shared across calls: small
// enough to stay cheap, large enough to cover one IDE session's worth of
// neighbor/search round trips for a single project.
const labelCacheSize = 8192

// Service answers C9 read operations against any registered project's
// graph store.
type Service struct {
	reg    *registry.Registry
	driver graphstore.Driver

	labels *lru.Cache[string, string]
}

// New builds a Service backed by the workspace registry that owns each
// project's on-disk data directory.
func New(reg *registry.Registry, driver graphstore.Driver) (*Service, error) {
	cache, err := lru.New[string, string](labelCacheSize)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to create query label cache", err)
	}
	return &Service{reg: reg, driver: driver, labels: cache}, nil
}

func (s *Service) open(ctx context.Context, projectHash string) (*graphstore.GraphStore, error) {
	dataDir := s.reg.ProjectDataDir(projectHash)
	return graphstore.OpenReadOnly(ctx, dataDir, s.driver)
}

// NodeType enumerates the node kinds a caller may name in a Neighbors call.
type NodeType string

const (
	NodeDirectory  NodeType = "directory"
	NodeFile       NodeType = "file"
	NodeDefinition NodeType = "definition"
	NodeImport     NodeType = "import"
)

// Stats is the per-project counters returned by GET .../graph/stats.
type Stats struct {
	Directories     int `json:"directories"`
	Files           int `json:"files"`
	Definitions     int `json:"definitions"`
	ImportedSymbols int `json:"imported_symbols"`
	Relationships   int `json:"relationships"`
}

// Stats returns node/edge counts for a project (spec §6
// GET /api/graph/stats/{workspace}/{project}).
func (s *Service) Stats(ctx context.Context, projectHash string) (Stats, error) {
	store, err := s.open(ctx, projectHash)
	if err != nil {
		return Stats{}, err
	}
	defer store.Close()

	var st Stats
	rows := []struct {
		table string
		dest  *int
	}{
		{"directories", &st.Directories},
		{"files", &st.Files},
		{"definitions", &st.Definitions},
		{"imported_symbols", &st.ImportedSymbols},
		{"relationships", &st.Relationships},
	}
	for _, r := range rows {
		if err := store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table).Scan(r.dest); err != nil {
			return Stats{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to count "+r.table, err)
		}
	}
	return st, nil
}
