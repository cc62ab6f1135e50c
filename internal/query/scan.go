package query

import (
	"database/sql"
	"encoding/json"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDefinitionRow reads one definitions row, shared by every query that
// projects the full Definition shape (initial subgraph, search hits,
// definitions/references lookups).
func scanDefinitionRow(row rowScanner, projectHash string) (model.Definition, error) {
	var d model.Definition
	var kind string
	var ambiguous int

	if err := row.Scan(&d.FQN, &kind, &d.PrimaryLocation.FilePath,
		&d.PrimaryLocation.Lines.StartLine, &d.PrimaryLocation.Lines.EndLine,
		&d.PrimaryLocation.Bytes.StartByte, &d.PrimaryLocation.Bytes.EndByte,
		&ambiguous, &d.EnclosingScope); err != nil {
		return model.Definition{}, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to scan definition row", err)
	}

	d.ProjectHash = projectHash
	d.Kind = model.DefinitionKind(kind)
	d.Ambiguous = ambiguous != 0
	return d, nil
}

// secondaryLocations loads a definition's reopened/partial locations,
// stored as a JSON array alongside its primary row.
func secondaryLocations(db *sql.DB, key string) ([]model.Location, error) {
	var raw string
	err := db.QueryRow(`SELECT secondary_locs FROM definitions WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to load secondary locations", err)
	}
	var locs []model.Location
	if err := json.Unmarshal([]byte(raw), &locs); err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to unmarshal secondary locations", err)
	}
	return locs, nil
}
