package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
)

// schemaVersion is bumped whenever the node/relationship table layout
// changes incompatibly. Stores written by an older major version are
// rejected outright rather than silently misread (spec: "major-version
// mismatch rejection").
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS directories (
	key       TEXT PRIMARY KEY,
	rel_path  TEXT NOT NULL,
	abs_path  TEXT NOT NULL,
	repo_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	key          TEXT PRIMARY KEY,
	rel_path     TEXT NOT NULL,
	abs_path     TEXT NOT NULL,
	language     TEXT NOT NULL,
	extension    TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	size         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_rel_path ON files(rel_path);

CREATE TABLE IF NOT EXISTS definitions (
	key              TEXT PRIMARY KEY,
	fqn              TEXT NOT NULL,
	kind             TEXT NOT NULL,
	file_path        TEXT NOT NULL,
	start_line       INTEGER NOT NULL,
	end_line         INTEGER NOT NULL,
	start_byte       INTEGER NOT NULL,
	end_byte         INTEGER NOT NULL,
	secondary_locs   TEXT NOT NULL DEFAULT '[]',
	ambiguous        INTEGER NOT NULL DEFAULT 0,
	enclosing_scope  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_definitions_fqn ON definitions(fqn);
CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_path);

CREATE TABLE IF NOT EXISTS imported_symbols (
	key         TEXT PRIMARY KEY,
	file_path   TEXT NOT NULL,
	form        TEXT NOT NULL,
	name        TEXT NOT NULL,
	wildcard    INTEGER NOT NULL DEFAULT 0,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	target_path TEXT NOT NULL DEFAULT '',
	alias       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imported_symbols(file_path);

CREATE TABLE IF NOT EXISTS relationships (
	kind          TEXT NOT NULL,
	from_key      TEXT NOT NULL,
	to_key        TEXT NOT NULL,
	call_start    INTEGER,
	call_end      INTEGER,
	ambiguous     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (kind, from_key, to_key)
);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_key);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_key);
`

// EnsureSchema creates the schema if absent and rejects stores whose
// recorded major version differs from the version this binary understands.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to apply graph store schema", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to read schema_version", err)
	}
	if count == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES (?)`, schemaVersion); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to stamp schema_version", err)
		}
		return nil
	}

	var stored int
	if err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&stored); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to read schema_version", err)
	}
	if stored != schemaVersion {
		return gkgerrors.New(gkgerrors.ErrCodeSchemaMismatch,
			fmt.Sprintf("graph store schema version %d is incompatible with this binary (expects %d); rebuild the project index", stored, schemaVersion),
			nil)
	}
	return nil
}
