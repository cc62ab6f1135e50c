package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
	"github.com/gkg/knowledgegraph/internal/model"
)

// GraphStore is the embedded graph store for a single project (spec C1). It
// wraps one *sql.DB; callers obtain a writer via Open and short-lived
// readers via OpenReadOnly, enforcing the single-writer-per-project
// invariant at the process level.
type GraphStore struct {
	db      *sql.DB
	dataDir string
	driver  Driver
}

// Open opens the writer connection for a project and ensures its schema is
// current, rejecting an incompatible store outright.
func Open(ctx context.Context, dataDir string, driver Driver) (*GraphStore, error) {
	db, err := OpenWriter(dataDir, driver)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &GraphStore{db: db, dataDir: dataDir, driver: driver}, nil
}

// OpenReadOnly opens a short-lived reader for the query surface (C9). It
// does not attempt schema migration; a store with a stale schema fails
// EnsureSchema the same way a writer would.
func OpenReadOnly(ctx context.Context, dataDir string, driver Driver) (*GraphStore, error) {
	db, err := OpenReader(dataDir, driver)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &GraphStore{db: db, dataDir: dataDir, driver: driver}, nil
}

// Close releases the underlying connection.
func (g *GraphStore) Close() error {
	return g.db.Close()
}

// DB exposes the underlying connection for query-surface read operations
// that need arbitrary SELECTs (C9 does not go through GraphStore directly).
func (g *GraphStore) DB() *sql.DB { return g.db }

// Batch is the complete node/edge set for a project, used for the full
// bulk-load write mode.
type Batch struct {
	Directories     []model.Directory
	Files           []model.File
	Definitions     []model.Definition
	ImportedSymbols []model.ImportedSymbol
	Relationships   []model.Relationship
}

// BulkLoad replaces a project's entire graph in one transaction: existing
// rows are cleared and the batch is inserted, mirroring a COPY FROM-style
// load. Used by the full-index path (spec C6). Either the whole batch lands
// or none of it does.
func (g *GraphStore) BulkLoad(ctx context.Context, batch Batch) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeStoreBusy, "failed to begin bulk load transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"relationships", "imported_symbols", "definitions", "files", "directories"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to clear "+table+" for bulk load", err)
		}
	}

	if err := insertDirectories(ctx, tx, batch.Directories); err != nil {
		return err
	}
	if err := insertFiles(ctx, tx, batch.Files); err != nil {
		return err
	}
	if err := insertDefinitions(ctx, tx, batch.Definitions); err != nil {
		return err
	}
	if err := insertImportedSymbols(ctx, tx, batch.ImportedSymbols); err != nil {
		return err
	}
	if err := insertRelationships(ctx, tx, batch.Relationships); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeStoreBusy, "failed to commit bulk load", err)
	}
	return nil
}

// Patch is an incremental change set applied transactionally by the
// incremental-index path (spec C6). DeleteFileKeys names File node keys;
// each file's row, the definitions and imported symbols it owns, and any
// relationships touching them are removed before the upserts are applied.
type Patch struct {
	DeleteFileKeys  []string
	Upsert          Batch
}

// ApplyPatch deletes the named files' nodes/edges and applies the upsert
// batch, all within a single transaction.
func (g *GraphStore) ApplyPatch(ctx context.Context, patch Patch) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeStoreBusy, "failed to begin patch transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, fileKey := range patch.DeleteFileKeys {
		if err := deleteFileCascade(ctx, tx, fileKey); err != nil {
			return err
		}
	}

	if err := upsertDirectories(ctx, tx, patch.Upsert.Directories); err != nil {
		return err
	}
	if err := upsertFiles(ctx, tx, patch.Upsert.Files); err != nil {
		return err
	}
	if err := upsertDefinitions(ctx, tx, patch.Upsert.Definitions); err != nil {
		return err
	}
	if err := upsertImportedSymbols(ctx, tx, patch.Upsert.ImportedSymbols); err != nil {
		return err
	}
	if err := insertRelationships(ctx, tx, patch.Upsert.Relationships); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeStoreBusy, "failed to commit patch", err)
	}
	return nil
}

// deleteFileCascade removes a File's row along with every Definition and
// ImportedSymbol it owns (matched by file_path, since those keys are not
// prefixed by the File's own key) and any Relationship touching the file
// itself or one of its owned nodes.
func deleteFileCascade(ctx context.Context, tx *sql.Tx, fileKey string) error {
	var relPath string
	err := tx.QueryRowContext(ctx, `SELECT rel_path FROM files WHERE key = ?`, fileKey).Scan(&relPath)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to look up file for cascade delete", err)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM relationships WHERE from_key = ? OR to_key = ?
			OR from_key IN (SELECT key FROM definitions WHERE file_path = ?)
			OR to_key IN (SELECT key FROM definitions WHERE file_path = ?)
			OR from_key IN (SELECT key FROM imported_symbols WHERE file_path = ?)
			OR to_key IN (SELECT key FROM imported_symbols WHERE file_path = ?)`,
			[]any{fileKey, fileKey, relPath, relPath, relPath, relPath}},
		{`DELETE FROM imported_symbols WHERE file_path = ?`, []any{relPath}},
		{`DELETE FROM definitions WHERE file_path = ?`, []any{relPath}},
		{`DELETE FROM files WHERE key = ?`, []any{fileKey}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed cascade delete step for file "+relPath, err)
		}
	}
	return nil
}

func insertDirectories(ctx context.Context, tx *sql.Tx, dirs []model.Directory) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO directories(key, rel_path, abs_path, repo_name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare directory insert", err)
	}
	defer stmt.Close()
	for _, d := range dirs {
		if _, err := stmt.ExecContext(ctx, d.Key(), d.RelPath, d.AbsPath, d.RepoName); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to insert directory %s", d.RelPath), err)
		}
	}
	return nil
}

func upsertDirectories(ctx context.Context, tx *sql.Tx, dirs []model.Directory) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO directories(key, rel_path, abs_path, repo_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET rel_path=excluded.rel_path, abs_path=excluded.abs_path, repo_name=excluded.repo_name`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare directory upsert", err)
	}
	defer stmt.Close()
	for _, d := range dirs {
		if _, err := stmt.ExecContext(ctx, d.Key(), d.RelPath, d.AbsPath, d.RepoName); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to upsert directory %s", d.RelPath), err)
		}
	}
	return nil
}

func insertFiles(ctx context.Context, tx *sql.Tx, files []model.File) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO files(key, rel_path, abs_path, language, extension, content_hash, size) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare file insert", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, f.Key(), f.RelPath, f.AbsPath, f.Language, f.Extension, f.ContentHash, f.Size); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to insert file %s", f.RelPath), err)
		}
	}
	return nil
}

func upsertFiles(ctx context.Context, tx *sql.Tx, files []model.File) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO files(key, rel_path, abs_path, language, extension, content_hash, size) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET rel_path=excluded.rel_path, abs_path=excluded.abs_path, language=excluded.language,
			extension=excluded.extension, content_hash=excluded.content_hash, size=excluded.size`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare file upsert", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, f.Key(), f.RelPath, f.AbsPath, f.Language, f.Extension, f.ContentHash, f.Size); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to upsert file %s", f.RelPath), err)
		}
	}
	return nil
}

func insertDefinitions(ctx context.Context, tx *sql.Tx, defs []model.Definition) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO definitions(key, fqn, kind, file_path, start_line, end_line, start_byte, end_byte, secondary_locs, ambiguous, enclosing_scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare definition insert", err)
	}
	defer stmt.Close()
	for _, d := range defs {
		secondary, err := json.Marshal(d.SecondaryLocations)
		if err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to marshal secondary locations", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Key(), d.FQN, string(d.Kind), d.PrimaryLocation.FilePath,
			d.PrimaryLocation.Lines.StartLine, d.PrimaryLocation.Lines.EndLine,
			d.PrimaryLocation.Bytes.StartByte, d.PrimaryLocation.Bytes.EndByte,
			string(secondary), boolToInt(d.Ambiguous), d.EnclosingScope); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to insert definition %s", d.FQN), err)
		}
	}
	return nil
}

func upsertDefinitions(ctx context.Context, tx *sql.Tx, defs []model.Definition) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO definitions(key, fqn, kind, file_path, start_line, end_line, start_byte, end_byte, secondary_locs, ambiguous, enclosing_scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET fqn=excluded.fqn, kind=excluded.kind, file_path=excluded.file_path,
			start_line=excluded.start_line, end_line=excluded.end_line, start_byte=excluded.start_byte, end_byte=excluded.end_byte,
			secondary_locs=excluded.secondary_locs, ambiguous=excluded.ambiguous, enclosing_scope=excluded.enclosing_scope`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare definition upsert", err)
	}
	defer stmt.Close()
	for _, d := range defs {
		secondary, err := json.Marshal(d.SecondaryLocations)
		if err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to marshal secondary locations", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Key(), d.FQN, string(d.Kind), d.PrimaryLocation.FilePath,
			d.PrimaryLocation.Lines.StartLine, d.PrimaryLocation.Lines.EndLine,
			d.PrimaryLocation.Bytes.StartByte, d.PrimaryLocation.Bytes.EndByte,
			string(secondary), boolToInt(d.Ambiguous), d.EnclosingScope); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to upsert definition %s", d.FQN), err)
		}
	}
	return nil
}

func insertImportedSymbols(ctx context.Context, tx *sql.Tx, syms []model.ImportedSymbol) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO imported_symbols(key, file_path, form, name, wildcard, start_line, end_line, target_path, alias)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare import insert", err)
	}
	defer stmt.Close()
	for _, s := range syms {
		if _, err := stmt.ExecContext(ctx, s.Key(), s.FilePath, s.Form, s.Name, boolToInt(s.Wildcard),
			s.Lines.StartLine, s.Lines.EndLine, s.TargetPath, s.Alias); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to insert import %s", s.Name), err)
		}
	}
	return nil
}

func upsertImportedSymbols(ctx context.Context, tx *sql.Tx, syms []model.ImportedSymbol) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO imported_symbols(key, file_path, form, name, wildcard, start_line, end_line, target_path, alias)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET file_path=excluded.file_path, form=excluded.form, name=excluded.name,
			wildcard=excluded.wildcard, start_line=excluded.start_line, end_line=excluded.end_line,
			target_path=excluded.target_path, alias=excluded.alias`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare import upsert", err)
	}
	defer stmt.Close()
	for _, s := range syms {
		if _, err := stmt.ExecContext(ctx, s.Key(), s.FilePath, s.Form, s.Name, boolToInt(s.Wildcard),
			s.Lines.StartLine, s.Lines.EndLine, s.TargetPath, s.Alias); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to upsert import %s", s.Name), err)
		}
	}
	return nil
}

func insertRelationships(ctx context.Context, tx *sql.Tx, rels []model.Relationship) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO relationships(kind, from_key, to_key, call_start, call_end, ambiguous)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, from_key, to_key) DO UPDATE SET call_start=excluded.call_start, call_end=excluded.call_end, ambiguous=excluded.ambiguous`)
	if err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to prepare relationship insert", err)
	}
	defer stmt.Close()
	for _, r := range rels {
		var callStart, callEnd sql.NullInt64
		if r.CallSite != nil {
			callStart = sql.NullInt64{Int64: int64(r.CallSite.StartLine), Valid: true}
			callEnd = sql.NullInt64{Int64: int64(r.CallSite.EndLine), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(r.Kind), r.FromKey, r.ToKey, callStart, callEnd, boolToInt(r.Ambiguous)); err != nil {
			return gkgerrors.New(gkgerrors.ErrCodeIntegrity, fmt.Sprintf("failed to insert relationship %s->%s", r.FromKey, r.ToKey), err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
