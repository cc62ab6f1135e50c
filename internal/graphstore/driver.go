package graphstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registers as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registers as "sqlite"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
)

// Driver selects the SQL driver backing a project's graph store, mirroring
// the teacher's BM25Backend selector: a pure-Go default with an optional
// cgo-accelerated alternative for callers who can pay the build cost.
type Driver string

const (
	// DriverSQLite uses modernc.org/sqlite, pure Go, no CGO (default).
	DriverSQLite Driver = "sqlite"
	// DriverSQLite3 uses mattn/go-sqlite3, cgo-accelerated.
	DriverSQLite3 Driver = "sqlite3"
)

// dbFileName is the on-disk graph store file within a project's data
// directory.
const dbFileName = "graph.db"

// openParams returns the DSN query-string pragmas applied uniformly across
// drivers: WAL journaling for concurrent readers alongside the single
// writer, a busy timeout so short-lived readers don't fail outright during
// a bulk load, and NORMAL durability (the store can always be rebuilt from
// source, so fsync-per-commit isn't worth the latency).
const openParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1"

// openDB opens (creating if absent) the graph store database file for a
// project under dataDir, using the given driver.
func openDB(dataDir string, driver Driver) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeDiskFull, "failed to create project data directory", err)
	}
	dsn, driverName, err := dsnFor(dataDir, driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to open graph store", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, gkgerrors.New(gkgerrors.ErrCodeIntegrity, "failed to enable WAL mode", err)
	}
	return db, nil
}

// OpenWriter opens the single writer connection for a project's graph
// store. Only one writer may be held per project at a time (spec: single
// writer per project); callers are responsible for coordinating that (the
// executor holds its per-project lock around every write).
func OpenWriter(dataDir string, driver Driver) (*sql.DB, error) {
	db, err := openDB(dataDir, driver)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// OpenReader opens a short-lived, read-only connection suitable for query
// surface operations (spec C9): multiple readers may coexist with the
// single writer under WAL.
func OpenReader(dataDir string, driver Driver) (*sql.DB, error) {
	dsn, driverName, err := dsnFor(dataDir, driver)
	if err != nil {
		return nil, err
	}
	dsn += "&mode=ro"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, gkgerrors.New(gkgerrors.ErrCodeFilePermission, "failed to open graph store for reading", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}

func dsnFor(dataDir string, driver Driver) (dsn, driverName string, err error) {
	path := filepath.Join(dataDir, dbFileName)
	switch driver {
	case DriverSQLite, "":
		return path + openParams, "sqlite", nil
	case DriverSQLite3:
		return path + openParams, "sqlite3", nil
	default:
		return "", "", gkgerrors.New(gkgerrors.ErrCodeConfigInvalid, fmt.Sprintf("unknown store driver %q (valid: sqlite, sqlite3)", driver), nil)
	}
}
