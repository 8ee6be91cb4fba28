package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode selects the filesystem or the embedded copy of migrations.
// Set true in development for hot-reloading; false (default) in
// production builds, which read the binary-embedded migrations.
var DevMode = false

func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/store/migrations"), nil
	}
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("creating sub-filesystem for embedded migrations: %w", err)
	}
	return subFS, nil
}

// DB wraps a *sql.DB opened against the live-state-store schema.
type DB struct {
	*sql.DB
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}
	return nil
}

// Open opens (or creates) the store database at path and ensures the
// schema exists, applying migrations if the database is fresh.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite: single writer avoids SQLITE_BUSY storms

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db := &DB{DB: sqlDB}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.MigrateUp(migrationsFS); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", ErrUnavailable, err)
	}

	return db, nil
}

var memDBCounter int64

// OpenInMemory opens a throwaway in-memory store database, primarily for
// tests and the simulator. Each call gets its own named in-memory
// database so parallel tests never see each other's rows.
func OpenInMemory() (*DB, error) {
	id := atomic.AddInt64(&memDBCounter, 1)
	return Open(fmt.Sprintf("file:gpscore-memdb-%d?mode=memory&cache=shared", id))
}

var _ = schemaSQL // schema.sql is the canonical reference copy; migrations are authoritative at runtime
