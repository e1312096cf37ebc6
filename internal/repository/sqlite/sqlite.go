// Package sqlite implements repository.Store on top of a single SQLite file.
//
// WHY A DOCUMENT TABLE AND NOT ROWS?
// The blog's storage contract is "load the whole collection, save the whole
// collection". Rather than map that onto per-row INSERT/DELETE statements,
// each collection is kept as one row in a documents table whose body is the
// exact JSON array the file backend would write. Switching backends is then
// a matter of copying two blobs, and both backends behave identically.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite: no CGo, no C
// compiler, cross-compiles like any other Go package.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/flatblog.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; a pool of more than one
	// would hand different queries different, empty databases.
	conn.SetMaxOpenConns(1)

	// sql.Open is lazy. Ping forces a real connection so a bad path or
	// permission problem surfaces here instead of on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS makes it safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}
