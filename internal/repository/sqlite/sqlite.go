// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// The driver is modernc.org/sqlite, a pure Go build of SQLite; the catalog is
// a single file next to the binary.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB     : a connection pool (NOT a single connection!)
//   - sql.Tx     : a transaction pinned to one connection
//   - sql.Row    : a single result row
//   - sql.Rows   : multiple result rows (must be closed!)
//
// ONE CONNECTION:
// PRAGMA foreign_keys is per-connection, and every ":memory:" connection is a
// brand new empty database. The pool is therefore capped at one connection.
// A consequence: while a transaction is open, every statement must go through
// the *sql.Tx, never through the pool, or it waits forever for the connection.
//
// WRITE TRANSACTIONS:
// Transactions begin IMMEDIATE, taking the write lock up front. A
// check-then-insert on a title therefore cannot read a snapshot that another
// process invalidates before the insert; a second process waits up to
// busyTimeout for the lock instead of failing.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Importing the driver also registers it with database/sql as "sqlite".
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/moviebrain/internal/apperror"
)

// querier is what *sql.DB and *sql.Tx have in common. The movie and
// association statements are written against it, so the same code runs
// standalone or as one step of a larger transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const busyTimeout = 5 * time.Second

// ErrForeignSchema is returned by New when the file already holds tables
// that MovieBrain did not create, such as a catalog from the earlier
// single-user tool. Nothing in the file is changed.
var ErrForeignSchema = errors.New("sqlite: database has an unrecognised schema")

// DB wraps a sql.DB connection pool and hands out the repositories.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and provisions the schema.
//
// dbPath examples:
//   - "data/moviebrain.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, apperror.Unavailable("sqlite: opening database", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperror.Unavailable("sqlite: pinging database", err)
	}

	db := &DB{conn: conn}

	// Refuse a foreign file before the WAL pragma rewrites its header.
	if err := db.checkExistingTables(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, apperror.Unavailable("sqlite: setting WAL mode", err)
	}

	// Foreign keys are OFF by default in SQLite. movie_users depends on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, apperror.Unavailable("sqlite: enabling foreign keys", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ensuring schema: %w", err)
	}

	return db, nil
}

// dsn adds the driver options every connection needs to dbPath.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_txlock=immediate&_pragma=busy_timeout(%d)",
		dbPath, sep, busyTimeout.Milliseconds())
}

// Close closes the database connection pool.
//
//	db, err := sqlite.New("data/moviebrain.db")
//	if err != nil { ... }
//	defer db.Close()
func (db *DB) Close() error {
	return db.conn.Close()
}

// Movies returns the movie repository bound to the pool.
func (db *DB) Movies() *MovieDB {
	return &MovieDB{q: db.conn}
}

// Users returns the user repository.
func (db *DB) Users() *UserDB {
	return &UserDB{db: db}
}

// Associations returns the user ↔ movie link repository.
func (db *DB) Associations() *AssociationDB {
	return &AssociationDB{db: db}
}

// schemaColumns lists, per table, the columns MovieBrain reads and writes.
var schemaColumns = map[string][]string{
	"movies":      {"id", "title", "year", "rating", "poster", "created_at"},
	"users":       {"id", "name", "created_at"},
	"movie_users": {"user_id", "movie_id", "note"},
}

// EnsureSchema creates the three tables if they are missing.
//
// CREATE ... IF NOT EXISTS makes every statement a no-op on an already
// provisioned database, so this runs on every start. A table that exists
// with a different layout is ErrForeignSchema and nothing is created.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if err := db.checkExistingTables(ctx); err != nil {
		return err
	}

	queries := []string{
		// Canonical movies. title is the natural key shared by every user.
		`CREATE TABLE IF NOT EXISTS movies (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL UNIQUE,
			year       INTEGER NOT NULL,
			rating     REAL NOT NULL,
			poster     TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per (user, movie). The composite primary key is what makes
		// "add the same movie twice" a conflict instead of a second note slot.
		`CREATE TABLE IF NOT EXISTS movie_users (
			user_id  TEXT NOT NULL REFERENCES users(id),
			movie_id TEXT NOT NULL REFERENCES movies(id),
			note     TEXT,
			PRIMARY KEY (user_id, movie_id)
		)`,

		// Reference counting in DeleteIfUnreferenced looks rows up by movie_id.
		`CREATE INDEX IF NOT EXISTS idx_movie_users_movie_id ON movie_users(movie_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return apperror.Unavailable("sqlite: creating schema", err)
		}
	}

	return nil
}

// checkExistingTables fails with ErrForeignSchema when one of the tables
// already exists but lacks a column listed in schemaColumns. Missing tables
// are fine; EnsureSchema creates them.
func (db *DB) checkExistingTables(ctx context.Context) error {
	for table, want := range schemaColumns {
		have, err := db.tableColumns(ctx, table)
		if err != nil {
			return apperror.Unavailable("sqlite: reading schema of "+table, err)
		}
		if len(have) == 0 {
			continue
		}
		for _, column := range want {
			if !have[column] {
				return fmt.Errorf("%w: table %s has no column %s", ErrForeignSchema, table, column)
			}
		}
	}
	return nil
}

// tableColumns returns the column names of table, or an empty set when the
// table does not exist.
func (db *DB) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// withTx runs fn inside one transaction and commits if fn returns nil.
//
// The deferred Rollback is a no-op after a successful Commit and releases the
// connection on every other exit path, including a panic inside fn.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Unavailable("sqlite: begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Unavailable("sqlite: commit transaction", err)
	}
	return nil
}

// isConstraintError reports whether err is a SQLite constraint failure
// (UNIQUE, PRIMARY KEY, FOREIGN KEY, NOT NULL).
func isConstraintError(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		// Extended codes keep the primary code in the low byte.
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// storageErr turns a driver error from a single statement into a typed one.
func storageErr(op string, err error) error {
	return apperror.Unavailable("sqlite: "+op, err)
}
