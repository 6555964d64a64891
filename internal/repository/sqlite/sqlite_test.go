package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh, isolated database that disappears when
// the connection closes. The pool is capped at one connection, so the whole
// test talks to the same in-memory database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name string) *model.User {
	t.Helper()
	user := &model.User{Name: name}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %q: %v", name, err)
	}
	return user
}

// addTestMovie links a movie to a user and fails the test if it errors.
func addTestMovie(t *testing.T, db *DB, userID, title string, year int, rating float64) *model.Movie {
	t.Helper()
	movie := &model.Movie{Title: title, Year: year, Rating: rating, Poster: "poster-" + title}
	if err := db.Associations().AddReference(context.Background(), userID, movie); err != nil {
		t.Fatalf("failed to add %q for %s: %v", title, userID, err)
	}
	return movie
}

// countRows is a raw COUNT(*) used to look past the repositories at the tables.
func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	// table only ever comes from test literals
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// assertNoOrphans checks that every movie row has at least one association.
func assertNoOrphans(t *testing.T, db *DB) {
	t.Helper()
	var orphans int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM movies m
		WHERE NOT EXISTS (SELECT 1 FROM movie_users mu WHERE mu.movie_id = m.id)
	`).Scan(&orphans)
	require.NoError(t, err)
	assert.Zero(t, orphans, "orphan movies left in storage")
}

// =========================================================================
// SCHEMA TESTS
// =========================================================================

func TestNew_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moviebrain.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var fkEnabled int
	require.NoError(t, db.conn.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled, "foreign keys must be enforced")
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)

	// Second and third runs must not fail and must not touch the data.
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	assert.Equal(t, 1, countRows(t, db, "movies"))
	assert.Equal(t, 1, countRows(t, db, "users"))
	assert.Equal(t, 1, countRows(t, db, "movie_users"))
}

func TestEnsureSchema_ReopenExistingFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moviebrain.db")

	first, err := New(dbPath)
	require.NoError(t, err)
	alice := createTestUser(t, first, "alice")
	addTestMovie(t, first, alice.ID, "Inception", 2010, 8.8)
	require.NoError(t, first.Close())

	second, err := New(dbPath)
	require.NoError(t, err)
	defer second.Close()

	view, err := second.Movies().ListForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Contains(t, view, "Inception")
}

// The single-user tool that predates MovieBrain kept its catalog at the same
// default path, in a movies table with an integer id and no users.
func TestNew_RejectsSingleUserCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moviebrain.db")

	raw, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT UNIQUE NOT NULL,
		year INTEGER NOT NULL,
		rating REAL NOT NULL,
		poster TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO movies (title, year, rating, poster) VALUES ('Titanic', 1997, 7.9, '')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := New(dbPath)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.True(t, errors.Is(err, ErrForeignSchema), "got %v", err)
	assert.False(t, errors.Is(err, apperror.ErrUnavailable), "a foreign file is not an outage: %v", err)

	// The file is left exactly as it was.
	raw, err = sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer raw.Close()

	var tables int
	require.NoError(t, raw.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'movie_users')`,
	).Scan(&tables))
	assert.Zero(t, tables, "no MovieBrain tables may be created in a foreign file")

	var journal string
	require.NoError(t, raw.QueryRow(`PRAGMA journal_mode`).Scan(&journal))
	assert.NotEqual(t, "wal", journal)

	var titles int
	require.NoError(t, raw.QueryRow(`SELECT COUNT(*) FROM movies`).Scan(&titles))
	assert.Equal(t, 1, titles)
}

func TestEnsureSchema_RejectsTableMissingColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.conn.Exec(`CREATE TABLE users_old AS SELECT id, name FROM users`)
	require.NoError(t, err)
	_, err = db.conn.Exec(`DROP TABLE movie_users`)
	require.NoError(t, err)
	_, err = db.conn.Exec(`DROP TABLE users`)
	require.NoError(t, err)
	_, err = db.conn.Exec(`ALTER TABLE users_old RENAME TO users`)
	require.NoError(t, err)

	err = db.EnsureSchema(ctx)
	require.ErrorIs(t, err, ErrForeignSchema)
	assert.Contains(t, err.Error(), "users has no column created_at")
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
		want   string
	}{
		{"plain path", "data/moviebrain.db", "data/moviebrain.db?_txlock=immediate&_pragma=busy_timeout(5000)"},
		{"memory", ":memory:", ":memory:?_txlock=immediate&_pragma=busy_timeout(5000)"},
		{"existing query", "file:x.db?mode=rwc", "file:x.db?mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dsn(tt.dbPath))
		})
	}
}

func TestForeignKeys_RejectDanglingAssociation(t *testing.T) {
	db := newTestDB(t)

	_, err := db.conn.Exec(
		`INSERT INTO movie_users (user_id, movie_id) VALUES ('nobody', 'nothing')`,
	)
	require.Error(t, err)
	assert.True(t, isConstraintError(err), "want constraint error, got %v", err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := (&MovieDB{q: tx}).Insert(ctx, &model.Movie{Title: "Ghost", Year: 1990, Rating: 7}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Zero(t, countRows(t, db, "movies"), "insert inside failed tx must not persist")
}

func TestClosedDatabase_IsUnavailable(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Users().List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable), "got %v", err)

	err = db.Associations().AddReference(context.Background(), "x", &model.Movie{Title: "Heat"})
	assert.True(t, errors.Is(err, apperror.ErrUnavailable), "got %v", err)
}
