package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
)

// =========================================================================
// ADD REFERENCE TESTS
// =========================================================================

func TestAddReference_NewMovie(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	movie := addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)

	assert.NotEmpty(t, movie.ID)
	assert.Equal(t, 1, countRows(t, db, "movies"))
	assert.Equal(t, 1, countRows(t, db, "movie_users"))
}

// Many users adding the same title share one movie row.
func TestAddReference_SharedTitleIsNotDuplicated(t *testing.T) {
	db := newTestDB(t)

	var ids []string
	for i := 0; i < 4; i++ {
		user := createTestUser(t, db, fmt.Sprintf("user%d", i))
		movie := addTestMovie(t, db, user.ID, "Inception", 2010+i, 8.8)
		ids = append(ids, movie.ID)
	}

	assert.Equal(t, 1, countRows(t, db, "movies"))
	assert.Equal(t, 4, countRows(t, db, "movie_users"))
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id, "every user must point at the same movie")
	}
}

// Two processes adding the same new title: the second one waits for the
// first to commit and then links to the row it inserted.
func TestAddReference_RacingHandlesShareOneRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moviebrain.db")
	first, err := New(dbPath)
	require.NoError(t, err)
	defer first.Close()
	second, err := New(dbPath)
	require.NoError(t, err)
	defer second.Close()

	ctx := context.Background()
	alice := createTestUser(t, first, "alice")
	bob := createTestUser(t, second, "bob")

	done := make(chan error, 1)
	err = second.withTx(ctx, func(tx *sql.Tx) error {
		movies := &MovieDB{q: tx}
		_, err := movies.GetByTitle(ctx, "Inception")
		require.ErrorIs(t, err, apperror.ErrNotFound)

		go func() {
			done <- first.Associations().AddReference(ctx, alice.ID,
				&model.Movie{Title: "Inception", Year: 2010, Rating: 8.8})
		}()

		select {
		case err := <-done:
			t.Fatalf("AddReference finished while another writer held the lock: %v", err)
		case <-time.After(200 * time.Millisecond):
		}

		movie := &model.Movie{Title: "Inception", Year: 2010, Rating: 9.1}
		if err := movies.Insert(ctx, movie); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO movie_users (user_id, movie_id) VALUES (?, ?)`, bob.ID, movie.ID)
		return err
	})
	require.NoError(t, err, "the transaction holding the lock must commit")
	require.NoError(t, <-done, "the waiting add must link to the committed row")

	assert.Equal(t, 1, countRows(t, first, "movies"))
	assert.Equal(t, 2, countRows(t, first, "movie_users"))

	view, err := first.Movies().ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.1, view["Inception"].Rating, "alice shares the record bob inserted")
	assertNoOrphans(t, first)
}

func TestAddReference_ConcurrentHandlesNeverFail(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moviebrain.db")
	handles := make([]*DB, 2)
	for i := range handles {
		db, err := New(dbPath)
		require.NoError(t, err)
		defer db.Close()
		handles[i] = db
	}

	const perHandle = 5
	users := make([][]string, len(handles))
	for i, db := range handles {
		for j := 0; j < perHandle; j++ {
			users[i] = append(users[i], createTestUser(t, db, fmt.Sprintf("user%d-%d", i, j)).ID)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(handles)*perHandle)
	for i, db := range handles {
		for _, userID := range users[i] {
			wg.Add(1)
			go func(db *DB, userID string) {
				defer wg.Done()
				errs <- db.Associations().AddReference(context.Background(), userID,
					&model.Movie{Title: "Heat", Year: 1995, Rating: 8.3})
			}(db, userID)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countRows(t, handles[0], "movies"))
	assert.Equal(t, len(handles)*perHandle, countRows(t, handles[0], "movie_users"))
}

func TestAddReference_ExistingTitleKeepsCanonicalRecord(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, alice.ID, "Heat", 1995, 8.3)

	movie := &model.Movie{Title: "Heat", Year: 1986, Rating: 5.1, Poster: "other"}
	require.NoError(t, db.Associations().AddReference(context.Background(), bob.ID, movie))

	assert.Equal(t, 1995, movie.Year)
	assert.Equal(t, 8.3, movie.Rating)
	assert.Equal(t, "poster-Heat", movie.Poster)
}

func TestAddReference_SameUserTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Alien", 1979, 8.5)

	err := db.Associations().AddReference(context.Background(), alice.ID,
		&model.Movie{Title: "Alien", Year: 1979, Rating: 8.5})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("AddReference() error = %v, want ErrConflict", err)
	}
	assert.Equal(t, 1, countRows(t, db, "movie_users"))
}

// A failed link must not leave the freshly inserted movie behind.
func TestAddReference_UnknownUserRollsBack(t *testing.T) {
	db := newTestDB(t)

	err := db.Associations().AddReference(context.Background(), "no-such-user",
		&model.Movie{Title: "Ghost", Year: 1990, Rating: 7})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("AddReference() error = %v, want ErrNotFound", err)
	}
	assert.Zero(t, countRows(t, db, "movies"))
}

// =========================================================================
// REMOVE REFERENCE TESTS
// =========================================================================

func TestRemoveReference_LastReferenceDeletesMovie(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)

	deleted, err := db.Associations().RemoveReference(context.Background(), alice.ID, "Inception")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, countRows(t, db, "movies"))
	assert.Zero(t, countRows(t, db, "movie_users"))
}

func TestRemoveReference_SharedMovieSurvives(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)
	addTestMovie(t, db, bob.ID, "Inception", 2010, 8.8)

	deleted, err := db.Associations().RemoveReference(ctx, alice.ID, "Inception")
	require.NoError(t, err)
	assert.False(t, deleted)

	view, err := db.Movies().ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Contains(t, view, "Inception")
}

func TestRemoveReference_NotFound(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, bob.ID, "Heat", 1995, 8.3)

	tests := []struct {
		name  string
		title string
	}{
		{"unknown title", "Nope"},
		{"title held by someone else", "Heat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Associations().RemoveReference(context.Background(), alice.ID, tt.title)
			if !errors.Is(err, apperror.ErrNotFound) {
				t.Errorf("RemoveReference() error = %v, want ErrNotFound", err)
			}
		})
	}
	assert.Equal(t, 1, countRows(t, db, "movies"))
}

// =========================================================================
// NOTE TESTS
// =========================================================================

func TestNotes_ArePerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)
	addTestMovie(t, db, bob.ID, "Inception", 2010, 8.8)

	require.NoError(t, db.Associations().SetNote(ctx, alice.ID, "Inception", "dream within a dream"))
	require.NoError(t, db.Associations().SetNote(ctx, bob.ID, "Inception", "too loud"))

	note, err := db.Associations().GetNote(ctx, alice.ID, "Inception")
	require.NoError(t, err)
	assert.Equal(t, "dream within a dream", note)

	note, err = db.Associations().GetNote(ctx, bob.ID, "Inception")
	require.NoError(t, err)
	assert.Equal(t, "too loud", note)
}

func TestGetNote_UnsetIsEmpty(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Heat", 1995, 8.3)

	note, err := db.Associations().GetNote(context.Background(), alice.ID, "Heat")
	require.NoError(t, err)
	assert.Equal(t, "", note)
}

func TestSetNote_EmptyClears(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Heat", 1995, 8.3)

	require.NoError(t, db.Associations().SetNote(ctx, alice.ID, "Heat", "great"))
	require.NoError(t, db.Associations().SetNote(ctx, alice.ID, "Heat", ""))

	var isNull bool
	require.NoError(t, db.conn.QueryRow(`SELECT note IS NULL FROM movie_users`).Scan(&isNull))
	assert.True(t, isNull)
}

func TestNotes_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	err := db.Associations().SetNote(ctx, alice.ID, "Nope", "x")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "SetNote() error = %v", err)

	_, err = db.Associations().GetNote(ctx, alice.ID, "Nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "GetNote() error = %v", err)
}

func TestHasReference(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, alice.ID, "Heat", 1995, 8.3)

	has, err := db.Associations().HasReference(ctx, alice.ID, "Heat")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = db.Associations().HasReference(ctx, bob.ID, "Heat")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUpdateRating_RequiresReference(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, alice.ID, "Heat", 1995, 8.3)

	// bob does not hold Heat, so the shared rating stays put.
	err := db.Associations().UpdateRating(ctx, bob.ID, "Heat", 1.0)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := db.Movies().GetByTitle(ctx, "Heat")
	require.NoError(t, err)
	assert.Equal(t, 8.3, got.Rating)

	require.NoError(t, db.Associations().UpdateRating(ctx, alice.ID, "Heat", 9.0))
	got, err = db.Movies().GetByTitle(ctx, "Heat")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Rating)

	err = db.Associations().UpdateRating(ctx, alice.ID, "Missing", 5)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// PROPERTIES
// =========================================================================

// The alice/bob walkthrough: one shared movie row, two links, and the row
// disappears only with the last user holding it.
func TestScenario_SharedMovieLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	addTestMovie(t, db, alice.ID, "Inception", 2010, 8.8)
	bob := createTestUser(t, db, "bob")
	addTestMovie(t, db, bob.ID, "Inception", 2010, 8.8)

	assert.Equal(t, 1, countRows(t, db, "movies"))
	assert.Equal(t, 2, countRows(t, db, "movie_users"))

	_, err := db.Users().Delete(ctx, "alice")
	require.NoError(t, err)
	_, found, err := db.Movies().FindIDByTitle(ctx, "Inception")
	require.NoError(t, err)
	assert.True(t, found, "bob still references the movie")

	_, err = db.Users().Delete(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, countRows(t, db, "movies"))
	assert.Zero(t, countRows(t, db, "movie_users"))
}

// After every add or remove in a random sequence, no movie is left without
// an association.
func TestProperty_NoOrphansAfterRandomOperations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	users := []*model.User{
		createTestUser(t, db, "alice"),
		createTestUser(t, db, "bob"),
		createTestUser(t, db, "carol"),
	}
	titles := []string{"Alien", "Heat", "Inception", "Ran", "Up"}

	for i := 0; i < 200; i++ {
		user := users[rng.Intn(len(users))]
		title := titles[rng.Intn(len(titles))]

		if rng.Intn(2) == 0 {
			err := db.Associations().AddReference(ctx, user.ID,
				&model.Movie{Title: title, Year: 2000, Rating: 5})
			if err != nil && !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("step %d: AddReference() error = %v", i, err)
			}
		} else {
			_, err := db.Associations().RemoveReference(ctx, user.ID, title)
			if err != nil && !errors.Is(err, apperror.ErrNotFound) {
				t.Fatalf("step %d: RemoveReference() error = %v", i, err)
			}
		}

		assertNoOrphans(t, db)
		var dupes int
		require.NoError(t, db.conn.QueryRow(
			`SELECT COUNT(*) - COUNT(DISTINCT title) FROM movies`).Scan(&dupes))
		require.Zero(t, dupes, "step %d: duplicate titles", i)
	}
}
