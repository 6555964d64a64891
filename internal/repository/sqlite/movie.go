package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/repository"
)

// compile-time check that *MovieDB implements repository.MovieRepository
var _ repository.MovieRepository = (*MovieDB)(nil)

// MovieDB runs movie statements against either the pool or an open
// transaction, depending on what q is.
type MovieDB struct {
	q querier
}

// FindIDByTitle is an exact-match lookup. A missing title is not an error.
func (m *MovieDB) FindIDByTitle(ctx context.Context, title string) (string, bool, error) {
	var id string
	err := m.q.QueryRowContext(ctx,
		`SELECT id FROM movies WHERE title = ?`, title,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("looking up movie "+title, err)
	}
	return id, true, nil
}

// GetByTitle returns the full canonical record for title.
func (m *MovieDB) GetByTitle(ctx context.Context, title string) (*model.Movie, error) {
	var movie model.Movie
	err := m.q.QueryRowContext(ctx,
		`SELECT id, title, year, rating, poster, created_at
		 FROM movies WHERE title = ?`,
		title,
	).Scan(
		&movie.ID,
		&movie.Title,
		&movie.Year,
		&movie.Rating,
		&movie.Poster,
		&movie.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("movie", title)
		}
		return nil, storageErr("getting movie "+title, err)
	}
	return &movie, nil
}

// Insert stores a new movie and fills in its ID and CreatedAt.
//
// The UNIQUE constraint on title makes this atomic with respect to
// duplicates: a second insert of the same title, whether from an earlier call
// or a racing process, fails with apperror.ErrConflict.
func (m *MovieDB) Insert(ctx context.Context, movie *model.Movie) error {
	if strings.TrimSpace(movie.Title) == "" {
		return apperror.ValidationFailed("title", "movie title is required")
	}

	id := xid.New().String()
	now := time.Now().UTC()

	_, err := m.q.ExecContext(ctx,
		`INSERT INTO movies (id, title, year, rating, poster, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		movie.Title,
		movie.Year,
		movie.Rating,
		movie.Poster,
		now,
	)
	if err != nil {
		if isConstraintError(err) {
			return apperror.Conflict("movie", movie.Title, err)
		}
		return storageErr("inserting movie "+movie.Title, err)
	}

	movie.ID = id
	movie.CreatedAt = now
	return nil
}

// UpdateRating changes the only mutable field of a movie.
// Returns apperror.ErrNotFound if no movie has that title.
func (m *MovieDB) UpdateRating(ctx context.Context, title string, rating float64) error {
	result, err := m.q.ExecContext(ctx,
		`UPDATE movies SET rating = ? WHERE title = ?`,
		rating, title,
	)
	if err != nil {
		return storageErr("updating rating of "+title, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("movie", title)
	}
	return nil
}

// DeleteIfUnreferenced removes the movie only when no movie_users row points
// at it.
//
// The reference check and the delete are one statement, so there is no window
// between "count is zero" and "row is gone" for another writer to add a link.
func (m *MovieDB) DeleteIfUnreferenced(ctx context.Context, title string) (bool, error) {
	result, err := m.q.ExecContext(ctx,
		`DELETE FROM movies
		 WHERE title = ?
		   AND NOT EXISTS (SELECT 1 FROM movie_users WHERE movie_users.movie_id = movies.id)`,
		title,
	)
	if err != nil {
		return false, storageErr("deleting movie "+title, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("checking rows affected", err)
	}
	return rowsAffected > 0, nil
}

// ListForUser returns the user's view: every movie they hold a reference to.
// An unknown user simply has an empty view.
func (m *MovieDB) ListForUser(ctx context.Context, userID string) (model.View, error) {
	rows, err := m.q.QueryContext(ctx,
		`SELECT m.title, m.year, m.rating, m.poster
		 FROM movies m
		 JOIN movie_users mu ON mu.movie_id = m.id
		 WHERE mu.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, storageErr("listing movies", err)
	}
	defer rows.Close()

	view := make(model.View)
	for rows.Next() {
		var (
			title string
			info  model.MovieInfo
		)
		if err := rows.Scan(&title, &info.Year, &info.Rating, &info.Poster); err != nil {
			return nil, storageErr("scanning movie row", err)
		}
		view[title] = info
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating movies", err)
	}
	return view, nil
}
