package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/repository"
)

// compile-time check that *AssociationDB implements repository.AssociationRepository
var _ repository.AssociationRepository = (*AssociationDB)(nil)

// AssociationDB owns the movie_users table and, through it, the rule that a
// movie exists exactly as long as somebody references it.
type AssociationDB struct {
	db *DB
}

// AddReference links userID to movie.Title.
//
// Inside one transaction:
//  1. the user must exist (apperror.ErrNotFound otherwise)
//  2. the movie is looked up by title and inserted only when absent
//  3. the (user, movie) row is inserted
//
// When the title already exists the stored record wins: movie is overwritten
// with it and the caller's year/rating/poster are discarded. Linking the same
// movie twice, or losing an insert race on the title, is apperror.ErrConflict;
// either way the transaction rolls back and no new movie row survives.
func (a *AssociationDB) AddReference(ctx context.Context, userID string, movie *model.Movie) error {
	return a.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		movies := &MovieDB{q: tx}
		existing, err := movies.GetByTitle(ctx, movie.Title)
		switch {
		case err == nil:
			*movie = *existing
		case errors.Is(err, apperror.ErrNotFound):
			if err := movies.Insert(ctx, movie); err != nil {
				return err
			}
		default:
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO movie_users (user_id, movie_id, note) VALUES (?, ?, NULL)`,
			userID, movie.ID,
		)
		if err != nil {
			if isConstraintError(err) {
				return apperror.Conflict("movie in catalog", movie.Title, err)
			}
			return storageErr("linking movie "+movie.Title, err)
		}
		return nil
	})
}

// RemoveReference unlinks title from userID and garbage-collects the movie
// if that was its last reference. Both steps share one transaction.
func (a *AssociationDB) RemoveReference(ctx context.Context, userID, title string) (bool, error) {
	var deleted bool

	err := a.db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM movie_users
			 WHERE user_id = ?
			   AND movie_id = (SELECT id FROM movies WHERE title = ?)`,
			userID, title,
		)
		if err != nil {
			return storageErr("unlinking movie "+title, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return storageErr("checking rows affected", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("movie in catalog", title)
		}

		deleted, err = (&MovieDB{q: tx}).DeleteIfUnreferenced(ctx, title)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// HasReference reports whether userID has title in their catalog.
func (a *AssociationDB) HasReference(ctx context.Context, userID, title string) (bool, error) {
	var exists bool
	err := a.db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM movie_users mu
			JOIN movies m ON m.id = mu.movie_id
			WHERE mu.user_id = ? AND m.title = ?
		)`,
		userID, title,
	).Scan(&exists)
	if err != nil {
		return false, storageErr("checking reference to "+title, err)
	}
	return exists, nil
}

// UpdateRating sets the rating of title if userID references it. The
// reference check is part of the UPDATE, so a link removed concurrently
// cannot let the write through.
func (a *AssociationDB) UpdateRating(ctx context.Context, userID, title string, rating float64) error {
	result, err := a.db.conn.ExecContext(ctx,
		`UPDATE movies SET rating = ?
		 WHERE title = ?
		   AND EXISTS (SELECT 1 FROM movie_users mu
		               WHERE mu.movie_id = movies.id AND mu.user_id = ?)`,
		rating, title, userID,
	)
	if err != nil {
		return storageErr("updating rating of "+title, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("movie in catalog", title)
	}
	return nil
}

// SetNote replaces the user's note on title. An empty note clears it.
// Returns apperror.ErrNotFound if the user has no such movie.
func (a *AssociationDB) SetNote(ctx context.Context, userID, title, note string) error {
	result, err := a.db.conn.ExecContext(ctx,
		`UPDATE movie_users SET note = ?
		 WHERE user_id = ?
		   AND movie_id = (SELECT id FROM movies WHERE title = ?)`,
		sql.NullString{String: note, Valid: note != ""},
		userID, title,
	)
	if err != nil {
		return storageErr("setting note on "+title, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("movie in catalog", title)
	}
	return nil
}

// GetNote returns the user's note on title, or "" when none was set.
// Returns apperror.ErrNotFound if the user has no such movie.
func (a *AssociationDB) GetNote(ctx context.Context, userID, title string) (string, error) {
	var note sql.NullString
	err := a.db.conn.QueryRowContext(ctx,
		`SELECT mu.note
		 FROM movie_users mu
		 JOIN movies m ON m.id = mu.movie_id
		 WHERE mu.user_id = ? AND m.title = ?`,
		userID, title,
	).Scan(&note)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("movie in catalog", title)
		}
		return "", storageErr("getting note on "+title, err)
	}
	return note.String, nil
}

func requireUser(ctx context.Context, q querier, userID string) error {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID,
	).Scan(&exists)
	if err != nil {
		return storageErr("checking user "+userID, err)
	}
	if !exists {
		return apperror.NotFound("user", userID)
	}
	return nil
}
