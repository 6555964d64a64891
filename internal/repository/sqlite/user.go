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

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB manages catalog owners. It keeps the *DB rather than a querier
// because Delete needs to open its own transaction.
type UserDB struct {
	db *DB
}

// FindIDByName looks a user up by exact name. A missing user is not an error.
func (u *UserDB) FindIDByName(ctx context.Context, name string) (string, bool, error) {
	return findUserID(ctx, u.db.conn, name)
}

func findUserID(ctx context.Context, q querier, name string) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM users WHERE name = ?`, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("looking up user "+name, err)
	}
	return id, true, nil
}

// Create inserts a new user and fills in ID and CreatedAt.
// A duplicate name fails with apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	if strings.TrimSpace(user.Name) == "" {
		return apperror.ValidationFailed("name", "user name is required")
	}

	id := xid.New().String()
	now := time.Now().UTC()

	_, err := u.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		id, user.Name, now,
	)
	if err != nil {
		if isConstraintError(err) {
			return apperror.Conflict("user", user.Name, err)
		}
		return storageErr("inserting user "+user.Name, err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

// Delete removes the user and everything that existed only for them.
//
// CASCADE ORDER (all in one transaction):
//  1. remember the titles the user references
//  2. delete the user's movie_users rows
//  3. delete each remembered movie that no other user still references
//  4. delete the user row
//
// Any failure rolls the whole thing back, so a half-deleted user whose movies
// are gone but whose row remains can never be observed.
func (u *UserDB) Delete(ctx context.Context, name string) (int, error) {
	removed := 0

	err := u.db.withTx(ctx, func(tx *sql.Tx) error {
		userID, found, err := findUserID(ctx, tx, name)
		if err != nil {
			return err
		}
		if !found {
			return apperror.NotFound("user", name)
		}

		titles, err := referencedTitles(ctx, tx, userID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM movie_users WHERE user_id = ?`, userID,
		); err != nil {
			return storageErr("deleting associations of "+name, err)
		}

		movies := &MovieDB{q: tx}
		for _, title := range titles {
			deleted, err := movies.DeleteIfUnreferenced(ctx, title)
			if err != nil {
				return err
			}
			if deleted {
				removed++
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM users WHERE id = ?`, userID,
		); err != nil {
			return storageErr("deleting user "+name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// referencedTitles reads every title userID links to. The rows are drained
// and closed before returning so the transaction's connection is free for the
// deletes that follow.
func referencedTitles(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT m.title
		 FROM movies m
		 JOIN movie_users mu ON mu.movie_id = m.id
		 WHERE mu.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, storageErr("listing referenced titles", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, storageErr("scanning title", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating titles", err)
	}
	return titles, nil
}

// List returns every user name in alphabetical order.
func (u *UserDB) List(ctx context.Context) ([]string, error) {
	rows, err := u.db.conn.QueryContext(ctx,
		`SELECT name FROM users ORDER BY name`,
	)
	if err != nil {
		return nil, storageErr("listing users", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("scanning user row", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating users", err)
	}
	return names, nil
}
