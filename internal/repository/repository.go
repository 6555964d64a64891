// Package repository declares the storage contracts of MovieBrain.
//
// The service layer depends on these interfaces only; internal/repository/sqlite
// provides the implementation. Every method that mutates more than one row
// runs inside a single transaction in the implementation, so callers never
// observe an orphan movie or a dangling association.
package repository

import (
	"context"

	"github.com/sakif/moviebrain/internal/model"
)

// MovieRepository manages the canonical movie rows, keyed by unique title.
type MovieRepository interface {
	// FindIDByTitle returns the id of the movie with exactly this title.
	// found is false (and err nil) when there is none.
	FindIDByTitle(ctx context.Context, title string) (id string, found bool, err error)
	GetByTitle(ctx context.Context, title string) (*model.Movie, error)
	// Insert assigns movie.ID. A duplicate title is an apperror.ErrConflict.
	Insert(ctx context.Context, movie *model.Movie) error
	UpdateRating(ctx context.Context, title string, rating float64) error
	// DeleteIfUnreferenced deletes the movie only when no association points
	// at it and reports whether a row was deleted.
	DeleteIfUnreferenced(ctx context.Context, title string) (bool, error)
	ListForUser(ctx context.Context, userID string) (model.View, error)
}

// UserRepository manages named catalog owners.
type UserRepository interface {
	FindIDByName(ctx context.Context, name string) (id string, found bool, err error)
	// Create assigns user.ID. A duplicate name is an apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	// Delete removes the user, all of their associations and every movie
	// that no other user references, all-or-nothing. It returns the number
	// of movies removed along the way.
	Delete(ctx context.Context, name string) (int, error)
	List(ctx context.Context) ([]string, error)
}

// AssociationRepository manages the user ↔ movie links and their notes.
type AssociationRepository interface {
	// AddReference links userID to the movie titled movie.Title, inserting
	// the movie first when no row has that title yet. On return movie holds
	// the canonical stored record.
	AddReference(ctx context.Context, userID string, movie *model.Movie) error
	// RemoveReference unlinks the movie and deletes it when it was the last
	// reference. It reports whether the movie row was deleted.
	RemoveReference(ctx context.Context, userID, title string) (bool, error)
	HasReference(ctx context.Context, userID, title string) (bool, error)
	// UpdateRating changes the shared rating of title, but only when userID
	// references it; otherwise it is an apperror.ErrNotFound.
	UpdateRating(ctx context.Context, userID, title string, rating float64) error
	SetNote(ctx context.Context, userID, title, note string) error
	// GetNote returns "" when the association exists without a note.
	GetNote(ctx context.Context, userID, title string) (string, error)
}
