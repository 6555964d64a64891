// Package service contains the business logic of MovieBrain.
//
// LAYERS:
//
//	CLI (internal/cli)         → reads menu choices, prints results
//	Service (this package)     → validates, resolves users, enforces rules
//	Repository (storage layer) → reads/writes the SQLite catalog
//
// CatalogService takes the repository interfaces, not *sqlite.DB, so its
// tests run against in-memory fakes (see catalog_test.go) and the CLI never
// imports the storage package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/query"
	"github.com/sakif/moviebrain/internal/repository"
	"github.com/sakif/moviebrain/internal/validator"
)

// CatalogService is the single entry point the CLI talks to.
//
// Methods that act on a catalog take the user's id as returned by Login;
// the user menu operations take names.
type CatalogService struct {
	movies   repository.MovieRepository
	users    repository.UserRepository
	links    repository.AssociationRepository
	validate *validator.Validator
	logger   *slog.Logger
	rng      *rand.Rand
}

// NewCatalogService wires a CatalogService. Any *sqlite.DB provides the
// three repositories through Movies(), Users() and Associations().
func NewCatalogService(
	movies repository.MovieRepository,
	users repository.UserRepository,
	links repository.AssociationRepository,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		movies:   movies,
		users:    users,
		links:    links,
		validate: validator.New(),
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// =========================================================================
// USERS
// =========================================================================

// CreateUser registers a new catalog owner. A taken name is an ErrConflict.
func (s *CatalogService) CreateUser(ctx context.Context, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Validate(validator.UserInput{Name: name}); err != nil {
		return nil, err
	}

	user := &model.User{Name: name}
	if err := s.users.Create(ctx, user); err != nil {
		s.logFailure("failed to create user", err, slog.String("name", name))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("id", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// DeleteUser removes the user together with every movie only they
// referenced. It returns how many movies went with them.
func (s *CatalogService) DeleteUser(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperror.ValidationFailed("name", "user name is required")
	}

	removed, err := s.users.Delete(ctx, name)
	if err != nil {
		s.logFailure("failed to delete user", err, slog.String("name", name))
		return 0, err
	}

	s.logger.Info("user deleted",
		slog.String("name", name),
		slog.Int("movies_removed", removed),
	)
	return removed, nil
}

// ListUsers returns every user name, alphabetically.
func (s *CatalogService) ListUsers(ctx context.Context) ([]string, error) {
	names, err := s.users.List(ctx)
	if err != nil {
		s.logFailure("failed to list users", err)
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return names, nil
}

// Login resolves a user name to the id every catalog operation takes.
func (s *CatalogService) Login(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "user name is required")
	}

	id, found, err := s.users.FindIDByName(ctx, name)
	if err != nil {
		s.logFailure("failed to look up user", err, slog.String("name", name))
		return "", err
	}
	if !found {
		return "", apperror.NotFound("user", name)
	}

	s.logger.Debug("user logged in", slog.String("name", name), slog.String("id", id))
	return id, nil
}

// =========================================================================
// MOVIES
// =========================================================================

// AddMovie puts a movie into the user's catalog.
//
// When another user already added the same title, the existing record is
// shared and in's year/rating/poster are ignored; the returned movie is
// always the stored one. Adding a title the user already has is an
// ErrConflict.
func (s *CatalogService) AddMovie(ctx context.Context, userID string, in validator.MovieInput) (*model.Movie, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Poster = strings.TrimSpace(in.Poster)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	movie := &model.Movie{
		Title:  in.Title,
		Year:   in.Year,
		Rating: in.Rating,
		Poster: in.Poster,
	}
	if err := s.links.AddReference(ctx, userID, movie); err != nil {
		s.logFailure("failed to add movie", err,
			slog.String("user_id", userID),
			slog.String("title", in.Title),
		)
		return nil, err
	}

	s.logger.Info("movie added",
		slog.String("user_id", userID),
		slog.String("movie_id", movie.ID),
		slog.String("title", movie.Title),
	)
	return movie, nil
}

// RemoveMovie takes the title out of the user's catalog. deleted reports
// whether that was the last reference, so the shared record is gone too.
func (s *CatalogService) RemoveMovie(ctx context.Context, userID, title string) (deleted bool, err error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}
	title, err = requireTitle(title)
	if err != nil {
		return false, err
	}

	deleted, err = s.links.RemoveReference(ctx, userID, title)
	if err != nil {
		s.logFailure("failed to remove movie", err,
			slog.String("user_id", userID),
			slog.String("title", title),
		)
		return false, err
	}

	s.logger.Info("movie removed",
		slog.String("user_id", userID),
		slog.String("title", title),
		slog.Bool("record_deleted", deleted),
	)
	return deleted, nil
}

// UpdateRating changes the shared rating of a title in the user's catalog.
// Every user referencing the title sees the new rating. A title the user
// does not have is ErrNotFound, even when someone else has it.
func (s *CatalogService) UpdateRating(ctx context.Context, userID, title string, rating float64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if err := s.validate.Validate(validator.RatingInput{Title: title, Rating: rating}); err != nil {
		return err
	}

	if err := s.links.UpdateRating(ctx, userID, title, rating); err != nil {
		s.logFailure("failed to update rating", err,
			slog.String("user_id", userID),
			slog.String("title", title),
		)
		return err
	}

	s.logger.Info("rating updated",
		slog.String("title", title),
		slog.Float64("rating", rating),
	)
	return nil
}

// SetNote stores the user's private note on a title. An empty note clears it.
func (s *CatalogService) SetNote(ctx context.Context, userID, title, note string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	title, err := requireTitle(title)
	if err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	if err := s.validate.Validate(validator.NoteInput{Note: note}); err != nil {
		return err
	}

	if err := s.links.SetNote(ctx, userID, title, note); err != nil {
		s.logFailure("failed to save note", err,
			slog.String("user_id", userID),
			slog.String("title", title),
		)
		return err
	}

	s.logger.Info("note saved",
		slog.String("user_id", userID),
		slog.String("title", title),
		slog.Bool("cleared", note == ""),
	)
	return nil
}

func (s *CatalogService) GetNote(ctx context.Context, userID, title string) (string, error) {
	if err := requireUser(userID); err != nil {
		return "", err
	}
	title, err := requireTitle(title)
	if err != nil {
		return "", err
	}
	return s.links.GetNote(ctx, userID, title)
}

// =========================================================================
// VIEWS
// =========================================================================

// View returns the user's whole catalog.
func (s *CatalogService) View(ctx context.Context, userID string) (model.View, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	view, err := s.movies.ListForUser(ctx, userID)
	if err != nil {
		s.logFailure("failed to load catalog", err, slog.String("user_id", userID))
		return nil, err
	}
	return view, nil
}

// Query sorts, and optionally filters, the user's catalog.
func (s *CatalogService) Query(ctx context.Context, userID string, req query.Request) ([]model.Entry, error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return nil, err
	}
	return query.Apply(view, req)
}

func (s *CatalogService) Search(ctx context.Context, userID, term string) ([]model.Entry, error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return nil, err
	}
	return query.Search(view, term), nil
}

// Stats summarizes the user's ratings; ok is false for an empty catalog.
func (s *CatalogService) Stats(ctx context.Context, userID string) (stats query.Stats, ok bool, err error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return query.Stats{}, false, err
	}
	stats, ok = query.ComputeStats(view)
	return stats, ok, nil
}

// Random picks one title from the user's catalog; ok is false when it is empty.
func (s *CatalogService) Random(ctx context.Context, userID string) (entry model.Entry, ok bool, err error) {
	view, err := s.View(ctx, userID)
	if err != nil {
		return model.Entry{}, false, err
	}
	entry, ok = query.Random(view, s.rng)
	return entry, ok, nil
}

// =========================================================================
// IMPORT
// =========================================================================

// ImportResult reports what Import did with each title.
type ImportResult struct {
	Added  []string          // in title order
	Failed map[string]error // title → why it was skipped
}

// Import adds every entry of view to the user's catalog, one AddMovie per
// title in title order. A failing title is recorded and skipped; the
// remaining titles are still imported. Only ErrUnavailable aborts the run.
func (s *CatalogService) Import(ctx context.Context, userID string, view model.View) (*ImportResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Added:  make([]string, 0, len(view)),
		Failed: make(map[string]error),
	}
	for _, e := range query.Entries(view) {
		_, err := s.AddMovie(ctx, userID, validator.MovieInput{
			Title:  e.Title,
			Year:   e.Year,
			Rating: e.Rating,
			Poster: e.Poster,
		})
		switch {
		case err == nil:
			result.Added = append(result.Added, e.Title)
		case errors.Is(err, apperror.ErrUnavailable):
			return result, err
		default:
			result.Failed[e.Title] = err
		}
	}

	s.logger.Info("catalog imported",
		slog.String("user_id", userID),
		slog.Int("added", len(result.Added)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// =========================================================================
// HELPERS
// =========================================================================

// logFailure logs storage failures at error level. Not-found, validation and
// conflict errors are ordinary outcomes and are not logged.
func (s *CatalogService) logFailure(msg string, err error, attrs ...any) {
	if !errors.Is(err, apperror.ErrUnavailable) && apperror.Kind(err) != "internal" {
		return
	}
	s.logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperror.ValidationFailed("user", "no user is logged in")
	}
	return nil
}

func requireTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "movie title is required")
	}
	return title, nil
}
