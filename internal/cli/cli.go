// Package cli is MovieBrain's interactive text menu.
//
// The CLI only reads lines and prints text; every decision is made by the
// Catalog it is given. It works over any io.Reader/io.Writer pair, which is
// how the tests drive it.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/query"
	"github.com/sakif/moviebrain/internal/report"
	"github.com/sakif/moviebrain/internal/service"
	"github.com/sakif/moviebrain/internal/validator"
)

// Catalog is the part of service.CatalogService the menu uses.
type Catalog interface {
	CreateUser(ctx context.Context, name string) (*model.User, error)
	DeleteUser(ctx context.Context, name string) (int, error)
	ListUsers(ctx context.Context) ([]string, error)
	Login(ctx context.Context, name string) (string, error)

	AddMovie(ctx context.Context, userID string, in validator.MovieInput) (*model.Movie, error)
	RemoveMovie(ctx context.Context, userID, title string) (bool, error)
	UpdateRating(ctx context.Context, userID, title string, rating float64) error
	SetNote(ctx context.Context, userID, title, note string) error
	GetNote(ctx context.Context, userID, title string) (string, error)

	View(ctx context.Context, userID string) (model.View, error)
	Query(ctx context.Context, userID string, req query.Request) ([]model.Entry, error)
	Search(ctx context.Context, userID, term string) ([]model.Entry, error)
	Stats(ctx context.Context, userID string) (query.Stats, bool, error)
	Random(ctx context.Context, userID string) (model.Entry, bool, error)
	Import(ctx context.Context, userID string, view model.View) (*service.ImportResult, error)
}

// Lookup fetches movie details by title. *omdb.Client implements it.
type Lookup interface {
	Lookup(ctx context.Context, title string) (validator.MovieInput, error)
}

// Options configures a CLI.
type Options struct {
	// Lookup is used by "Add movie" when set; otherwise the year, rating and
	// poster are typed in by hand.
	Lookup Lookup
	// ReportPath is the HTML page regenerated after every movie menu action.
	// Empty disables the report.
	ReportPath string
}

// CLI is one interactive session.
type CLI struct {
	catalog Catalog
	opts    Options
	in      *bufio.Scanner
	out     io.Writer
	logger  *slog.Logger

	user   string // logged-in user name
	userID string
}

// errQuit ends the session; it never reaches the caller of Run.
var errQuit = errors.New("quit")

// New creates a CLI reading from in and writing to out.
func New(catalog Catalog, in io.Reader, out io.Writer, logger *slog.Logger, opts Options) *CLI {
	return &CLI{
		catalog: catalog,
		opts:    opts,
		in:      bufio.NewScanner(in),
		out:     out,
		logger:  logger,
	}
}

// Run shows the intro and runs the user menu until the user quits or the
// input ends. Storage failures are reported and the loop carries on; Run
// only returns an error when ctx is cancelled.
func (c *CLI) Run(ctx context.Context) error {
	c.printf("%s\n%s\n               Welcome to the MovieBrain!\n", banner, brain)

	err := c.userMenu(ctx)
	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		c.printf("%s\n           See you again in the MovieBrain!\n\n", goodbye)
		return nil
	}
	return err
}

// =========================================================================
// USER MENU
// =========================================================================

func (c *CLI) userMenu(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.printf("%s", userMenuText)
		choice, err := c.prompt("Enter choice! ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.logIn(ctx)
		case "2":
			err = c.addUser(ctx)
		case "3":
			err = c.deleteUser(ctx)
		case "4":
			err = c.listUsers(ctx)
		case "0":
			return errQuit
		default:
			c.message("Sorry, invalid choice!")
		}
		if err != nil {
			return err
		}
	}
}

func (c *CLI) logIn(ctx context.Context) error {
	name, err := c.prompt("Please enter your user name: ")
	if err != nil {
		return err
	}

	id, err := c.catalog.Login(ctx, name)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.user, c.userID = strings.TrimSpace(name), id
	c.message(fmt.Sprintf("Welcome back, %s!", c.user))

	err = c.movieMenu(ctx)
	c.user, c.userID = "", ""
	return err
}

func (c *CLI) addUser(ctx context.Context) error {
	name, err := c.prompt("Please enter the new user name: ")
	if err != nil {
		return err
	}

	user, err := c.catalog.CreateUser(ctx, name)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.message(fmt.Sprintf("Added user %s.", user.Name))
	return nil
}

func (c *CLI) deleteUser(ctx context.Context) error {
	name, err := c.prompt("Please enter the user name to delete: ")
	if err != nil {
		return err
	}

	removed, err := c.catalog.DeleteUser(ctx, name)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.message(fmt.Sprintf("Deleted user %s and %d movie(s) nobody else had.", strings.TrimSpace(name), removed))
	return nil
}

func (c *CLI) listUsers(ctx context.Context) error {
	names, err := c.catalog.ListUsers(ctx)
	if err != nil {
		c.fail(err)
		return nil
	}
	if len(names) == 0 {
		c.message("There are no users yet.")
		return nil
	}
	c.printf("\n  Users:\n")
	for _, name := range names {
		c.printf("  - %s\n", name)
	}
	return nil
}

// =========================================================================
// MOVIE MENU
// =========================================================================

type action func(c *CLI, ctx context.Context) error

var movieActions = map[string]action{
	"1":  logged("list movies", (*CLI).listMovies),
	"2":  logged("add movie", (*CLI).addMovie),
	"3":  logged("delete movie", (*CLI).deleteMovie),
	"4":  logged("edit note", (*CLI).editNote),
	"5":  logged("update rating", (*CLI).updateRating),
	"6":  logged("show stats", (*CLI).showStats),
	"7":  logged("random movie", (*CLI).randomMovie),
	"8":  logged("search movies", (*CLI).searchMovies),
	"9":  logged("sort movies", (*CLI).sortMovies),
	"10": logged("filter movies", (*CLI).filterMovies),
	"11": logged("export catalog", (*CLI).exportCatalog),
	"12": logged("import catalog", (*CLI).importCatalog),
}

// movieMenu runs until the user logs out ("0"), which returns to the user menu.
func (c *CLI) movieMenu(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.writeReport(ctx)
		c.printf(movieMenuText, c.user)

		choice, err := c.prompt("Enter choice! ")
		if err != nil {
			return err
		}
		if choice == "0" {
			return nil
		}

		act, ok := movieActions[choice]
		if !ok {
			c.message("Sorry, invalid choice!")
			continue
		}
		if err := act(c, ctx); err != nil {
			return err
		}
	}
}

func (c *CLI) listMovies(ctx context.Context) error {
	view, err := c.catalog.View(ctx, c.userID)
	if err != nil {
		c.fail(err)
		return nil
	}
	if len(view) == 0 {
		c.message("Your catalog is empty!")
		return nil
	}

	c.printf("\n  There are %d movies in your catalog.\n\n", len(view))
	c.printEntries(query.Entries(view))
	return nil
}

func (c *CLI) addMovie(ctx context.Context) error {
	title, err := c.prompt("Please enter the name of the movie you want to add: ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		c.message("Error! Movie name cannot be empty.")
		return nil
	}

	var in validator.MovieInput
	if c.opts.Lookup != nil {
		in, err = c.opts.Lookup.Lookup(ctx, title)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			c.message("Sorry, no movie found!")
			return nil
		case errors.Is(err, apperror.ErrUnavailable):
			c.logger.Warn("movie lookup failed", slog.String("title", title), slog.String("error", err.Error()))
			c.message("Sorry, can't connect to the search API.")
			return nil
		case err != nil:
			c.fail(err)
			return nil
		}
	} else {
		in.Title = title
		if in.Year, err = c.promptInt("Please enter the year: "); err != nil {
			return err
		}
		if in.Rating, err = c.promptRating("Please enter the rating (0-10): "); err != nil {
			return err
		}
		if in.Poster, err = c.prompt("Please enter a poster URL (optional): "); err != nil {
			return err
		}
	}

	movie, err := c.catalog.AddMovie(ctx, c.userID, in)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.message(fmt.Sprintf("Added %s (%d) with the rating %g to your catalog.", movie.Title, movie.Year, movie.Rating))
	return nil
}

func (c *CLI) deleteMovie(ctx context.Context) error {
	title, err := c.prompt("Please enter the name of the movie you want to delete: ")
	if err != nil {
		return err
	}

	deleted, err := c.catalog.RemoveMovie(ctx, c.userID, title)
	if err != nil {
		c.fail(err)
		return nil
	}
	msg := fmt.Sprintf("Removed %s from your catalog.", strings.TrimSpace(title))
	if deleted {
		msg += " Nobody else had it, so it is gone for good."
	}
	c.message(msg)
	return nil
}

func (c *CLI) editNote(ctx context.Context) error {
	title, err := c.prompt("Please enter the name of the movie: ")
	if err != nil {
		return err
	}

	current, err := c.catalog.GetNote(ctx, c.userID, title)
	if err != nil {
		c.fail(err)
		return nil
	}
	if current != "" {
		c.printf("\n  Current note: %s\n", current)
	}

	note, err := c.prompt("Please enter the note (empty to clear): ")
	if err != nil {
		return err
	}
	if err := c.catalog.SetNote(ctx, c.userID, title, note); err != nil {
		c.fail(err)
		return nil
	}
	if strings.TrimSpace(note) == "" {
		c.message("Note cleared.")
	} else {
		c.message("Note saved.")
	}
	return nil
}

func (c *CLI) updateRating(ctx context.Context) error {
	title, err := c.prompt("Please enter the name of the movie you want to update: ")
	if err != nil {
		return err
	}
	rating, err := c.promptRating("Please enter a new rating for the movie: ")
	if err != nil {
		return err
	}

	if err := c.catalog.UpdateRating(ctx, c.userID, title, rating); err != nil {
		c.fail(err)
		return nil
	}
	c.message(fmt.Sprintf("Updated %s with the new rating %g.", strings.TrimSpace(title), rating))
	return nil
}

func (c *CLI) showStats(ctx context.Context) error {
	stats, ok, err := c.catalog.Stats(ctx, c.userID)
	if err != nil {
		c.fail(err)
		return nil
	}
	if !ok {
		c.message("Your catalog is empty!")
		return nil
	}

	c.printf("\n  Here are some fresh stats from your catalog:\n\n")
	c.printf("  The average rating of the movies is: %.1f\n", stats.Average)
	c.printf("  The median rating of the movies is: %.1f\n", stats.Median)
	c.printf("\n  The best rated movie(s):\n")
	c.printEntries(stats.Best)
	c.printf("\n  The worst rated movie(s):\n")
	c.printEntries(stats.Worst)
	return nil
}

func (c *CLI) randomMovie(ctx context.Context) error {
	entry, ok, err := c.catalog.Random(ctx, c.userID)
	if err != nil {
		c.fail(err)
		return nil
	}
	if !ok {
		c.message("Your catalog is empty!")
		return nil
	}
	c.printf("\n  Here is a random movie from your catalog:\n\n")
	c.printEntries([]model.Entry{entry})
	return nil
}

func (c *CLI) searchMovies(ctx context.Context) error {
	term, err := c.prompt("Enter the search term: ")
	if err != nil {
		return err
	}

	found, err := c.catalog.Search(ctx, c.userID, term)
	if err != nil {
		c.fail(err)
		return nil
	}
	if len(found) == 0 {
		c.message("Sorry, no matching movie found.")
		return nil
	}
	c.printf("\n  Here are the search results:\n\n")
	c.printEntries(found)
	return nil
}

func (c *CLI) sortMovies(ctx context.Context) error {
	order, ok, err := c.chooseOrder("How do you wish to sort the movies:")
	if err != nil || !ok {
		return err
	}

	entries, err := c.catalog.Query(ctx, c.userID, query.Request{By: order.By, Descending: order.Descending})
	if err != nil {
		c.fail(err)
		return nil
	}
	c.printf("\n  Here is the movie list sorted by %s:\n\n", order.By)
	c.printEntries(entries)
	return nil
}

func (c *CLI) filterMovies(ctx context.Context) error {
	order, ok, err := c.chooseOrder("How do you wish to filter the movies:")
	if err != nil || !ok {
		return err
	}

	var r query.Range
	if order.By == query.ByRating {
		if r.Start, err = c.promptRating("Please enter the start rating: "); err != nil {
			return err
		}
		if r.End, err = c.promptRating("Please enter the end rating: "); err != nil {
			return err
		}
	} else {
		start, err := c.promptInt("Please enter the start year: ")
		if err != nil {
			return err
		}
		end, err := c.promptInt("Please enter the end year: ")
		if err != nil {
			return err
		}
		r.Start, r.End = float64(start), float64(end)
	}

	entries, err := c.catalog.Query(ctx, c.userID, query.Request{
		By:         order.By,
		Descending: order.Descending,
		Range:      &r,
	})
	if err != nil {
		c.fail(err)
		return nil
	}
	if len(entries) == 0 {
		c.message("No movies in that range.")
		return nil
	}
	c.printf("\n  Here is the movie list filtered by %s:\n\n", order.By)
	c.printEntries(entries)
	return nil
}

// chooseOrder shows the four sort/filter choices. ok is false after an
// invalid choice, which has already been reported.
func (c *CLI) chooseOrder(heading string) (order query.Order, ok bool, err error) {
	c.printf("\n  %s\n\n", heading)
	for i, o := range query.Orders {
		c.printf("  %d. %s\n", i+1, o.Label)
	}

	choice, err := c.prompt("Enter choice! ")
	if err != nil {
		return query.Order{}, false, err
	}
	for i, o := range query.Orders {
		if choice == fmt.Sprint(i+1) {
			return o, true, nil
		}
	}
	c.message("Sorry, invalid choice!")
	return query.Order{}, false, nil
}

// =========================================================================
// OUTPUT
// =========================================================================

func (c *CLI) printEntries(entries []model.Entry) {
	for _, e := range entries {
		c.printf("  %s (%d): %g\n", e.Title, e.Year, e.Rating)
	}
}

func (c *CLI) message(msg string) {
	c.printf("\n  %s\n", msg)
}

// fail prints the user-facing text for err.
func (c *CLI) fail(err error) {
	switch {
	case errors.Is(err, apperror.ErrUnavailable):
		c.logger.Error("storage unavailable", slog.String("error", err.Error()))
		c.message("Sorry, the catalog is unavailable right now. Please try again.")
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrConflict), errors.Is(err, apperror.ErrValidation):
		c.message("Sorry! " + userMessage(err))
	default:
		c.logger.Error("unexpected error", slog.String("error", err.Error()))
		c.message("Sorry, something went wrong.")
	}
}

// userMessage is the text of err without its cause, which may be raw driver
// output. Validation failures list every offending field.
func userMessage(err error) string {
	var fieldErrs validator.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Error()
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// writeReport regenerates the HTML page for the logged-in user. A failure
// is logged and otherwise ignored; the menu keeps working without it.
func (c *CLI) writeReport(ctx context.Context) {
	if c.opts.ReportPath == "" {
		return
	}
	view, err := c.catalog.View(ctx, c.userID)
	if err != nil {
		c.logger.Warn("skipping report", slog.String("error", err.Error()))
		return
	}
	if err := report.WriteFile(c.opts.ReportPath, c.user+"'s MovieBrain", view); err != nil {
		c.logger.Warn("failed to write report",
			slog.String("path", c.opts.ReportPath),
			slog.String("error", err.Error()),
		)
	}
}
