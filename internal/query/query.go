// Package query sorts, filters and summarizes a user's view.
//
// Everything here is a pure function over model.View: no storage access, no
// logging. A View is a Go map, so every function that returns an ordered
// result fixes the order explicitly; the same input always yields the same
// output.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
)

// Field is a numeric movie attribute a view can be sorted or filtered by.
type Field string

const (
	ByRating Field = "rating"
	ByYear   Field = "year"
)

// ParseField accepts "rating" or "year", case-insensitively.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case ByRating, ByYear:
		return f, nil
	default:
		return "", apperror.ValidationFailed("by", fmt.Sprintf("cannot sort or filter by %q", s))
	}
}

func (f Field) value(info model.MovieInfo) float64 {
	switch f {
	case ByRating:
		return info.Rating
	case ByYear:
		return float64(info.Year)
	default:
		return 0
	}
}

// Order is one of the four sort/filter menu choices.
type Order struct {
	Label      string
	By         Field
	Descending bool
}

// Orders lists the menu choices in display order.
var Orders = []Order{
	{Label: "By rating ascending", By: ByRating, Descending: false},
	{Label: "By rating descending", By: ByRating, Descending: true},
	{Label: "By year ascending", By: ByYear, Descending: false},
	{Label: "By year descending", By: ByYear, Descending: true},
}

// Entries returns the view ordered by title.
func Entries(view model.View) []model.Entry {
	entries := make([]model.Entry, 0, len(view))
	for title, info := range view {
		entries = append(entries, model.Entry{Title: title, MovieInfo: info})
	}
	slices.SortFunc(entries, func(a, b model.Entry) int {
		return strings.Compare(a.Title, b.Title)
	})
	return entries
}

// Sort orders the view by the given field.
//
// Entries with equal keys stay in title order whatever the direction, so
// [A:5 B:5 C:3] sorted by rating descending is always [A B C].
func Sort(view model.View, by Field, descending bool) []model.Entry {
	entries := Entries(view)
	slices.SortStableFunc(entries, func(a, b model.Entry) int {
		c := cmp.Compare(by.value(a.MovieInfo), by.value(b.MovieInfo))
		if descending {
			return -c
		}
		return c
	})
	return entries
}

// FilterRange keeps the entries whose field lies in [start, end], both ends
// inclusive. start > end is an empty result, not an error.
func FilterRange(view model.View, by Field, start, end float64) model.View {
	result := make(model.View)
	if start > end {
		return result
	}
	for title, info := range view {
		if v := by.value(info); start <= v && v <= end {
			result[title] = info
		}
	}
	return result
}

// Range is an inclusive [Start, End] bound.
type Range struct {
	Start float64
	End   float64
}

// Request is one sort-or-filter query from the caller. When Range is set the
// view is filtered first; the same By and Descending then order the result.
type Request struct {
	By         Field
	Descending bool
	Range      *Range
}

// Apply runs req against view.
func Apply(view model.View, req Request) ([]model.Entry, error) {
	if _, err := ParseField(string(req.By)); err != nil {
		return nil, err
	}
	if req.Range != nil {
		view = FilterRange(view, req.By, req.Range.Start, req.Range.End)
	}
	return Sort(view, req.By, req.Descending), nil
}

// Search returns the entries whose title contains term, ignoring case,
// ordered by title. An empty term matches everything.
func Search(view model.View, term string) []model.Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	matches := make([]model.Entry, 0)
	for _, e := range Entries(view) {
		if strings.Contains(strings.ToLower(e.Title), term) {
			matches = append(matches, e)
		}
	}
	return matches
}
