// Package model defines the data structures shared by the storage, query and
// presentation layers of MovieBrain.
package model

import "time"

// Movie is the canonical, shared record for one title.
//
// Title is globally unique: two users who add "Inception" point at the same
// Movie row through their own Association. The row lives exactly as long as
// at least one Association references it.
type Movie struct {
	ID        string    `json:"id"        db:"id"`
	Title     string    `json:"title"     db:"title"`
	Year      int       `json:"year"      db:"year"`
	Rating    float64   `json:"rating"    db:"rating"` // 0–10
	Poster    string    `json:"poster"    db:"poster"` // URL or local path
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Info returns the per-title payload used by views.
func (m Movie) Info() MovieInfo {
	return MovieInfo{Year: m.Year, Rating: m.Rating, Poster: m.Poster}
}

// MovieInfo is everything a view knows about a title besides the title itself.
// The yaml/json tags match the legacy data.json layout: {"year":..,"rating":..,"poster":..}.
type MovieInfo struct {
	Year   int     `json:"year"   yaml:"year"`
	Rating float64 `json:"rating" yaml:"rating"`
	Poster string  `json:"poster" yaml:"poster"`
}

// View is one user's catalog: title → info. It is the single shape handed to
// the query layer, the HTML report and the exporters.
//
// Go maps have no order; anything that displays a View sorts it first.
type View map[string]MovieInfo

// Entry is one (title, info) pair of an ordered view.
type Entry struct {
	Title string
	MovieInfo
}
