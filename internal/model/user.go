package model

import "time"

// User is a named catalog owner. Name is unique.
type User struct {
	ID        string    `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Association links one user to one movie and carries that user's private
// note about it. (UserID, MovieID) is unique.
type Association struct {
	UserID  string `json:"userId"  db:"user_id"`
	MovieID string `json:"movieId" db:"movie_id"`
	Note    string `json:"note"    db:"note"` // "" when no note was set
}
