package model

import (
	"time"

	"github.com/google/uuid"
)

const EmptyTitle string = ""

// MovieMeta is one catalog item exactly as the catalog collaborator hands it
// over. The catalog is read-only from the session engine's point of view.
type MovieMeta struct {
	ID            uuid.UUID
	Title         string
	Year          int
	Genres        []string
	RatingIMDB    *float64
	RatingRT      *float64
	RuntimeMin    int
	Overview      string
	ContentRating string
	PosterLink    string
	AddedAt       time.Time
	Watched       bool
}

// DeckCard is the display-safe projection of a catalog item. Watch history
// never leaves the server.
type DeckCard struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Year          int       `json:"year"`
	Genres        []string  `json:"genres"`
	RatingIMDB    *float64  `json:"rating_imdb,omitempty"`
	RatingRT      *float64  `json:"rating_rt,omitempty"`
	RuntimeMin    int       `json:"runtime_min"`
	Overview      string    `json:"overview"`
	ContentRating string    `json:"content_rating"`
	PosterLink    string    `json:"poster_link"`
	AddedAt       time.Time `json:"added_at"`
}

func NewDeckCard(mm MovieMeta) DeckCard {
	return DeckCard{
		ID:            mm.ID,
		Title:         mm.Title,
		Year:          mm.Year,
		Genres:        mm.Genres,
		RatingIMDB:    mm.RatingIMDB,
		RatingRT:      mm.RatingRT,
		RuntimeMin:    mm.RuntimeMin,
		Overview:      mm.Overview,
		ContentRating: mm.ContentRating,
		PosterLink:    mm.PosterLink,
		AddedAt:       mm.AddedAt,
	}
}
