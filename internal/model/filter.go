package model

import "github.com/google/uuid"

// UserFilterState is one participant's filter criteria, supplied with their
// "ready" action and cleared on "unready". Empty selection sets mean
// "no restriction", not "reject all".
type UserFilterState struct {
	Genres      []string    `json:"genres"`
	Decades     []string    `json:"decades"`
	HideWatched bool        `json:"hide_watched"`
	ExcludedIDs []uuid.UUID `json:"excluded_ids"`
}
