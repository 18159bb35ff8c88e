package session

import (
	"github.com/google/uuid"

	"github.com/reelpick/core/internal/match"
	"github.com/reelpick/core/internal/model"
)

const (
	EventRoomCreated        = "room_created"
	EventRoomJoined         = "room_joined"
	EventRoomRejoined       = "room_rejoined"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventUserStatusChanged  = "user_status_changed"
	EventKicked             = "kicked"
	EventHostChanged        = "host_changed"
	EventError              = "error"
	EventFilteringStarted   = "filtering_started"
	EventUserReady          = "user_ready"
	EventUserUnready        = "user_unready"
	EventOverlapCount       = "overlap_count"
	EventDeckStarted        = "deck_started"
	EventCardsServed        = "cards_served"
	EventDeckOptionsChanged = "deck_options_changed"
	EventMatchFound         = "match_found"
	EventMatchDismissed     = "match_dismissed"
	EventSessionEnded       = "session_ended"
	EventSwipeProgress      = "swipe_progress"
	EventNoMatch            = "no_match"
)

// Event is one outbound frame. The dispatcher serializes it; the session
// core only builds them.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Endpoint is a sendable handle to one participant's live connection. The
// core never depends on a concrete transport; sends are fire-and-forget and
// a dead endpoint is simply skipped.
type Endpoint interface {
	Send(evt Event)
	CloseWithReason(reason string)
}

type ParticipantInfo struct {
	ID       uuid.UUID              `json:"id"`
	Nickname string                 `json:"nickname"`
	IsHost   bool                   `json:"is_host"`
	Status   model.ConnectionStatus `json:"status"`
}

type RoomSnapshot struct {
	Code         string            `json:"code"`
	HostID       uuid.UUID         `json:"host_id"`
	Phase        model.Phase       `json:"phase"`
	Participants []ParticipantInfo `json:"participants"`
	DeckOptions  model.DeckOptions `json:"deck_options"`
}

// Welcome is the response payload for create/join/reconnect. The session
// token is the only credential accepted for a later reconnect.
type Welcome struct {
	Room         RoomSnapshot `json:"room"`
	You          uuid.UUID    `json:"you"`
	SessionToken uuid.UUID    `json:"session_token"`
}

type UserJoinedPayload struct {
	Participant ParticipantInfo `json:"participant"`
}

type UserLeftPayload struct {
	ParticipantID uuid.UUID  `json:"participant_id"`
	NewHostID     *uuid.UUID `json:"new_host_id,omitempty"`
}

type UserStatusPayload struct {
	ParticipantID uuid.UUID              `json:"participant_id"`
	Status        model.ConnectionStatus `json:"status"`
}

type HostChangedPayload struct {
	HostID uuid.UUID `json:"host_id"`
}

type UserReadyPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
}

type OverlapPayload struct {
	Count int `json:"count"`
}

type DeckStartedPayload struct {
	TotalSize   int              `json:"total_size"`
	Cards       []model.DeckCard `json:"cards"`
	SwipedSoFar int              `json:"swiped_so_far"`
}

type CardsServedPayload struct {
	Cards []model.DeckCard `json:"cards"`
}

type DeckOptionsPayload struct {
	Options model.DeckOptions `json:"options"`
}

type MatchFoundPayload struct {
	Card model.DeckCard `json:"card"`
}

type MatchDismissedPayload struct {
	CardID uuid.UUID `json:"card_id"`
}

type SessionEndedPayload struct {
	Card       *model.DeckCard `json:"card,omitempty"`
	SelectedBy string          `json:"selected_by,omitempty"`
}

type SwipeProgressPayload struct {
	CardID uuid.UUID `json:"card_id"`
	Count  int       `json:"count"`
	Total  int       `json:"total"`
}

type NoMatchPayload struct {
	NearMisses []match.NearMiss `json:"near_misses"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
