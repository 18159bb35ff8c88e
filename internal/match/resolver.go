package match

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
)

// Resolver tracks per-card approval sets for one room and computes the
// ranked near-miss fallback when every pool runs dry.
type Resolver struct {
	voters map[uuid.UUID]map[uuid.UUID]struct{} // card -> approving participants
	rights map[uuid.UUID]int
	lefts  map[uuid.UUID]int
	cards  map[uuid.UUID]model.DeckCard
	order  []uuid.UUID // encounter order of right-swiped cards, for tie-breaks
}

func NewResolver() *Resolver {
	return &Resolver{
		voters: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		rights: make(map[uuid.UUID]int),
		lefts:  make(map[uuid.UUID]int),
		cards:  make(map[uuid.UUID]model.DeckCard),
	}
}

// RecordSwipe registers one participant's verdict and returns the card's
// current approval count. Double votes from the same participant collapse.
func (r *Resolver) RecordSwipe(card model.DeckCard, participantID uuid.UUID, dir model.SwipeDirection) int {
	if dir == model.SwipeLeft {
		r.lefts[card.ID]++
		return len(r.voters[card.ID])
	}

	r.rights[card.ID]++
	set, ok := r.voters[card.ID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.voters[card.ID] = set
		r.cards[card.ID] = card
		r.order = append(r.order, card.ID)
	}
	set[participantID] = struct{}{}
	return len(set)
}

// DropVoter removes a departed participant from every approval set, so
// unanimity and near-miss math are always judged against the live roster.
func (r *Resolver) DropVoter(participantID uuid.UUID) {
	for _, set := range r.voters {
		delete(set, participantID)
	}
}

// VotedCards lists every card with a recorded approval, in encounter order.
func (r *Resolver) VotedCards() []uuid.UUID {
	return r.order
}

// IsMatch reports whether every participant currently in the room has
// approved the card.
func (r *Resolver) IsMatch(id uuid.UUID, participantCount int) bool {
	return participantCount > 0 && len(r.voters[id]) == participantCount
}

func (r *Resolver) VoterCount(id uuid.UUID) int {
	return len(r.voters[id])
}

func (r *Resolver) RightCount(id uuid.UUID) int {
	return r.rights[id]
}

// NearMiss is a card some but not all participants approved.
type NearMiss struct {
	Card    model.DeckCard `json:"card"`
	Voters  int            `json:"voters"`
	Percent int            `json:"percent"`
}

const nearMissLimit = 10

// NearMisses ranks every non-empty, non-unanimous approval set by percent
// agreement (descending), breaking ties by encounter order, truncated to the
// top ten.
func (r *Resolver) NearMisses(participantCount int) []NearMiss {
	if participantCount <= 0 {
		return nil
	}

	misses := make([]NearMiss, 0, len(r.order))
	for _, id := range r.order {
		n := len(r.voters[id])
		if n == 0 || n == participantCount {
			continue
		}
		misses = append(misses, NearMiss{
			Card:    r.cards[id],
			Voters:  n,
			Percent: int(math.Round(float64(n) / float64(participantCount) * 100)),
		})
	}

	sort.SliceStable(misses, func(i, j int) bool {
		return misses[i].Percent > misses[j].Percent
	})

	if len(misses) > nearMissLimit {
		misses = misses[:nearMissLimit]
	}
	return misses
}
