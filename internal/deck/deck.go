package deck

import (
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/reelpick/core/internal/filter"
	"github.com/reelpick/core/internal/model"
)

// MasterDeck is a room's frozen candidate list: the intersection of every
// ready participant's filter over the catalog, plus optional wildcards that
// bypassed filtering entirely. Immutable once built.
type MasterDeck struct {
	Cards       []model.DeckCard
	WildcardIDs map[uuid.UUID]struct{}
}

func (d MasterDeck) Size() int {
	return len(d.Cards)
}

func (d MasterDeck) IsWildcard(id uuid.UUID) bool {
	_, ok := d.WildcardIDs[id]
	return ok
}

// Build intersects the catalog against every filter (AND across all
// participants), then injects wildcards drawn uniformly from the catalog
// remainder, ignoring all filters. Wildcard count is
// round(intersection × percent), at least one when wildcards are enabled
// and any non-intersecting candidates exist.
func Build(catalog []model.MovieMeta, filters []model.UserFilterState, opts model.DeckOptions, rng *rand.Rand) MasterDeck {
	intersection, rest := lo.FilterReject(catalog, func(mm model.MovieMeta, _ int) bool {
		return filter.PassesAll(mm, filters)
	})

	cards := lo.Map(intersection, func(mm model.MovieMeta, _ int) model.DeckCard {
		return model.NewDeckCard(mm)
	})

	deck := MasterDeck{
		Cards:       cards,
		WildcardIDs: make(map[uuid.UUID]struct{}),
	}

	if !opts.Wildcards.Enabled || len(rest) == 0 {
		return deck
	}

	n := int(math.Round(float64(len(intersection)) * opts.Wildcards.Intensity.WildcardPercent()))
	if n < 1 {
		n = 1
	}
	if n > len(rest) {
		n = len(rest)
	}

	rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	for _, mm := range rest[:n] {
		deck.Cards = append(deck.Cards, model.NewDeckCard(mm))
		deck.WildcardIDs[mm.ID] = struct{}{}
	}

	return deck
}
