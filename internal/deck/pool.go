package deck

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
)

const (
	// MinWeight keeps sampling well-defined no matter how many demotions land.
	MinWeight = 0.01

	minBatch = 1
	maxBatch = 10

	weightEpoch = 1950
	oneYear     = 365 * 24 * time.Hour
)

type cardState int

const (
	stateUnseen cardState = iota
	stateServed
	stateSwiped
)

type entry struct {
	card          model.DeckCard
	baseWeight    float64
	dynamicWeight float64
	wildcard      bool
	state         cardState
}

// Pool is one participant's private partition of the master deck into
// unseen / served / swiped, with per-card sampling weights. Every master
// card lives in exactly one partition at all times; a card never returns
// to unseen once served.
type Pool struct {
	entries map[uuid.UUID]*entry
	unseen  []uuid.UUID // master order, shrinks as cards are served
	served  []uuid.UUID // serve order
	swiped  int
}

// NewPool builds an entirely-unseen pool over the master deck. Base weight
// starts at 1.0 and accumulates recencyFactor × intensityMultiplier for each
// enabled boost; the dynamic weight starts equal to the base and is the one
// peers later mutate.
func NewPool(d MasterDeck, opts model.DeckOptions, now time.Time) *Pool {
	p := &Pool{
		entries: make(map[uuid.UUID]*entry, len(d.Cards)),
		unseen:  make([]uuid.UUID, 0, len(d.Cards)),
	}
	for _, card := range d.Cards {
		w := baseWeight(card, opts, now)
		p.entries[card.ID] = &entry{
			card:          card,
			baseWeight:    w,
			dynamicWeight: w,
			wildcard:      d.IsWildcard(card.ID),
			state:         stateUnseen,
		}
		p.unseen = append(p.unseen, card.ID)
	}
	return p
}

func baseWeight(card model.DeckCard, opts model.DeckOptions, now time.Time) float64 {
	w := 1.0
	if opts.BoostNewReleases.Enabled {
		span := float64(now.Year() - weightEpoch)
		if span > 0 {
			recency := clamp01(float64(card.Year-weightEpoch) / span)
			w += recency * opts.BoostNewReleases.Intensity.Multiplier()
		}
	}
	if opts.BoostRecentlyAdded.Enabled {
		age := now.Sub(card.AddedAt)
		recency := clamp01(1 - float64(age)/float64(oneYear))
		w += recency * opts.BoostRecentlyAdded.Intensity.Multiplier()
	}
	if w < MinWeight {
		w = MinWeight
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Sample draws up to count cards from unseen, weighted and without
// replacement, moving each draw into served. Count is clamped to [1, 10]
// server-side regardless of what the client asked for. Each draw walks the
// remaining candidates subtracting weights from a uniform cursor, so heavier
// entries are more likely but nothing is rank-stable.
func (p *Pool) Sample(count int, rng *rand.Rand) []model.DeckCard {
	if count < minBatch {
		count = minBatch
	}
	if count > maxBatch {
		count = maxBatch
	}

	batch := make([]model.DeckCard, 0, count)
	for len(batch) < count && len(p.unseen) > 0 {
		total := 0.0
		for _, id := range p.unseen {
			total += p.entries[id].dynamicWeight
		}

		cursor := rng.Float64() * total
		picked := len(p.unseen) - 1
		for i, id := range p.unseen {
			cursor -= p.entries[id].dynamicWeight
			if cursor <= 0 {
				picked = i
				break
			}
		}

		id := p.unseen[picked]
		p.unseen = append(p.unseen[:picked], p.unseen[picked+1:]...)
		e := p.entries[id]
		e.state = stateServed
		p.served = append(p.served, id)
		batch = append(batch, e.card)
	}
	return batch
}

// MarkSwiped records this participant's verdict on a served card. Swipes on
// cards that were never served (or were already swiped) are client/server
// races and are ignored.
func (p *Pool) MarkSwiped(id uuid.UUID) bool {
	e, ok := p.entries[id]
	if !ok || e.state != stateServed {
		return false
	}
	e.state = stateSwiped
	for i, sid := range p.served {
		if sid == id {
			p.served = append(p.served[:i], p.served[i+1:]...)
			break
		}
	}
	p.swiped++
	return true
}

// AdjustWeight shifts a card's dynamic weight by delta, floored at MinWeight.
// Only unseen cards react; a card already queued on this participant's client
// cannot retroactively change priority.
func (p *Pool) AdjustWeight(id uuid.UUID, delta float64) {
	e, ok := p.entries[id]
	if !ok || e.state != stateUnseen {
		return
	}
	e.dynamicWeight += delta
	if e.dynamicWeight < MinWeight {
		e.dynamicWeight = MinWeight
	}
}

// Served returns the cards sent to this participant still awaiting a verdict,
// in serve order.
func (p *Pool) Served() []model.DeckCard {
	out := make([]model.DeckCard, 0, len(p.served))
	for _, id := range p.served {
		out = append(out, p.entries[id].card)
	}
	return out
}

func (p *Pool) UnseenCount() int { return len(p.unseen) }
func (p *Pool) ServedCount() int { return len(p.served) }
func (p *Pool) SwipedCount() int { return p.swiped }

// Exhausted reports whether this participant has nothing left to see or
// decide on.
func (p *Pool) Exhausted() bool {
	return len(p.unseen) == 0 && len(p.served) == 0
}

// IsUnseen reports whether the card is still in the unseen partition.
func (p *Pool) IsUnseen(id uuid.UUID) bool {
	e, ok := p.entries[id]
	return ok && e.state == stateUnseen
}

// Weight exposes a card's current dynamic weight, 0 if unknown.
func (p *Pool) Weight(id uuid.UUID) float64 {
	if e, ok := p.entries[id]; ok {
		return e.dynamicWeight
	}
	return 0
}

// BaseWeight exposes a card's fixed creation-time weight, 0 if unknown.
func (p *Pool) BaseWeight(id uuid.UUID) float64 {
	if e, ok := p.entries[id]; ok {
		return e.baseWeight
	}
	return 0
}
