package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/deck"
	"github.com/reelpick/core/internal/filter"
	"github.com/reelpick/core/internal/match"
	"github.com/reelpick/core/internal/model"
)

// initialBatchSize is how many cards each participant is dealt when the
// deck starts; everything after that arrives via request_cards.
const initialBatchSize = 5

// StartFiltering moves the room from lobby to filtering. Host only;
// anything else is a client/server race and is ignored.
func (r *Room) StartFiltering(callerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller := r.findLocked(callerID)
	if caller == nil || !caller.IsHost || r.phase != model.PhaseLobby {
		return
	}

	r.phase = model.PhaseFiltering
	r.broadcastLocked(Event{Type: EventFilteringStarted})
}

// SetDeckOptions replaces the room's weighting configuration. Host only and
// only before the deck is built.
func (r *Room) SetDeckOptions(callerID uuid.UUID, opts model.DeckOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller := r.findLocked(callerID)
	if caller == nil || !caller.IsHost || r.phase == model.PhaseSwiping {
		return
	}

	r.deckOptions = opts
	r.broadcastLocked(Event{Type: EventDeckOptionsChanged, Payload: DeckOptionsPayload{Options: opts}})
}

// SetReady stores the participant's filter and marks them ready. When the
// last participant readies up, the deck is built and the room transitions to
// swiping. The catalog snapshot is fetched before the room lock is taken.
func (r *Room) SetReady(ctx context.Context, participantID uuid.UUID, fs model.UserFilterState) {
	catalog, err := r.registry.catalog.Snapshot(ctx)
	if err != nil {
		r.registry.logger.Error("catalog snapshot failed", "code", r.code, "error", err)
		r.sendError(participantID, "catalog unavailable")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(participantID)
	if p == nil || r.phase != model.PhaseFiltering {
		return
	}

	r.filters[participantID] = fs
	r.ready[participantID] = struct{}{}

	r.broadcastExceptLocked(participantID, Event{
		Type:    EventUserReady,
		Payload: UserReadyPayload{ParticipantID: participantID},
	})
	r.sendOverlapLocked(catalog)

	if len(r.ready) == len(r.participants) {
		r.startDeckLocked(catalog)
	}
}

// SetUnready reverses readiness and clears the stored filter. Remaining
// ready participants get a recomputed overlap.
func (r *Room) SetUnready(ctx context.Context, participantID uuid.UUID) {
	catalog, err := r.registry.catalog.Snapshot(ctx)
	if err != nil {
		r.registry.logger.Error("catalog snapshot failed", "code", r.code, "error", err)
		catalog = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ready[participantID]; !ok || r.phase != model.PhaseFiltering {
		return
	}

	delete(r.ready, participantID)
	delete(r.filters, participantID)

	r.broadcastExceptLocked(participantID, Event{
		Type:    EventUserUnready,
		Payload: UserReadyPayload{ParticipantID: participantID},
	})
	if len(r.ready) > 0 && catalog != nil {
		r.sendOverlapLocked(catalog)
	}
}

// sendOverlapLocked counts the catalog items passing every currently-ready
// filter and tells every ready participant.
func (r *Room) sendOverlapLocked(catalog []model.MovieMeta) {
	filters := r.readyFiltersLocked()
	count := 0
	for _, mm := range catalog {
		if filter.PassesAll(mm, filters) {
			count++
		}
	}

	evt := Event{Type: EventOverlapCount, Payload: OverlapPayload{Count: count}}
	for _, p := range r.participants {
		if _, ok := r.ready[p.ID]; ok {
			p.send(evt)
		}
	}
}

func (r *Room) readyFiltersLocked() []model.UserFilterState {
	filters := make([]model.UserFilterState, 0, len(r.ready))
	for _, p := range r.participants {
		if _, ok := r.ready[p.ID]; ok {
			filters = append(filters, r.filters[p.ID])
		}
	}
	return filters
}

// startDeckLocked freezes the master candidate list, creates one probability
// pool per participant and deals the opening batch.
func (r *Room) startDeckLocked(catalog []model.MovieMeta) {
	master := deck.Build(catalog, r.readyFiltersLocked(), r.deckOptions, r.rng)

	cards := make(map[uuid.UUID]model.DeckCard, master.Size())
	for _, c := range master.Cards {
		cards[c.ID] = c
	}

	state := &swipingState{
		deck:        master,
		cards:       cards,
		pools:       make(map[uuid.UUID]*deck.Pool, len(r.participants)),
		resolver:    match.NewResolver(),
		status:      model.StatusSwiping,
		openMatches: make(map[uuid.UUID]struct{}),
		announced:   make(map[uuid.UUID]struct{}),
	}
	now := r.registry.now()
	for _, p := range r.participants {
		state.pools[p.ID] = deck.NewPool(master, r.deckOptions, now)
	}

	r.phase = model.PhaseSwiping
	r.swiping = state

	for _, p := range r.participants {
		batch := state.pools[p.ID].Sample(initialBatchSize, r.rng)
		p.send(Event{
			Type: EventDeckStarted,
			Payload: DeckStartedPayload{
				TotalSize:   master.Size(),
				Cards:       batch,
				SwipedSoFar: 0,
			},
		})
	}

	r.registry.logger.Info("deck started",
		"code", r.code,
		"size", master.Size(),
		"wildcards", len(master.WildcardIDs))
}

// Swipe records one verdict, propagates weight to every peer pool, and
// checks for a unanimous match or full exhaustion.
func (r *Room) Swipe(participantID, cardID uuid.UUID, dir model.SwipeDirection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.swiping
	if s == nil || s.status != model.StatusSwiping {
		return
	}
	pool := s.pools[participantID]
	if pool == nil {
		return
	}
	card, ok := s.cards[cardID]
	if !ok || !pool.MarkSwiped(cardID) {
		return
	}

	r.propagateWeightLocked(participantID, cardID, dir)

	count := s.resolver.RecordSwipe(card, participantID, dir)
	r.broadcastLocked(Event{
		Type:    EventSwipeProgress,
		Payload: SwipeProgressPayload{CardID: cardID, Count: count, Total: len(r.participants)},
	})

	if dir == model.SwipeRight && s.resolver.IsMatch(cardID, len(r.participants)) {
		s.openMatches[cardID] = struct{}{}
		s.announced[cardID] = struct{}{}
		r.broadcastLocked(Event{Type: EventMatchFound, Payload: MatchFoundPayload{Card: card}})
	}

	r.checkExhaustionLocked()
}

// propagateWeightLocked applies the swiper's verdict to every other
// participant's pool. The swiper's own pool never changes.
func (r *Room) propagateWeightLocked(swiperID, cardID uuid.UUID, dir model.SwipeDirection) {
	var delta float64
	switch dir {
	case model.SwipeRight:
		if !r.deckOptions.BoostLikedCards.Enabled {
			return
		}
		delta = r.deckOptions.BoostLikedCards.Intensity.Multiplier()
	case model.SwipeLeft:
		if !r.deckOptions.DemotePassedCards.Enabled {
			return
		}
		delta = -r.deckOptions.DemotePassedCards.Intensity.Multiplier()
	default:
		return
	}

	for id, pool := range r.swiping.pools {
		if id != swiperID {
			pool.AdjustWeight(cardID, delta)
		}
	}
}

// announceNewMatchesLocked surfaces cards that became unanimous because a
// departure shrank the roster; every live participant had already approved
// them, just never all at once until now.
func (r *Room) announceNewMatchesLocked() {
	s := r.swiping
	for _, cardID := range s.resolver.VotedCards() {
		if _, done := s.announced[cardID]; done {
			continue
		}
		if !s.resolver.IsMatch(cardID, len(r.participants)) {
			continue
		}
		s.openMatches[cardID] = struct{}{}
		s.announced[cardID] = struct{}{}
		r.broadcastLocked(Event{Type: EventMatchFound, Payload: MatchFoundPayload{Card: s.cards[cardID]}})
	}
}

// maybeStartDeck finishes a readiness quorum that a departure completed. The
// catalog snapshot is fetched outside the lock; the quorum is re-checked
// after, since anything may have happened in between.
func (r *Room) maybeStartDeck() {
	catalog, err := r.registry.catalog.Snapshot(context.Background())
	if err != nil {
		r.registry.logger.Error("catalog snapshot failed", "code", r.code, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhaseFiltering || len(r.participants) == 0 || len(r.ready) != len(r.participants) {
		return
	}
	r.startDeckLocked(catalog)
}

// checkExhaustionLocked ends the session with the ranked near-miss list once
// every participant's pool has nothing unseen and nothing pending. A match
// that is still awaiting select-or-dismiss keeps the session open.
func (r *Room) checkExhaustionLocked() {
	s := r.swiping
	if len(s.openMatches) > 0 {
		return
	}
	for _, pool := range s.pools {
		if !pool.Exhausted() {
			return
		}
	}

	s.status = model.StatusSessionEnded
	misses := s.resolver.NearMisses(len(r.participants))
	r.broadcastLocked(Event{Type: EventNoMatch, Payload: NoMatchPayload{NearMisses: misses}})
	r.registry.logger.Info("session exhausted", "code", r.code, "near_misses", len(misses))
}

// RequestCards serves another weighted batch to the caller. The count is
// clamped server-side regardless of what the client asked for.
func (r *Room) RequestCards(participantID uuid.UUID, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.swiping
	if s == nil || s.status != model.StatusSwiping {
		return
	}
	p := r.findLocked(participantID)
	pool := s.pools[participantID]
	if p == nil || pool == nil {
		return
	}

	batch := pool.Sample(count, r.rng)
	p.send(Event{Type: EventCardsServed, Payload: CardsServedPayload{Cards: batch}})
}

// SelectMatch locks in a matched card as the final choice. First select
// wins; later ones are no-ops.
func (r *Room) SelectMatch(participantID, cardID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.swiping
	if s == nil || s.status != model.StatusSwiping {
		return
	}
	p := r.findLocked(participantID)
	if p == nil || !s.resolver.IsMatch(cardID, len(r.participants)) {
		return
	}

	card := s.cards[cardID]
	s.status = model.StatusSessionEnded
	r.broadcastLocked(Event{
		Type:    EventSessionEnded,
		Payload: SessionEndedPayload{Card: &card, SelectedBy: p.Nickname},
	})
	r.registry.logger.Info("session ended", "code", r.code, "card", cardID, "selected_by", p.Nickname)
}

// RegretMatch dismisses the match popup for everyone without ending the
// session. The card stays matched in the bookkeeping but is never re-served.
func (r *Room) RegretMatch(participantID, cardID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.swiping
	if s == nil || s.status != model.StatusSwiping {
		return
	}
	if r.findLocked(participantID) == nil {
		return
	}

	delete(s.openMatches, cardID)
	r.broadcastLocked(Event{Type: EventMatchDismissed, Payload: MatchDismissedPayload{CardID: cardID}})
	r.checkExhaustionLocked()
}

func (r *Room) sendError(participantID uuid.UUID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.findLocked(participantID); p != nil {
		p.send(Event{Type: EventError, Payload: ErrorPayload{Message: message}})
	}
}
