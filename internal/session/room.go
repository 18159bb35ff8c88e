package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/deck"
	"github.com/reelpick/core/internal/match"
	"github.com/reelpick/core/internal/model"
)

const kickReason = "removed by host"

// Room is one isolated multiplayer session. All state mutation happens under
// mu; cross-pool weight propagation reads and writes every pool inside one
// critical section, which is why the lock is room-wide.
type Room struct {
	mu       sync.Mutex
	code     string
	registry *Registry

	participants []*Participant // insertion order; index 0 wins host transfer
	phase        model.Phase
	deckOptions  model.DeckOptions
	filters      map[uuid.UUID]model.UserFilterState
	ready        map[uuid.UUID]struct{}

	// non-nil only while phase == swiping, so pools without a built deck
	// are unrepresentable
	swiping *swipingState

	rng    *rand.Rand
	closed bool
}

type swipingState struct {
	deck     deck.MasterDeck
	cards    map[uuid.UUID]model.DeckCard
	pools    map[uuid.UUID]*deck.Pool
	resolver *match.Resolver
	status   model.SessionStatus

	// matches found but neither selected nor dismissed yet; a non-empty
	// set holds off the exhaustion verdict
	openMatches map[uuid.UUID]struct{}

	// every match ever broadcast, so a departure-driven re-check never
	// announces the same card twice
	announced map[uuid.UUID]struct{}
}

func newRoom(code string, registry *Registry) *Room {
	return &Room{
		code:        code,
		registry:    registry,
		phase:       model.PhaseLobby,
		deckOptions: model.DefaultDeckOptions(),
		filters:     make(map[uuid.UUID]model.UserFilterState),
		ready:       make(map[uuid.UUID]struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Room) Code() string { return r.code }

// Snapshot returns the room as clients see it.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() RoomSnapshot {
	infos := make([]ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		infos = append(infos, p.Info())
	}
	return RoomSnapshot{
		Code:         r.code,
		HostID:       r.hostIDLocked(),
		Phase:        r.phase,
		Participants: infos,
		DeckOptions:  r.deckOptions,
	}
}

func (r *Room) hostIDLocked() uuid.UUID {
	for _, p := range r.participants {
		if p.IsHost {
			return p.ID
		}
	}
	return uuid.Nil
}

func (r *Room) findLocked(id uuid.UUID) *Participant {
	for _, p := range r.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) broadcastLocked(evt Event) {
	for _, p := range r.participants {
		p.send(evt)
	}
}

func (r *Room) broadcastExceptLocked(id uuid.UUID, evt Event) {
	for _, p := range r.participants {
		if p.ID != id {
			p.send(evt)
		}
	}
}

func (r *Room) join(nickname string, ep Endpoint, capacity int) (*Participant, RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, RoomSnapshot{}, ErrRoomNotFound
	}
	if len(r.participants) >= capacity {
		return nil, RoomSnapshot{}, ErrRoomFull
	}

	p := newParticipant(r.dedupeNicknameLocked(nickname), ep)
	r.broadcastLocked(Event{Type: EventUserJoined, Payload: UserJoinedPayload{Participant: p.Info()}})
	r.participants = append(r.participants, p)

	return p, r.snapshotLocked(), nil
}

// dedupeNicknameLocked resolves collisions by appending the smallest unused
// numeric suffix, falling back to a timestamp-derived one.
func (r *Room) dedupeNicknameLocked(nickname string) string {
	if !r.nicknameTakenLocked(nickname) {
		return nickname
	}
	for suffix := 2; suffix <= len(r.participants)+2; suffix++ {
		candidate := fmt.Sprintf("%s%d", nickname, suffix)
		if !r.nicknameTakenLocked(candidate) {
			return candidate
		}
	}
	return fmt.Sprintf("%s%d", nickname, r.registry.now().UnixMilli()%100000)
}

func (r *Room) nicknameTakenLocked(nickname string) bool {
	for _, p := range r.participants {
		if p.Nickname == nickname {
			return true
		}
	}
	return false
}

// remove takes a participant out immediately. closeReason, when non-empty,
// is delivered to the target before their connection is dropped.
func (r *Room) remove(id uuid.UUID, closeReason string) {
	r.mu.Lock()
	token, empty, deckPending, ok := r.removeLocked(id, closeReason)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.finishRemoval(id, token, empty, deckPending)
}

// removeLocked takes the participant out of every room structure and
// broadcasts the departure. Registry bookkeeping and the deferred deck start
// need the lock released first; the caller runs finishRemoval for those.
func (r *Room) removeLocked(id uuid.UUID, closeReason string) (token uuid.UUID, empty, deckPending, ok bool) {
	p := r.findLocked(id)
	if p == nil {
		return uuid.Nil, false, false, false
	}

	p.cancelGraceLocked()
	if closeReason != "" && p.endpoint != nil {
		p.endpoint.CloseWithReason(closeReason)
	}

	for i, q := range r.participants {
		if q.ID == id {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			break
		}
	}
	delete(r.filters, id)
	delete(r.ready, id)
	if r.swiping != nil {
		delete(r.swiping.pools, id)
		r.swiping.resolver.DropVoter(id)
	}

	var newHost *uuid.UUID
	if p.IsHost && len(r.participants) > 0 {
		next := r.participants[0]
		next.IsHost = true
		newHost = &next.ID
	}

	r.broadcastLocked(Event{Type: EventUserLeft, Payload: UserLeftPayload{ParticipantID: id, NewHostID: newHost}})
	if newHost != nil {
		r.broadcastLocked(Event{Type: EventHostChanged, Payload: HostChangedPayload{HostID: *newHost}})
	}

	// a smaller roster can turn pending approvals unanimous, or leave
	// every remaining pool drained
	if r.swiping != nil && r.swiping.status == model.StatusSwiping && len(r.participants) > 0 {
		r.announceNewMatchesLocked()
		r.checkExhaustionLocked()
	}

	// the departed may have been the last not-ready participant; the deck
	// build needs a catalog snapshot, fetched outside the lock
	deckPending = r.phase == model.PhaseFiltering &&
		len(r.participants) > 0 && len(r.ready) == len(r.participants)

	empty = len(r.participants) == 0
	if empty {
		r.closed = true
	}
	return p.SessionToken, empty, deckPending, true
}

func (r *Room) finishRemoval(id, token uuid.UUID, empty, deckPending bool) {
	r.registry.dropParticipant(r, token, empty)
	r.registry.logger.Info("participant removed", "code", r.code, "participant", id)

	if deckPending {
		r.maybeStartDeck()
	}
}

func (r *Room) kick(callerID, targetID uuid.UUID) {
	r.mu.Lock()
	caller := r.findLocked(callerID)
	target := r.findLocked(targetID)
	if caller == nil || !caller.IsHost || target == nil || callerID == targetID {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.remove(targetID, kickReason)
}

// disconnect keeps the participant but nulls their endpoint and arms the
// grace timer. Reconnection and expiry race on this record; the generation
// counter keeps them mutually exclusive.
func (r *Room) disconnect(id uuid.UUID, grace time.Duration) {
	r.mu.Lock()
	p := r.findLocked(id)
	if p == nil || p.Status == model.StatusReconnecting {
		r.mu.Unlock()
		return
	}

	now := r.registry.now()
	p.Status = model.StatusReconnecting
	p.DisconnectedAt = &now
	p.endpoint = nil

	p.cancelGraceLocked()
	gen := p.graceGen
	p.graceTimer = time.AfterFunc(grace, func() {
		r.expireGrace(id, gen)
	})

	r.broadcastExceptLocked(id, Event{
		Type:    EventUserStatusChanged,
		Payload: UserStatusPayload{ParticipantID: id, Status: model.StatusReconnecting},
	})
	r.mu.Unlock()

	r.registry.logger.Info("participant disconnected", "code", r.code, "participant", id)
}

// expireGrace validates the timer generation and removes the participant in
// one critical section, so a reconnect landing between the check and the
// removal is impossible.
func (r *Room) expireGrace(id uuid.UUID, gen int64) {
	r.mu.Lock()
	p := r.findLocked(id)
	if p == nil || p.graceGen != gen || p.Status != model.StatusReconnecting {
		r.mu.Unlock()
		return
	}
	token, empty, deckPending, ok := r.removeLocked(id, "")
	r.mu.Unlock()
	if !ok {
		return
	}

	r.registry.logger.Info("grace period expired", "code", r.code, "participant", id)
	r.finishRemoval(id, token, empty, deckPending)
}

func (r *Room) reconnect(id uuid.UUID, ep Endpoint) (Welcome, []Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(id)
	if p == nil || p.Status != model.StatusReconnecting {
		return Welcome{}, nil, ErrSessionExpired
	}

	p.cancelGraceLocked()
	p.Status = model.StatusConnected
	p.DisconnectedAt = nil
	p.endpoint = ep

	r.broadcastExceptLocked(id, Event{
		Type:    EventUserStatusChanged,
		Payload: UserStatusPayload{ParticipantID: id, Status: model.StatusConnected},
	})

	return Welcome{
		Room:         r.snapshotLocked(),
		You:          p.ID,
		SessionToken: p.SessionToken,
	}, r.replayLocked(p), nil
}

// replayLocked reconstructs the event sequence a rejoining client needs to
// resume mid-phase without server-side event history. The deck replay
// carries only this participant's served cards, so the visible queue matches
// server truth exactly.
func (r *Room) replayLocked(p *Participant) []Event {
	if r.phase == model.PhaseLobby {
		return nil
	}

	replay := []Event{{Type: EventFilteringStarted}}
	for _, q := range r.participants {
		if _, ok := r.ready[q.ID]; ok {
			replay = append(replay, Event{
				Type:    EventUserReady,
				Payload: UserReadyPayload{ParticipantID: q.ID},
			})
		}
	}

	if r.phase == model.PhaseSwiping && r.swiping != nil {
		if pool := r.swiping.pools[p.ID]; pool != nil {
			replay = append(replay, Event{
				Type: EventDeckStarted,
				Payload: DeckStartedPayload{
					TotalSize:   r.swiping.deck.Size(),
					Cards:       pool.Served(),
					SwipedSoFar: pool.SwipedCount(),
				},
			})
		}
	}
	return replay
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, p := range r.participants {
		p.cancelGraceLocked()
	}
	r.participants = nil
}
