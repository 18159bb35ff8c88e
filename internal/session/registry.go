package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
)

var (
	ErrBadNickname    = errors.New("nickname must be 2-12 characters")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrSessionExpired = errors.New("session expired")

	// ErrNoFreeCodes means repeated collisions exhausted the retry limit.
	// The code space is large enough that this signals outside-of-design
	// load, so the operation aborts instead of degrading.
	ErrNoFreeCodes = errors.New("no free room codes")
)

const (
	// 30-symbol alphabet, ambiguous glyphs excluded
	codeAlphabet = "ABCDEFGHJKMNPRSTUVWXYZ23456789"
	codeLen      = 4
	codeRetries  = 10

	minNickname = 2
	maxNickname = 12
)

// CatalogProvider is the read-only collaborator the engine consumes. The
// snapshot may be stale; the engine never asks for a refresh.
type CatalogProvider interface {
	Snapshot(ctx context.Context) ([]model.MovieMeta, error)
}

type Config struct {
	Capacity    int
	GracePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:    4,
		GracePeriod: 30 * time.Second,
	}
}

// Registry owns every live room, the session-token index and the grace
// timers. It is constructed once at process start and passed by reference;
// there is no free-floating module state.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	tokens map[uuid.UUID]*binding

	catalog CatalogProvider
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

type binding struct {
	room          *Room
	participantID uuid.UUID
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(catalog CatalogProvider, cfg Config, opts ...Option) *Registry {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}

	r := &Registry{
		rooms:   make(map[string]*Room),
		tokens:  make(map[uuid.UUID]*binding),
		catalog: catalog,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom allocates a fresh room with the caller as host.
func (r *Registry) CreateRoom(nickname string, ep Endpoint) (Welcome, error) {
	nickname, err := validateNickname(nickname)
	if err != nil {
		return Welcome{}, err
	}

	host := newParticipant(nickname, ep)
	host.IsHost = true

	r.mu.Lock()
	code, err := r.allocateCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return Welcome{}, err
	}
	room := newRoom(code, r)
	room.participants = append(room.participants, host)
	r.rooms[code] = room
	r.tokens[host.SessionToken] = &binding{room: room, participantID: host.ID}
	r.mu.Unlock()

	r.logger.Info("room created", "code", code, "host", host.Nickname)

	return Welcome{
		Room:         room.Snapshot(),
		You:          host.ID,
		SessionToken: host.SessionToken,
	}, nil
}

// JoinRoom adds a participant to an existing room, deduplicating the
// nickname within it.
func (r *Registry) JoinRoom(code, nickname string, ep Endpoint) (Welcome, error) {
	nickname, err := validateNickname(nickname)
	if err != nil {
		return Welcome{}, err
	}

	room := r.lookup(code)
	if room == nil {
		return Welcome{}, ErrRoomNotFound
	}

	p, snap, err := room.join(nickname, ep, r.cfg.Capacity)
	if err != nil {
		return Welcome{}, err
	}

	r.mu.Lock()
	r.tokens[p.SessionToken] = &binding{room: room, participantID: p.ID}
	r.mu.Unlock()

	r.logger.Info("participant joined", "code", code, "nickname", p.Nickname)

	return Welcome{Room: snap, You: p.ID, SessionToken: p.SessionToken}, nil
}

// Reconnect rebinds a live connection to a participant still inside their
// grace period and synthesizes the replay the client needs to resume
// mid-phase.
func (r *Registry) Reconnect(token uuid.UUID, ep Endpoint) (Welcome, []Event, error) {
	r.mu.Lock()
	b := r.tokens[token]
	r.mu.Unlock()
	if b == nil {
		return Welcome{}, nil, ErrSessionExpired
	}

	welcome, replay, err := b.room.reconnect(b.participantID, ep)
	if err != nil {
		return Welcome{}, nil, err
	}

	r.logger.Info("participant reconnected", "code", b.room.code, "participant", b.participantID)
	return welcome, replay, nil
}

// Leave removes the participant immediately, with host transfer and room
// destruction as needed. Safe to call for rooms or participants that no
// longer exist.
func (r *Registry) Leave(room *Room, participantID uuid.UUID) {
	if room == nil {
		return
	}
	room.remove(participantID, "")
}

// Kick forcibly closes the target's connection with a displayable reason and
// removes them. Only the host may kick; anything else is ignored.
func (r *Registry) Kick(room *Room, callerID, targetID uuid.UUID) {
	if room == nil {
		return
	}
	room.kick(callerID, targetID)
}

// HandleDisconnect marks the participant reconnecting and arms their grace
// timer. The participant record stays; only the endpoint is nulled.
func (r *Registry) HandleDisconnect(room *Room, participantID uuid.UUID) {
	if room == nil {
		return
	}
	room.disconnect(participantID, r.cfg.GracePeriod)
}

// Room returns the live room for a code, nil when absent.
func (r *Registry) Room(code string) *Room {
	return r.lookup(code)
}

// Close tears the registry down: every grace timer is cancelled and all
// rooms are dropped.
func (r *Registry) Close() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.rooms = make(map[string]*Room)
	r.tokens = make(map[uuid.UUID]*binding)
	r.mu.Unlock()

	for _, room := range rooms {
		room.close()
	}
}

func (r *Registry) lookup(code string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[code]
}

func (r *Registry) allocateCodeLocked() (string, error) {
	for i := 0; i < codeRetries; i++ {
		code := buildRoomCode()
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrNoFreeCodes
}

func buildRoomCode() string {
	var builder strings.Builder
	builder.Grow(codeLen)
	for i := 0; i < codeLen; i++ {
		builder.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return builder.String()
}

// dropParticipant invalidates the session token and destroys the room when
// it emptied out. Called by the room after a permanent removal.
func (r *Registry) dropParticipant(room *Room, token uuid.UUID, roomEmpty bool) {
	r.mu.Lock()
	delete(r.tokens, token)
	if roomEmpty {
		delete(r.rooms, room.code)
	}
	r.mu.Unlock()

	if roomEmpty {
		r.logger.Info("room destroyed", "code", room.code)
	}
}

func validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n < minNickname || n > maxNickname {
		return "", ErrBadNickname
	}
	return nickname, nil
}
