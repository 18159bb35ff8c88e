package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpick/core/internal/model"
)

type fakeEndpoint struct {
	mu          sync.Mutex
	events      []Event
	closeReason string
}

func (f *fakeEndpoint) Send(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeEndpoint) CloseWithReason(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeReason = reason
}

func (f *fakeEndpoint) ofType(eventType string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, evt := range f.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func (f *fakeEndpoint) last(eventType string) (Event, bool) {
	matched := f.ofType(eventType)
	if len(matched) == 0 {
		return Event{}, false
	}
	return matched[len(matched)-1], true
}

func (f *fakeEndpoint) reason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeReason
}

type fakeCatalog struct {
	items []model.MovieMeta
	err   error
}

func (f *fakeCatalog) Snapshot(context.Context) ([]model.MovieMeta, error) {
	return f.items, f.err
}

func catalogOf(n int) []model.MovieMeta {
	items := make([]model.MovieMeta, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.MovieMeta{
			ID:     uuid.New(),
			Title:  "Movie",
			Year:   1980 + i,
			Genres: []string{"drama"},
		})
	}
	return items
}

func newTestRegistry(items []model.MovieMeta, cfg Config) *Registry {
	return New(&fakeCatalog{items: items}, cfg)
}

type RegistryUnitSuite struct {
	suite.Suite
}

func (s *RegistryUnitSuite) TestCreateRoom(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	ep := &fakeEndpoint{}
	welcome, err := reg.CreateRoom("alice", ep)
	require.NoError(t, err)

	t.WithNewStep("Code shape", func(sCtx provider.StepCtx) {
		assert.Len(t, welcome.Room.Code, 4)
		for _, r := range welcome.Room.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r))
		}
	})

	t.WithNewStep("Creator is host", func(sCtx provider.StepCtx) {
		require.Len(t, welcome.Room.Participants, 1)
		assert.Equal(t, welcome.You, welcome.Room.HostID)
		assert.True(t, welcome.Room.Participants[0].IsHost)
		assert.Equal(t, "alice", welcome.Room.Participants[0].Nickname)
	})

	t.WithNewStep("Lobby phase with default options", func(sCtx provider.StepCtx) {
		assert.Equal(t, model.PhaseLobby, welcome.Room.Phase)
		assert.Equal(t, model.DefaultDeckOptions(), welcome.Room.DeckOptions)
		assert.NotEqual(t, uuid.Nil, welcome.SessionToken)
	})
}

func (s *RegistryUnitSuite) TestNicknameValidation(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	_, err := reg.CreateRoom("a", &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrBadNickname)

	_, err = reg.CreateRoom("waaaaaaaytoolong", &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrBadNickname)

	_, err = reg.CreateRoom("   ", &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrBadNickname)

	// surrounding whitespace is trimmed, not rejected
	welcome, err := reg.CreateRoom("  bob  ", &fakeEndpoint{})
	require.NoError(t, err)
	assert.Equal(t, "bob", welcome.Room.Participants[0].Nickname)

	t.WithNewStep("Length counts runes, not bytes", func(sCtx provider.StepCtx) {
		accented, nickErr := reg.CreateRoom("héllo wörld", &fakeEndpoint{}) // 11 runes, 13 bytes
		require.NoError(t, nickErr)
		assert.Equal(t, "héllo wörld", accented.Room.Participants[0].Nickname)

		_, nickErr = reg.CreateRoom(strings.Repeat("é", 12), &fakeEndpoint{})
		assert.NoError(t, nickErr)

		_, nickErr = reg.CreateRoom(strings.Repeat("é", 13), &fakeEndpoint{})
		assert.ErrorIs(t, nickErr, ErrBadNickname)
	})
}

func (s *RegistryUnitSuite) TestJoinRoom(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	hostEP := &fakeEndpoint{}
	host, err := reg.CreateRoom("alice", hostEP)
	require.NoError(t, err)

	t.WithNewStep("Unknown code", func(sCtx provider.StepCtx) {
		_, joinErr := reg.JoinRoom("ZZZZ", "bob", &fakeEndpoint{})
		assert.ErrorIs(t, joinErr, ErrRoomNotFound)
	})

	t.WithNewStep("Successful join notifies existing members", func(sCtx provider.StepCtx) {
		guest, joinErr := reg.JoinRoom(host.Room.Code, "bob", &fakeEndpoint{})
		require.NoError(t, joinErr)
		assert.Len(t, guest.Room.Participants, 2)
		assert.False(t, guest.Room.Participants[1].IsHost)

		evt, ok := hostEP.last(EventUserJoined)
		require.True(t, ok)
		assert.Equal(t, "bob", evt.Payload.(UserJoinedPayload).Participant.Nickname)
	})
}

func (s *RegistryUnitSuite) TestJoinRoomCapacity(t provider.T) {
	reg := newTestRegistry(catalogOf(5), Config{Capacity: 2, GracePeriod: time.Minute})

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	_, err = reg.JoinRoom(host.Room.Code, "bob", &fakeEndpoint{})
	require.NoError(t, err)

	_, err = reg.JoinRoom(host.Room.Code, "carol", &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func (s *RegistryUnitSuite) TestNicknameDedup(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	host, err := reg.CreateRoom("sam", &fakeEndpoint{})
	require.NoError(t, err)

	second, err := reg.JoinRoom(host.Room.Code, "sam", &fakeEndpoint{})
	require.NoError(t, err)
	assert.Equal(t, "sam2", second.Room.Participants[1].Nickname)

	third, err := reg.JoinRoom(host.Room.Code, "sam", &fakeEndpoint{})
	require.NoError(t, err)
	assert.Equal(t, "sam3", third.Room.Participants[2].Nickname)
}

func (s *RegistryUnitSuite) TestLeaveTransfersHost(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)
	require.NotNil(t, room)

	bobEP := &fakeEndpoint{}
	bob, err := reg.JoinRoom(host.Room.Code, "bob", bobEP)
	require.NoError(t, err)
	carolEP := &fakeEndpoint{}
	_, err = reg.JoinRoom(host.Room.Code, "carol", carolEP)
	require.NoError(t, err)

	reg.Leave(room, host.You)

	t.WithNewStep("Earliest remaining joiner becomes host", func(sCtx provider.StepCtx) {
		snap := room.Snapshot()
		require.Len(t, snap.Participants, 2)
		assert.Equal(t, bob.You, snap.HostID)
		assert.True(t, snap.Participants[0].IsHost)
	})

	t.WithNewStep("Departure and transfer are broadcast", func(sCtx provider.StepCtx) {
		left, ok := carolEP.last(EventUserLeft)
		require.True(t, ok)
		payload := left.Payload.(UserLeftPayload)
		assert.Equal(t, host.You, payload.ParticipantID)
		require.NotNil(t, payload.NewHostID)
		assert.Equal(t, bob.You, *payload.NewHostID)

		changed, ok := carolEP.last(EventHostChanged)
		require.True(t, ok)
		assert.Equal(t, bob.You, changed.Payload.(HostChangedPayload).HostID)
	})
}

func (s *RegistryUnitSuite) TestLastLeaveDestroysRoom(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)

	reg.Leave(room, host.You)

	assert.Nil(t, reg.Room(host.Room.Code))

	// the invalidated token can no longer reconnect
	_, _, err = reg.Reconnect(host.SessionToken, &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func (s *RegistryUnitSuite) TestKick(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)

	bobEP := &fakeEndpoint{}
	bob, err := reg.JoinRoom(host.Room.Code, "bob", bobEP)
	require.NoError(t, err)

	t.WithNewStep("Non-host caller is ignored", func(sCtx provider.StepCtx) {
		reg.Kick(room, bob.You, host.You)
		assert.Len(t, room.Snapshot().Participants, 2)
	})

	t.WithNewStep("Self-kick is ignored", func(sCtx provider.StepCtx) {
		reg.Kick(room, host.You, host.You)
		assert.Len(t, room.Snapshot().Participants, 2)
	})

	t.WithNewStep("Host kick closes the target with a reason", func(sCtx provider.StepCtx) {
		reg.Kick(room, host.You, bob.You)
		snap := room.Snapshot()
		require.Len(t, snap.Participants, 1)
		assert.Equal(t, host.You, snap.HostID)
		assert.Equal(t, kickReason, bobEP.reason())
	})

	t.WithNewStep("Kicked token cannot reconnect", func(sCtx provider.StepCtx) {
		_, _, reconnectErr := reg.Reconnect(bob.SessionToken, &fakeEndpoint{})
		assert.ErrorIs(t, reconnectErr, ErrSessionExpired)
	})
}

func (s *RegistryUnitSuite) TestDisconnectReconnect(t provider.T) {
	reg := newTestRegistry(catalogOf(5), DefaultConfig())

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)

	bobEP := &fakeEndpoint{}
	_, err = reg.JoinRoom(host.Room.Code, "bob", bobEP)
	require.NoError(t, err)

	before := room.Snapshot()
	reg.HandleDisconnect(room, host.You)

	t.WithNewStep("Disconnected participant stays, flagged reconnecting", func(sCtx provider.StepCtx) {
		snap := room.Snapshot()
		require.Len(t, snap.Participants, 2)
		assert.Equal(t, model.StatusReconnecting, snap.Participants[0].Status)
		assert.Equal(t, host.You, snap.HostID)

		evt, ok := bobEP.last(EventUserStatusChanged)
		require.True(t, ok)
		assert.Equal(t, model.StatusReconnecting, evt.Payload.(UserStatusPayload).Status)
	})

	t.WithNewStep("Reconnect restores the exact roster", func(sCtx provider.StepCtx) {
		welcome, replay, reconnectErr := reg.Reconnect(host.SessionToken, &fakeEndpoint{})
		require.NoError(t, reconnectErr)
		assert.Equal(t, host.You, welcome.You)
		assert.Equal(t, host.SessionToken, welcome.SessionToken)
		assert.Equal(t, before, welcome.Room)
		assert.Nil(t, replay) // nothing to replay in the lobby

		evt, ok := bobEP.last(EventUserStatusChanged)
		require.True(t, ok)
		assert.Equal(t, model.StatusConnected, evt.Payload.(UserStatusPayload).Status)
	})

	t.WithNewStep("Unknown token is rejected", func(sCtx provider.StepCtx) {
		_, _, reconnectErr := reg.Reconnect(uuid.New(), &fakeEndpoint{})
		assert.ErrorIs(t, reconnectErr, ErrSessionExpired)
	})
}

func (s *RegistryUnitSuite) TestGraceExpiry(t provider.T) {
	reg := newTestRegistry(catalogOf(5), Config{Capacity: 4, GracePeriod: 20 * time.Millisecond})

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)
	_, err = reg.JoinRoom(host.Room.Code, "bob", &fakeEndpoint{})
	require.NoError(t, err)

	reg.HandleDisconnect(room, host.You)

	assert.Eventually(t, func() bool {
		return len(room.Snapshot().Participants) == 1
	}, time.Second, 5*time.Millisecond)

	_, _, err = reg.Reconnect(host.SessionToken, &fakeEndpoint{})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

// A reconnect that the registry accepted must never be undone by a grace
// timer that fired concurrently. Each round races the two and verifies the
// accepted reconnect held.
func (s *RegistryUnitSuite) TestAcceptedReconnectSurvivesExpiry(t provider.T) {
	reg := newTestRegistry(catalogOf(3), Config{Capacity: 4, GracePeriod: 2 * time.Millisecond})

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)

	bob, err := reg.JoinRoom(host.Room.Code, "bob", &fakeEndpoint{})
	require.NoError(t, err)
	token, id := bob.SessionToken, bob.You

	for i := 0; i < 100; i++ {
		reg.HandleDisconnect(room, id)
		time.Sleep(2 * time.Millisecond)

		_, _, reconnectErr := reg.Reconnect(token, &fakeEndpoint{})
		if reconnectErr != nil {
			// the timer legitimately won this round; rejoin and race again
			w, joinErr := reg.JoinRoom(host.Room.Code, "bob", &fakeEndpoint{})
			require.NoError(t, joinErr)
			token, id = w.SessionToken, w.You
			continue
		}

		time.Sleep(10 * time.Millisecond) // let any stale timer callback run

		found := false
		for _, p := range room.Snapshot().Participants {
			if p.ID == id {
				found = true
			}
		}
		require.True(t, found)
	}
}

func (s *RegistryUnitSuite) TestReconnectBeatsGraceTimer(t provider.T) {
	reg := newTestRegistry(catalogOf(5), Config{Capacity: 4, GracePeriod: 30 * time.Millisecond})

	host, err := reg.CreateRoom("alice", &fakeEndpoint{})
	require.NoError(t, err)
	room := reg.Room(host.Room.Code)

	reg.HandleDisconnect(room, host.You)
	_, _, err = reg.Reconnect(host.SessionToken, &fakeEndpoint{})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, room.Snapshot().Participants, 1)
}

func TestRegistryUnitSuite(t *testing.T) {
	t.Parallel()
	suite.RunSuite(t, new(RegistryUnitSuite))
}
