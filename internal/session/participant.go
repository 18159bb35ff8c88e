package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
)

// Participant is one user inside a room. The endpoint is a mutable, nullable
// handle to their current transport: nulled on disconnect, restored on
// reconnect. The participant record itself survives until grace expiry,
// explicit leave or kick.
type Participant struct {
	ID             uuid.UUID
	Nickname       string
	SessionToken   uuid.UUID
	IsHost         bool
	Status         model.ConnectionStatus
	DisconnectedAt *time.Time

	endpoint Endpoint

	// grace timer bookkeeping; the generation counter makes a stale
	// AfterFunc firing after cancel or reconnect a no-op
	graceTimer *time.Timer
	graceGen   int64
}

func newParticipant(nickname string, ep Endpoint) *Participant {
	return &Participant{
		ID:           uuid.New(),
		Nickname:     nickname,
		SessionToken: uuid.New(),
		Status:       model.StatusConnected,
		endpoint:     ep,
	}
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		ID:       p.ID,
		Nickname: p.Nickname,
		IsHost:   p.IsHost,
		Status:   p.Status,
	}
}

func (p *Participant) send(evt Event) {
	if p.endpoint != nil {
		p.endpoint.Send(evt)
	}
}

func (p *Participant) cancelGraceLocked() {
	p.graceGen++
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
}
