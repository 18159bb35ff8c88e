package ws_session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reelpick/core/internal/model"
	"github.com/reelpick/core/internal/session"
)

const (
	ActionCreateRoom     = "create_room"
	ActionJoinRoom       = "join_room"
	ActionLeaveRoom      = "leave_room"
	ActionKickUser       = "kick_user"
	ActionReconnect      = "reconnect"
	ActionStartFiltering = "start_filtering"
	ActionSetReady       = "set_ready"
	ActionSetUnready     = "set_unready"
	ActionSetDeckOptions = "set_deck_options"
	ActionSwipe          = "swipe"
	ActionRequestCards   = "request_cards"
	ActionSelectMatch    = "select_match"
	ActionRegretMatch    = "regret_match"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher owns the inbound side of the protocol: it parses frames, routes
// them into the session registry and keeps the socket's room binding.
type Dispatcher struct {
	registry *session.Registry
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func New(registry *session.Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleConn runs the connection until it drops. A drop with a live binding
// starts the participant's reconnection grace period instead of removing
// them.
func (d *Dispatcher) HandleConn(conn *websocket.Conn) {
	client := newClient(conn, d.logger)
	go client.writePump()

	defer func() {
		room, id, bound := client.binding()
		if bound && !client.wasRemoved() {
			d.registry.HandleDisconnect(room, id)
		}
		client.shutdown()
		conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var evt inbound
		if err := json.Unmarshal(frame, &evt); err != nil {
			d.sendError(client, "malformed event")
			continue
		}
		d.route(client, evt)
	}
}

func (d *Dispatcher) route(client *Client, evt inbound) {
	switch evt.Type {
	case ActionCreateRoom:
		d.createRoom(client, evt.Payload)
	case ActionJoinRoom:
		d.joinRoom(client, evt.Payload)
	case ActionReconnect:
		d.reconnect(client, evt.Payload)
	case ActionLeaveRoom:
		d.leaveRoom(client)
	case ActionKickUser:
		d.kickUser(client, evt.Payload)
	case ActionStartFiltering:
		if room, id, ok := client.binding(); ok {
			room.StartFiltering(id)
		}
	case ActionSetReady:
		d.setReady(client, evt.Payload)
	case ActionSetUnready:
		if room, id, ok := client.binding(); ok {
			room.SetUnready(context.Background(), id)
		}
	case ActionSetDeckOptions:
		d.setDeckOptions(client, evt.Payload)
	case ActionSwipe:
		d.swipe(client, evt.Payload)
	case ActionRequestCards:
		d.requestCards(client, evt.Payload)
	case ActionSelectMatch:
		d.selectMatch(client, evt.Payload)
	case ActionRegretMatch:
		d.regretMatch(client, evt.Payload)
	default:
		d.sendError(client, "unknown event type")
	}
}

func (d *Dispatcher) createRoom(client *Client, payload json.RawMessage) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}

	welcome, err := d.registry.CreateRoom(req.Nickname, client)
	if err != nil {
		d.sendError(client, err.Error())
		return
	}

	client.bind(d.registry.Room(welcome.Room.Code), welcome.You)
	client.Send(session.Event{Type: session.EventRoomCreated, Payload: welcome})
}

func (d *Dispatcher) joinRoom(client *Client, payload json.RawMessage) {
	var req struct {
		Code     string `json:"code"`
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}

	welcome, err := d.registry.JoinRoom(req.Code, req.Nickname, client)
	if err != nil {
		d.sendError(client, err.Error())
		return
	}

	client.bind(d.registry.Room(welcome.Room.Code), welcome.You)
	client.Send(session.Event{Type: session.EventRoomJoined, Payload: welcome})
}

func (d *Dispatcher) reconnect(client *Client, payload json.RawMessage) {
	var req struct {
		SessionToken uuid.UUID `json:"session_token"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}

	welcome, replay, err := d.registry.Reconnect(req.SessionToken, client)
	if err != nil {
		d.sendError(client, err.Error())
		return
	}

	client.bind(d.registry.Room(welcome.Room.Code), welcome.You)
	client.Send(session.Event{Type: session.EventRoomRejoined, Payload: welcome})
	for _, evt := range replay {
		client.Send(evt)
	}
}

func (d *Dispatcher) leaveRoom(client *Client) {
	room, id, ok := client.binding()
	if !ok {
		return
	}
	client.unbind()
	d.registry.Leave(room, id)
}

func (d *Dispatcher) kickUser(client *Client, payload json.RawMessage) {
	var req struct {
		TargetID uuid.UUID `json:"target_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		d.registry.Kick(room, id, req.TargetID)
	}
}

func (d *Dispatcher) setReady(client *Client, payload json.RawMessage) {
	var req struct {
		Filters model.UserFilterState `json:"filters"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.SetReady(context.Background(), id, req.Filters)
	}
}

func (d *Dispatcher) setDeckOptions(client *Client, payload json.RawMessage) {
	var req struct {
		Options model.DeckOptions `json:"options"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.SetDeckOptions(id, req.Options)
	}
}

func (d *Dispatcher) swipe(client *Client, payload json.RawMessage) {
	var req struct {
		MovieID   uuid.UUID            `json:"movie_id"`
		Direction model.SwipeDirection `json:"direction"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if req.Direction != model.SwipeRight && req.Direction != model.SwipeLeft {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.Swipe(id, req.MovieID, req.Direction)
	}
}

func (d *Dispatcher) requestCards(client *Client, payload json.RawMessage) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.RequestCards(id, req.Count)
	}
}

func (d *Dispatcher) selectMatch(client *Client, payload json.RawMessage) {
	var req struct {
		MovieID uuid.UUID `json:"movie_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.SelectMatch(id, req.MovieID)
	}
}

func (d *Dispatcher) regretMatch(client *Client, payload json.RawMessage) {
	var req struct {
		MovieID uuid.UUID `json:"movie_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		d.sendError(client, "malformed event")
		return
	}
	if room, id, ok := client.binding(); ok {
		room.RegretMatch(id, req.MovieID)
	}
}

func (d *Dispatcher) sendError(client *Client, message string) {
	client.Send(session.Event{Type: session.EventError, Payload: session.ErrorPayload{Message: message}})
}
