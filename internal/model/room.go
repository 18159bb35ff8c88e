package model

type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseFiltering Phase = "filtering"
	PhaseSwiping   Phase = "swiping"
)

type SessionStatus string

const (
	StatusSwiping      SessionStatus = "swiping"
	StatusSessionEnded SessionStatus = "session_ended"
)

type SwipeDirection string

const (
	SwipeRight SwipeDirection = "right"
	SwipeLeft  SwipeDirection = "left"
)

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)
