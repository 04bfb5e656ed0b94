package gateway

import (
	"errors"
	"time"
)

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed // terminal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// StateChange is published on Client.StateChanges for every transition.
type StateChange struct {
	From  State
	To    State
	Err   error  // cause of the transition, if any
	Epoch string // id of the connection the change concerns, if any
	At    time.Time
}

var (
	// ErrNotConnected is returned by Send when no connection is live.
	ErrNotConnected = errors.New("gateway is not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("gateway client is closed")
	// ErrHeartbeatTimeout ends a connection whose heartbeats went unacknowledged.
	ErrHeartbeatTimeout = errors.New("heartbeat acknowledgement overdue")
	// ErrInvalidCursor ends a connection whose resumption cursor was rejected.
	ErrInvalidCursor = errors.New("resumption cursor rejected by server")
)
