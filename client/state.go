package client

import "sync/atomic"

// State is the session lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type sessionState struct {
	value atomic.Int32
}

func (s *sessionState) Load() State {
	return State(s.value.Load())
}

func (s *sessionState) Store(state State) {
	s.value.Store(int32(state))
}

// CompareAndSwap transitions from old to new atomically so a concurrent
// Close is never overwritten by a stale lifecycle transition.
func (s *sessionState) CompareAndSwap(old, new State) bool {
	return s.value.CompareAndSwap(int32(old), int32(new))
}

// storeUnlessClosed moves to state unless the session was closed meanwhile.
// Closed is terminal: once reached, no other transition may leave it.
func (s *sessionState) storeUnlessClosed(state State) bool {
	for {
		current := s.Load()
		if current == StateClosed {
			return false
		}
		if s.value.CompareAndSwap(int32(current), int32(state)) {
			return true
		}
	}
}
