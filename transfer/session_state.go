package transfer

import "sync/atomic"

// SessionState represents the stages of one file transfer session.
type SessionState uint32

const (
	// IdleState indicates that the session has not started yet.
	IdleState SessionState = iota
	// ConnectingState indicates that the session is dialing or awaiting an
	// inbound connection.
	ConnectingState
	// AwaitingNameState indicates that the NAME frame is being exchanged.
	AwaitingNameState
	// AwaitingSizeState indicates that the SIZE frame is being exchanged.
	AwaitingSizeState
	// AwaitingContentState indicates that the CONTENT frame is being exchanged.
	AwaitingContentState
	// CompletedState indicates that the transfer finished successfully.
	// The state is terminal and the connection is already closed.
	CompletedState
	// FailedState indicates that the transfer aborted. The state is terminal
	// and the connection is already closed.
	FailedState
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case IdleState:
		return "idle"
	case ConnectingState:
		return "connecting"
	case AwaitingNameState:
		return "awaiting-name"
	case AwaitingSizeState:
		return "awaiting-size"
	case AwaitingContentState:
		return "awaiting-content"
	case CompletedState:
		return "completed"
	case FailedState:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is CompletedState or FailedState.
func (s SessionState) IsTerminal() bool {
	return s == CompletedState || s == FailedState
}

// sessionStateMgr guards the per-session state machine:
//
//	IDLE → CONNECTING → AWAITING_NAME → AWAITING_SIZE → AWAITING_CONTENT → COMPLETED
//
// with any non-terminal state able to transition to FAILED. Transitions are
// atomic so a session may be observed from another goroutine.
type sessionStateMgr struct {
	state atomic.Uint32
}

// State returns the current session state.
func (m *sessionStateMgr) State() SessionState {
	return SessionState(m.state.Load())
}

// to transitions to the next state, enforcing the forward-only ordering.
// FailedState is reachable from any non-terminal state.
func (m *sessionStateMgr) to(next SessionState) error {
	cur := m.State()

	if cur.IsTerminal() {
		return ErrSessionDone
	}

	if next == FailedState {
		m.state.Store(uint32(next))
		return nil
	}

	if next != cur+1 {
		return ErrInvalidTransition
	}

	m.state.Store(uint32(next))

	return nil
}
