package transfer

import "errors"

var (
	// ErrResolution indicates that the remote host name could not be resolved.
	ErrResolution = errors.New("host resolution failed")

	// ErrConnectionRefused indicates that the remote peer is not listening on the target port.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrBind indicates that the listen address is unavailable.
	ErrBind = errors.New("bind failed")

	// ErrConnectTimeout indicates that the outbound connection attempt did not
	// complete within the configured connect timeout.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrAcceptTimeout indicates that no peer connected within the configured
	// accept timeout.
	ErrAcceptTimeout = errors.New("accept timeout")

	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("connection closed")
)

var (
	// ErrIO indicates a short read or write, or a peer that closed the
	// connection in the middle of a frame.
	ErrIO = errors.New("i/o failure")

	// ErrFrameTooLarge indicates that a declared frame length exceeds the
	// configured ceiling for its kind. The payload is never read in this case.
	ErrFrameTooLarge = errors.New("frame length exceeds ceiling")

	// ErrInvalidName indicates that a NAME payload is empty, not valid UTF-8,
	// exceeds the name length limit, or contains a path separator.
	ErrInvalidName = errors.New("invalid file name")

	// ErrSizeMismatch indicates that the declared SIZE value does not match the
	// number of CONTENT bytes actually carried.
	ErrSizeMismatch = errors.New("size mismatch")
)

var (
	// ErrInvalidTransition is returned when an attempt is made to transition the
	// session state to an invalid state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSessionDone indicates that the session already reached a terminal state
	// and cannot run another transfer.
	ErrSessionDone = errors.New("session already terminated")
)
