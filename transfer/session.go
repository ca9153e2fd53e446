package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acclab/go-sdl-utils/logger"
)

// TransferStatus is the terminal outcome of one transfer session.
type TransferStatus uint8

const (
	// StatusCompleted indicates that all three frames were exchanged and the
	// byte counts matched.
	StatusCompleted TransferStatus = iota
	// StatusFailed indicates that the session aborted; Err carries the kind.
	StatusFailed
)

// String returns the string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferResult is produced once per session and is immutable after creation.
//
// On failure, Err wraps one of the package sentinel errors and Stage records
// the session state in which the failure occurred, giving callers enough
// detail to decide whether to retry, alert, or abort the workflow.
type TransferResult struct {
	Status           TransferStatus
	FileName         string
	BytesTransferred uint64
	Stage            SessionState
	Err              error
}

// Completed reports whether the transfer finished successfully.
func (r TransferResult) Completed() bool { return r.Status == StatusCompleted }

// Session drives one complete file exchange over one connection and reports
// a TransferResult.
//
// A Session is single-use: it owns the connection it acquires, closes it
// exactly once on the first exit path, and never retries. Callers such as the
// workflow layer apply their own retry policy around the session.
type Session struct {
	cfg      *ConnConfig
	logger   logger.Logger
	stateMgr sessionStateMgr
	conn     *Conn
}

// NewSession creates a session for one file transfer using cfg.
func NewSession(cfg *ConnConfig) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	return &Session{cfg: cfg, logger: cfg.Logger()}, nil
}

// State returns the current session state.
func (s *Session) State() SessionState { return s.stateMgr.State() }

// Send dials the configured endpoint and transmits name and content as the
// ordered NAME, SIZE, CONTENT frames, then closes the connection.
func (s *Session) Send(ctx context.Context, name string, content []byte) TransferResult {
	if s.State() != IdleState {
		return s.fail(name, ErrSessionDone)
	}

	if err := validateFileName(name, s.cfg.MaxNameLen()); err != nil {
		return s.fail(name, err)
	}

	if uint64(len(content)) > uint64(s.cfg.MaxContentSize()) {
		err := fmt.Errorf("content is %d bytes, ceiling is %d: %w", len(content), s.cfg.MaxContentSize(), ErrFrameTooLarge)
		return s.fail(name, err)
	}

	s.toState(ConnectingState)

	conn, err := Dial(ctx, s.cfg)
	if err != nil {
		return s.fail(name, err)
	}
	s.conn = conn

	return s.sendFrames(conn, name, content)
}

// SendConn transmits name and content over an already established connection.
// It is used when the sender plays the listener role and the constrained
// device dialed in. The session takes ownership of conn.
func (s *Session) SendConn(conn *Conn, name string, content []byte) TransferResult {
	if s.State() != IdleState {
		return s.fail(name, ErrSessionDone)
	}
	s.conn = conn
	s.toState(ConnectingState)

	if err := validateFileName(name, s.cfg.MaxNameLen()); err != nil {
		return s.fail(name, err)
	}

	return s.sendFrames(conn, name, content)
}

func (s *Session) sendFrames(conn *Conn, name string, content []byte) TransferResult {
	s.toState(AwaitingNameState)
	if err := writeFrame(conn, NameFrame, []byte(name)); err != nil {
		return s.fail(name, err)
	}

	s.toState(AwaitingSizeState)
	if err := writeFrame(conn, SizeFrame, encodeSize(uint64(len(content)))); err != nil {
		return s.fail(name, err)
	}

	s.toState(AwaitingContentState)
	if err := writeFrame(conn, ContentFrame, content); err != nil {
		return s.fail(name, err)
	}

	return s.complete(name, uint64(len(content)))
}

// Receive binds the configured endpoint, accepts one inbound connection, and
// receives one file into destDir, then closes the connection.
func (s *Session) Receive(ctx context.Context, destDir string) TransferResult {
	if s.State() != IdleState {
		return s.fail("", ErrSessionDone)
	}
	s.toState(ConnectingState)

	conn, err := Listen(ctx, s.cfg)
	if err != nil {
		return s.fail("", err)
	}

	return s.receiveFrames(conn, destDir)
}

// ReceiveConn receives one file over an already established connection into
// destDir. It is used by Serve and by receivers that dial the sender.
// The session takes ownership of conn.
func (s *Session) ReceiveConn(conn *Conn, destDir string) TransferResult {
	if s.State() != IdleState {
		return s.fail("", ErrSessionDone)
	}
	s.toState(ConnectingState)

	return s.receiveFrames(conn, destDir)
}

func (s *Session) receiveFrames(conn *Conn, destDir string) TransferResult {
	s.conn = conn

	s.toState(AwaitingNameState)
	nameBytes, err := readFrame(conn, NameFrame, s.cfg.MaxNameLen())
	if err != nil {
		return s.fail("", err)
	}

	name := string(nameBytes)
	// Reject a bad name before reading SIZE or CONTENT.
	if err = validateFileName(name, s.cfg.MaxNameLen()); err != nil {
		return s.fail(name, err)
	}

	s.toState(AwaitingSizeState)
	sizeBytes, err := readFrame(conn, SizeFrame, sizePayloadLen)
	if err != nil {
		return s.fail(name, err)
	}

	size, err := decodeSize(sizeBytes)
	if err != nil {
		return s.fail(name, err)
	}

	// The declared size is validated before any content byte is read, so an
	// oversized declaration never causes an allocation.
	if size > uint64(s.cfg.MaxContentSize()) {
		err = fmt.Errorf("SIZE declares %d bytes, ceiling is %d: %w", size, s.cfg.MaxContentSize(), ErrFrameTooLarge)
		return s.fail(name, err)
	}

	s.toState(AwaitingContentState)
	content, err := readFrame(conn, ContentFrame, s.cfg.MaxContentSize())
	if err != nil {
		return s.fail(name, err)
	}

	if uint64(len(content)) != size {
		err = fmt.Errorf("SIZE declares %d bytes but CONTENT carries %d: %w", size, len(content), ErrSizeMismatch)
		return s.fail(name, err)
	}

	if err = persistContent(destDir, name, content); err != nil {
		return s.fail(name, err)
	}

	return s.complete(name, size)
}

// toState advances the forward-only state machine. The transitions driven by
// the session itself are always legal; the guard exists for observers.
func (s *Session) toState(next SessionState) {
	if err := s.stateMgr.to(next); err != nil {
		s.logger.Error("session state transition rejected",
			"cur_state", s.stateMgr.State(), "next_state", next, "error", err)
	}
}

// fail moves the session to FailedState, closes the connection, and builds
// the terminal result. The connection is closed exactly once regardless of
// how many exit paths run.
func (s *Session) fail(name string, err error) TransferResult {
	stage := s.stateMgr.State()
	_ = s.stateMgr.to(FailedState)

	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.logger.Error("transfer failed", "file_name", name, "stage", stage, "error", err)

	return TransferResult{
		Status:   StatusFailed,
		FileName: name,
		Stage:    stage,
		Err:      err,
	}
}

// complete moves the session to CompletedState, closes the connection, and
// builds the terminal result.
func (s *Session) complete(name string, bytesTransferred uint64) TransferResult {
	_ = s.stateMgr.to(CompletedState)

	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.logger.Info("transfer completed", "file_name", name, "bytes", bytesTransferred)

	return TransferResult{
		Status:           StatusCompleted,
		FileName:         name,
		BytesTransferred: bytesTransferred,
		Stage:            CompletedState,
	}
}

// persistContent writes content into destDir under name. The bytes go to a
// temporary file first and are renamed into place only when fully written,
// so a failed session never leaves a partial file under the advertised name.
func persistContent(destDir, name string, content []byte) error {
	tmp, err := os.CreateTemp(destDir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create destination file: %w: %w", ErrIO, err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write destination file: %w: %w", ErrIO, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close destination file: %w: %w", ErrIO, err)
	}

	if err = os.Rename(tmpName, filepath.Join(destDir, name)); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename destination file: %w: %w", ErrIO, err)
	}

	return nil
}

// SendFile reads the file at path and transmits it to the configured
// endpoint. The wire name is the base name of path.
func SendFile(ctx context.Context, cfg *ConnConfig, path string) TransferResult {
	sess, err := NewSession(cfg)
	if err != nil {
		return TransferResult{Status: StatusFailed, Stage: IdleState, Err: err}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return sess.fail(filepath.Base(path), fmt.Errorf("read source file: %w: %w", ErrIO, err))
	}

	return sess.Send(ctx, filepath.Base(path), content)
}

// ReceiveFile accepts one inbound connection on the configured endpoint and
// receives one file into destDir.
func ReceiveFile(ctx context.Context, cfg *ConnConfig, destDir string) TransferResult {
	sess, err := NewSession(cfg)
	if err != nil {
		return TransferResult{Status: StatusFailed, Stage: IdleState, Err: err}
	}

	return sess.Receive(ctx, destDir)
}

// Serve accepts inbound connections until ctx is canceled, running one
// receiver session per accepted connection. Each session exclusively owns its
// connection; no state is shared between sessions. The handler is invoked
// with every terminal TransferResult from its session's goroutine.
//
// Accept timeouts are not failures; the loop simply checks ctx and waits for
// the next peer. Serve closes the listening socket and waits for in-flight
// sessions before returning.
func Serve(ctx context.Context, cfg *ConnConfig, destDir string, handler func(TransferResult)) error {
	ln, err := NewListener(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := ln.Accept(ctx)
		if err != nil {
			if errors.Is(err, ErrAcceptTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		sess, err := NewSession(cfg)
		if err != nil {
			_ = conn.Close()
			return err
		}

		wg.Add(1)
		go func(sess *Session, conn *Conn) {
			defer wg.Done()

			result := sess.ReceiveConn(conn, destDir)
			if handler != nil {
				handler(result)
			}
		}(sess, conn)
	}
}
