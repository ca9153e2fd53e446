package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

// Conn is an established bidirectional byte stream between two endpoints.
//
// A Conn is owned exclusively by the session that created it and carries
// exactly one file transfer for its lifetime. Close is idempotent.
type Conn struct {
	netConn   net.Conn
	cfg       *ConnConfig
	logger    logger.Logger
	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

func newConn(netConn net.Conn, cfg *ConnConfig) *Conn {
	return &Conn{
		netConn: netConn,
		cfg:     cfg,
		logger:  cfg.Logger(),
	}
}

// Dial opens an outbound connection to the host and port in cfg.
//
// It fails with ErrConnectTimeout when the peer does not respond within the
// configured connect timeout, ErrConnectionRefused when the peer is not
// listening, and ErrResolution when the host cannot be resolved.
//
// The caller is responsible for eventually calling Close. No retry is
// performed inside this layer; retry policy belongs to the caller.
func Dial(ctx context.Context, cfg *ConnConfig) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	address := net.JoinHostPort(cfg.Host(), strconv.Itoa(cfg.Port()))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	netConn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, classifyDialError(address, err)
	}

	cfg.Logger().Debug("connected to the remote",
		"local_addr", netConn.LocalAddr().String(),
		"remote_addr", netConn.RemoteAddr().String(),
	)

	return newConn(netConn, cfg), nil
}

// Listen binds to the host and port in cfg and accepts exactly one inbound
// connection. The listening socket is closed before Listen returns, whether
// or not the accept succeeded.
//
// It fails with ErrBind when the address is unavailable and ErrAcceptTimeout
// when no peer connects within the configured accept timeout.
func Listen(ctx context.Context, cfg *ConnConfig) (*Conn, error) {
	ln, err := NewListener(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ln.Close() }()

	return ln.Accept(ctx)
}

// Read reads exactly len(buf) bytes from the connection, looping over partial
// reads until the buffer is filled. The configured read timeout applies to the
// whole call.
func (c *Conn) Read(buf []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	if timeout := c.cfg.ReadTimeout(); timeout > 0 {
		if err := c.netConn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	if _, err := io.ReadFull(c.netConn, buf); err != nil {
		return err
	}

	return nil
}

// Write writes all bytes in p to the connection. The configured write timeout
// applies to the whole call.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrConnClosed
	}

	if timeout := c.cfg.WriteTimeout(); timeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, fmt.Errorf("set write deadline: %w", err)
		}
	}

	return c.netConn.Write(p)
}

// Close closes the connection. It is idempotent; calling Close on an already
// closed connection is a no-op and never fails.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.netConn.Close()
		c.logger.Debug("connection closed", "remote_addr", c.netConn.RemoteAddr().String())
	})

	return c.closeErr
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.netConn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// Listener hosts a single listening socket that accepts transfer connections.
//
// It may accept connections serially, one session at a time, or be operated
// concurrently by spawning one session per accepted connection. The listening
// socket must be released with Close on shutdown.
type Listener struct {
	ln     net.Listener
	cfg    *ConnConfig
	logger logger.Logger
	closed atomic.Bool
}

// NewListener binds a listening socket to the host and port in cfg.
// It fails with ErrBind when the address is unavailable.
func NewListener(ctx context.Context, cfg *ConnConfig) (*Listener, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	address := net.JoinHostPort(cfg.Host(), strconv.Itoa(cfg.Port()))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w: %w", address, ErrBind, err)
	}

	cfg.Logger().Debug("listener bound", "addr", ln.Addr().String())

	return &Listener{ln: ln, cfg: cfg, logger: cfg.Logger()}, nil
}

// Addr returns the bound listener address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept waits for one inbound connection.
//
// It fails with ErrAcceptTimeout when no peer connects within the configured
// accept timeout, and with ErrConnClosed when the listener has been closed or
// ctx is canceled.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	if l.closed.Load() {
		return nil, ErrConnClosed
	}

	tcpLn, ok := l.ln.(*net.TCPListener)
	if ok {
		if err := tcpLn.SetDeadline(time.Now().Add(l.cfg.AcceptTimeout())); err != nil {
			return nil, fmt.Errorf("set accept deadline: %w", err)
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	netConn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("accept: %w: %w", ErrConnClosed, ctx.Err())
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("accept: %w", ErrAcceptTimeout)
		}
		if l.closed.Load() {
			return nil, ErrConnClosed
		}

		return nil, fmt.Errorf("accept: %w: %w", ErrIO, err)
	}

	l.logger.Debug("accepted inbound connection", "remote_addr", netConn.RemoteAddr().String())

	return newConn(netConn, l.cfg), nil
}

// Close releases the listening socket. It is safe to call multiple times.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	return l.ln.Close()
}

// classifyDialError maps a dial failure onto the transfer error taxonomy.
func classifyDialError(address string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("dial %s: %w: %w", address, ErrResolution, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("dial %s: %w", address, ErrConnectionRefused)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("dial %s: %w", address, ErrConnectTimeout)
	}

	return fmt.Errorf("dial %s: %w: %w", address, ErrIO, err)
}
