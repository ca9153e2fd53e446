package transfer

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

// Default frame ceilings per the wire format: file names are short UTF-8
// strings, content is bounded to keep a misbehaving peer from forcing an
// arbitrarily large allocation before any payload byte is read.
const (
	DefaultMaxNameLen     = 255
	DefaultMaxContentSize = 1 << 30 // 1 GiB
)

// ErrConfigNil indicates that a nil ConnConfig was provided.
var ErrConfigNil = errors.New("connection config is nil")

// ConnConfig represents the configuration parameters for one side of a file
// transfer connection.
type ConnConfig struct {
	mu sync.RWMutex

	// host specifies the remote host (dialer) or the bind address (listener).
	// An empty host is valid for listeners and binds to all interfaces.
	host string

	// port specifies the TCP port number for the connection.
	port int

	// connectTimeout defines the timeout for establishing an outbound connection.
	// Defaults to 10 seconds.
	connectTimeout time.Duration

	// acceptTimeout defines how long a listener waits for an inbound connection.
	// Defaults to 30 seconds.
	acceptTimeout time.Duration

	// readTimeout defines the deadline applied to each blocking read.
	// Zero disables the deadline. Defaults to 30 seconds.
	readTimeout time.Duration

	// writeTimeout defines the deadline applied to each blocking write.
	// Zero disables the deadline. Defaults to 30 seconds.
	writeTimeout time.Duration

	// maxNameLen bounds the declared length of a NAME frame.
	// Defaults to DefaultMaxNameLen.
	maxNameLen uint32

	// maxContentSize bounds the declared length of a CONTENT frame and the
	// value carried by a SIZE frame. Defaults to DefaultMaxContentSize.
	maxContentSize uint32

	// logger provides a logger instance for transfer events and errors.
	logger logger.Logger
}

// NewConnConfig creates a connection configuration with the given host, port
// number, and optional functional options.
//
// It initializes a ConnConfig with default values and then applies the
// provided options to customize the configuration.
//
// The host parameter is the remote host for a dialer or the bind address for
// a listener; an empty host binds to all interfaces.
func NewConnConfig(host string, port int, opts ...ConnOption) (*ConnConfig, error) {
	cfg := &ConnConfig{
		connectTimeout: 10 * time.Second,
		acceptTimeout:  30 * time.Second,
		readTimeout:    30 * time.Second,
		writeTimeout:   30 * time.Second,
		maxNameLen:     DefaultMaxNameLen,
		maxContentSize: DefaultMaxContentSize,
		logger:         logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *ConnConfig) Host() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.host
}

func (cfg *ConnConfig) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

func (cfg *ConnConfig) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

func (cfg *ConnConfig) AcceptTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.acceptTimeout
}

func (cfg *ConnConfig) ReadTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.readTimeout
}

func (cfg *ConnConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

func (cfg *ConnConfig) MaxNameLen() uint32 {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxNameLen
}

func (cfg *ConnConfig) MaxContentSize() uint32 {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxContentSize
}

func (cfg *ConnConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// ConnOption represents a functional option for configuring a ConnConfig.
type ConnOption interface {
	apply(*ConnConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnConfig) error
}

func (c *connOptFunc) apply(cfg *ConnConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*ConnConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withHost sets the host for the connection.
// It returns a ConnOption that validates the host and updates the configuration.
func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		// An empty host is the listener wildcard address.
		if host == "" {
			cfg.host = host
			return nil
		}

		// Check if it's a valid IP address.
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		// If not an IP, check if it's a resolvable domain name.
		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

// withPort sets the TCP port number for the connection.
// An error is returned if the port number is out of the valid range (1-65535).
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the timeout for establishing an outbound connection.
// It should be between 1 second and 2 minutes.
func WithConnectTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout < time.Second || timeout > 2*time.Minute {
			return errors.New("connect timeout out of range [1s, 2m]")
		}
		cfg.connectTimeout = timeout

		return nil
	})
}

// WithAcceptTimeout sets how long a listener waits for an inbound connection.
// It should be between 1 second and 10 minutes.
func WithAcceptTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithAcceptTimeout", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout < time.Second || timeout > 10*time.Minute {
			return errors.New("accept timeout out of range [1s, 10m]")
		}
		cfg.acceptTimeout = timeout

		return nil
	})
}

// WithReadTimeout sets the deadline applied to each blocking read.
// A zero timeout disables the read deadline.
func WithReadTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithReadTimeout", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout < 0 {
			return errors.New("read timeout must not be negative")
		}
		cfg.readTimeout = timeout

		return nil
	})
}

// WithWriteTimeout sets the deadline applied to each blocking write.
// A zero timeout disables the write deadline.
func WithWriteTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout < 0 {
			return errors.New("write timeout must not be negative")
		}
		cfg.writeTimeout = timeout

		return nil
	})
}

// WithMaxNameLen bounds the declared length of a NAME frame.
// It should be between 1 and 4096 bytes.
func WithMaxNameLen(limit uint32) ConnOption {
	return newConnOptFunc("WithMaxNameLen", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if limit < 1 || limit > 4096 {
			return errors.New("max name length out of range [1, 4096]")
		}
		cfg.maxNameLen = limit

		return nil
	})
}

// WithMaxContentSize bounds the declared length of a CONTENT frame.
func WithMaxContentSize(limit uint32) ConnOption {
	return newConnOptFunc("WithMaxContentSize", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if limit < 1 {
			return errors.New("max content size must be positive")
		}
		cfg.maxContentSize = limit

		return nil
	})
}

// WithLogger sets the logger instance used for transfer events and errors.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
