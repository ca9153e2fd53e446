package mqtt

import (
	"crypto/tls"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

// ErrConfigNil indicates that a nil Config was provided.
var ErrConfigNil = errors.New("mqtt config is nil")

// Config represents the configuration parameters for an MQTT client connection.
type Config struct {
	mu sync.RWMutex

	// brokerURL specifies the broker endpoint, e.g. "tcp://host:1883" or
	// "tls://host:8883".
	brokerURL string

	// clientID identifies this client to the broker.
	// Defaults to the host name.
	clientID string

	// username and password are optional broker credentials.
	username string
	password string

	// tlsConfig enables TLS when non-nil.
	tlsConfig *tls.Config

	// keepAlive defines the MQTT keepalive interval. Defaults to 60 seconds.
	keepAlive time.Duration

	// connectTimeout defines the timeout for establishing the broker
	// connection. Defaults to 10 seconds.
	connectTimeout time.Duration

	// logger provides a logger instance for client events and errors.
	logger logger.Logger
}

// NewConfig creates an MQTT client configuration with the given broker URL
// and optional functional options.
func NewConfig(brokerURL string, opts ...Option) (*Config, error) {
	hostname, _ := os.Hostname()

	cfg := &Config{
		clientID:       hostname,
		keepAlive:      60 * time.Second,
		connectTimeout: 10 * time.Second,
		logger:         logger.GetLogger(),
	}

	if err := withBrokerURL(brokerURL).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *Config) BrokerURL() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.brokerURL
}

func (cfg *Config) ClientID() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.clientID
}

func (cfg *Config) Username() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.username
}

func (cfg *Config) Password() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.password
}

func (cfg *Config) TLSConfig() *tls.Config {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.tlsConfig
}

func (cfg *Config) KeepAlive() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.keepAlive
}

func (cfg *Config) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

func (cfg *Config) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

func withBrokerURL(brokerURL string) Option {
	return newOptFunc("withBrokerURL", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		switch {
		case brokerURL == "":
			return errors.New("broker URL is empty")
		case !strings.Contains(brokerURL, "://"):
			return errors.New("broker URL has no scheme")
		}
		cfg.brokerURL = brokerURL

		return nil
	})
}

// WithClientID sets the client identifier presented to the broker.
func WithClientID(clientID string) Option {
	return newOptFunc("WithClientID", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if clientID == "" {
			return errors.New("client ID is empty")
		}
		cfg.clientID = clientID

		return nil
	})
}

// WithCredentials sets the broker username and password.
func WithCredentials(username, password string) Option {
	return newOptFunc("WithCredentials", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.username = username
		cfg.password = password

		return nil
	})
}

// WithTLSConfig enables TLS with the given configuration.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return newOptFunc("WithTLSConfig", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if tlsConfig == nil {
			return errors.New("tls config is nil")
		}
		cfg.tlsConfig = tlsConfig

		return nil
	})
}

// WithKeepAlive sets the MQTT keepalive interval.
// It should be between 1 second and 10 minutes.
func WithKeepAlive(interval time.Duration) Option {
	return newOptFunc("WithKeepAlive", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if interval < time.Second || interval > 10*time.Minute {
			return errors.New("keepalive out of range [1s, 10m]")
		}
		cfg.keepAlive = interval

		return nil
	})
}

// WithConnectTimeout sets the timeout for establishing the broker connection.
// It should be between 1 second and 2 minutes.
func WithConnectTimeout(timeout time.Duration) Option {
	return newOptFunc("WithConnectTimeout", func(cfg *Config) error {
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

// WithLogger sets the logger instance used for client events and errors.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
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
