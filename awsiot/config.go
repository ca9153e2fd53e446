package awsiot

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

// Environment variables consulted when the corresponding option is not set.
const (
	EnvEndpoint = "AWS_IOT_ENDPOINT"
	EnvClientID = "AWS_IOT_CLIENT_ID"
	EnvCertPath = "AWS_IOT_CERT_PATH"
	EnvKeyPath  = "AWS_IOT_KEY_PATH"
	EnvCAPath   = "AWS_IOT_CA_PATH"
)

// ErrConfigNil indicates that a nil Config was provided.
var ErrConfigNil = errors.New("aws iot config is nil")

// Config represents the configuration parameters for an AWS IoT connection.
//
// Every field falls back to an environment variable or a default, matching
// how SDL devices are provisioned in the field: the certificate bundle is
// baked into the image and the endpoint arrives through the environment.
type Config struct {
	mu sync.RWMutex

	// endpoint is the account-specific AWS IoT endpoint.
	// Defaults to the AWS_IOT_ENDPOINT environment variable.
	endpoint string

	// port is the MQTT-over-TLS port. Defaults to 8883.
	port int

	// clientID identifies the device. Defaults to AWS_IOT_CLIENT_ID, then the
	// host name.
	clientID string

	// certPath, keyPath, and caPath locate the device certificate, private
	// key, and root CA bundle. They default to AWS_IOT_CERT_PATH /
	// AWS_IOT_KEY_PATH / AWS_IOT_CA_PATH, then to cert.pem / private.key /
	// root-CA.crt in the working directory.
	certPath string
	keyPath  string
	caPath   string

	// maxRetries bounds the number of connect attempts. Defaults to 3.
	maxRetries int

	// retryDelay is the fixed delay between connect attempts.
	// Defaults to 5 seconds.
	retryDelay time.Duration

	// logger provides a logger instance for client events and errors.
	logger logger.Logger
}

// NewConfig creates an AWS IoT configuration from the environment and the
// given functional options.
func NewConfig(opts ...Option) (*Config, error) {
	hostname, _ := os.Hostname()

	cfg := &Config{
		endpoint:   os.Getenv(EnvEndpoint),
		port:       8883,
		clientID:   envOr(EnvClientID, hostname),
		certPath:   envOr(EnvCertPath, "cert.pem"),
		keyPath:    envOr(EnvKeyPath, "private.key"),
		caPath:     envOr(EnvCAPath, "root-CA.crt"),
		maxRetries: 3,
		retryDelay: 5 * time.Second,
		logger:     logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is complete enough to connect.
func (cfg *Config) Validate() error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.endpoint == "" {
		return errors.New("endpoint not set and " + EnvEndpoint + " is empty")
	}

	for _, path := range []string{cfg.certPath, cfg.keyPath, cfg.caPath} {
		if _, err := os.Stat(path); err != nil {
			return errors.New("TLS material not found: " + path)
		}
	}

	return nil
}

func (cfg *Config) Endpoint() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.endpoint
}

func (cfg *Config) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

func (cfg *Config) ClientID() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.clientID
}

func (cfg *Config) CertPath() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.certPath
}

func (cfg *Config) KeyPath() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.keyPath
}

func (cfg *Config) CAPath() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.caPath
}

func (cfg *Config) MaxRetries() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxRetries
}

func (cfg *Config) RetryDelay() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.retryDelay
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

// WithEndpoint sets the AWS IoT endpoint.
func WithEndpoint(endpoint string) Option {
	return newOptFunc("WithEndpoint", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if endpoint == "" {
			return errors.New("endpoint is empty")
		}
		cfg.endpoint = endpoint

		return nil
	})
}

// WithPort sets the MQTT-over-TLS port.
func WithPort(port int) Option {
	return newOptFunc("WithPort", func(cfg *Config) error {
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

// WithClientID sets the device client identifier.
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

// WithCertFiles sets the paths to the device certificate, private key, and
// root CA bundle.
func WithCertFiles(certPath, keyPath, caPath string) Option {
	return newOptFunc("WithCertFiles", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if certPath == "" || keyPath == "" || caPath == "" {
			return errors.New("certificate, key, and CA paths must all be set")
		}
		cfg.certPath = certPath
		cfg.keyPath = keyPath
		cfg.caPath = caPath

		return nil
	})
}

// WithMaxRetries bounds the number of connect attempts.
func WithMaxRetries(maxRetries int) Option {
	return newOptFunc("WithMaxRetries", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if maxRetries < 1 {
			return errors.New("max retries must be at least 1")
		}
		cfg.maxRetries = maxRetries

		return nil
	})
}

// WithRetryDelay sets the fixed delay between connect attempts.
func WithRetryDelay(delay time.Duration) Option {
	return newOptFunc("WithRetryDelay", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if delay < 0 {
			return errors.New("retry delay must not be negative")
		}
		cfg.retryDelay = delay

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

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
