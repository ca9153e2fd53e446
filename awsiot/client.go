// Package awsiot provides a lightweight AWS IoT Core client for SDL devices.
//
// It layers mutual-TLS credential loading, endpoint discovery from the
// environment, and bounded connect retries on top of the mqtt package.
// The MQTT and AWS IoT protocols themselves are consumed, not reimplemented.
package awsiot

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/acclab/go-sdl-utils/internal/pool"
	"github.com/acclab/go-sdl-utils/logger"
	"github.com/acclab/go-sdl-utils/mqtt"
)

// ErrConnectExhausted indicates that every connect attempt failed.
var ErrConnectExhausted = errors.New("aws iot connect attempts exhausted")

// Client is a lightweight AWS IoT client for resource-constrained devices.
type Client struct {
	cfg    *Config
	mqtt   *mqtt.Client
	logger logger.Logger
}

// NewClient creates an AWS IoT client from cfg.
//
// It validates the configuration, loads the device keypair and CA bundle,
// and prepares the underlying MQTT client. The connection is not established
// until Connect is called.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsCfg, err := newTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	brokerURL := "tls://" + cfg.Endpoint() + ":" + strconv.Itoa(cfg.Port())

	mqttCfg, err := mqtt.NewConfig(brokerURL,
		mqtt.WithClientID(cfg.ClientID()),
		mqtt.WithTLSConfig(tlsCfg),
		mqtt.WithLogger(cfg.Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("build mqtt config: %w", err)
	}

	mqttClient, err := mqtt.NewClient(mqttCfg)
	if err != nil {
		return nil, fmt.Errorf("build mqtt client: %w", err)
	}

	return &Client{
		cfg:    cfg,
		mqtt:   mqttClient,
		logger: cfg.Logger(),
	}, nil
}

// Connect establishes the AWS IoT connection, retrying up to the configured
// number of attempts with a fixed delay between them.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries(); attempt++ {
		lastErr = c.mqtt.Connect(ctx)
		if lastErr == nil {
			c.logger.Info("aws iot connected",
				"endpoint", c.cfg.Endpoint(), "client_id", c.cfg.ClientID(), "attempt", attempt)

			return nil
		}

		c.logger.Warn("aws iot connect attempt failed",
			"endpoint", c.cfg.Endpoint(), "attempt", attempt, "error", lastErr)

		if attempt == c.cfg.MaxRetries() {
			break
		}

		timer := pool.GetTimer(c.cfg.RetryDelay())
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)
			return fmt.Errorf("%w: %w", ErrConnectExhausted, ctx.Err())
		case <-timer.C:
		}
		pool.PutTimer(timer)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrConnectExhausted, c.cfg.MaxRetries(), lastErr)
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool { return c.mqtt.IsConnected() }

// Publish sends payload to topic at QoS 1, the AWS IoT default for telemetry.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.mqtt.Publish(topic, 1, payload)
}

// PublishJSON marshals v as JSON and publishes it to topic at QoS 1.
func (c *Client) PublishJSON(topic string, v any) error {
	return c.mqtt.PublishJSON(topic, 1, v)
}

// Subscribe registers handler for messages on the topic filter.
func (c *Client) Subscribe(topic string, handler mqtt.MessageHandler) error {
	return c.mqtt.Subscribe(topic, 1, handler)
}

// Unsubscribe removes the topic registration.
func (c *Client) Unsubscribe(topic string) error {
	return c.mqtt.Unsubscribe(topic)
}

// Disconnect closes the connection after quiescing in-flight messages.
func (c *Client) Disconnect() {
	c.mqtt.Disconnect(250)
	c.logger.Info("aws iot disconnected", "endpoint", c.cfg.Endpoint())
}

// newTLSConfig loads the device keypair and CA bundle for mutual TLS.
func newTLSConfig(cfg *Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertPath(), cfg.KeyPath())
	if err != nil {
		return nil, fmt.Errorf("load device keypair: %w", err)
	}

	caPEM, err := os.ReadFile(cfg.CAPath())
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("CA bundle contains no valid certificates")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
