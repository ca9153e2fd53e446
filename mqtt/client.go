// Package mqtt provides a thin MQTT client shim for SDL devices.
//
// It adapts the Eclipse Paho client behind a small connect/publish/subscribe
// contract: per-topic handlers, automatic resubscription after reconnect, and
// structured logging. MQTT protocol mechanics stay inside the Paho library.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/acclab/go-sdl-utils/logger"
)

var (
	// ErrNotConnected indicates that the client is not connected to the broker.
	ErrNotConnected = errors.New("mqtt client not connected")

	// ErrConnectFailed indicates that the broker connection could not be
	// established.
	ErrConnectFailed = errors.New("mqtt connect failed")
)

// MessageHandler processes one message received on a subscribed topic.
//
// Handlers are invoked from the Paho client's receive goroutine; long-running
// work should be handed off to another goroutine.
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a minimal MQTT client for lab devices.
type Client struct {
	cfg    *Config
	client paho.Client
	logger logger.Logger

	// subs maps topic filters to their handlers so subscriptions survive a
	// broker reconnect.
	subs *xsync.MapOf[string, subscription]
}

// NewClient creates an MQTT client from cfg. The connection is not
// established until Connect is called.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger(),
		subs:   xsync.NewMapOf[string, subscription](),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID()).
		SetKeepAlive(cfg.KeepAlive()).
		SetConnectTimeout(cfg.ConnectTimeout()).
		SetAutoReconnect(true).
		SetCleanSession(true)

	if cfg.Username() != "" {
		opts.SetUsername(cfg.Username())
		opts.SetPassword(cfg.Password())
	}

	if tlsCfg := cfg.TLSConfig(); tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.logger.Info("mqtt connected", "broker", cfg.BrokerURL(), "client_id", cfg.ClientID())
		c.resubscribe()
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("mqtt connection lost", "broker", cfg.BrokerURL(), "error", err)
	})

	c.client = paho.NewClient(opts)

	return c, nil
}

// Connect establishes the broker connection, waiting until the connection
// completes, ctx is canceled, or the configured connect timeout elapses.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectFailed, ctx.Err())
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	return nil
}

// IsConnected reports whether the client currently holds a broker connection.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Publish sends payload to topic at the given QoS level.
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	c.logger.Debug("mqtt message published", "topic", topic, "qos", qos, "bytes", len(payload))

	return nil
}

// PublishJSON marshals v as JSON and publishes it to topic.
func (c *Client) PublishJSON(topic string, qos byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	return c.Publish(topic, qos, payload)
}

// Subscribe registers handler for the topic filter and subscribes on the
// broker. The registration is kept so the subscription is restored after a
// reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if handler == nil {
		return errors.New("message handler is nil")
	}

	c.subs.Store(topic, subscription{qos: qos, handler: handler})

	// Offline registration is fine; the subscription is established by the
	// on-connect handler once the broker connection exists.
	if !c.client.IsConnected() {
		c.logger.Debug("mqtt subscription registered offline", "topic", topic, "qos", qos)
		return nil
	}

	return c.subscribe(topic, qos, handler)
}

// Unsubscribe removes the topic registration and unsubscribes on the broker.
func (c *Client) Unsubscribe(topic string) error {
	c.subs.Delete(topic)

	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Unsubscribe(topic)
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", topic, err)
	}

	return nil
}

// Disconnect waits up to quiesce for in-flight work and closes the broker
// connection.
func (c *Client) Disconnect(quiesce uint) {
	c.client.Disconnect(quiesce)
	c.logger.Info("mqtt disconnected", "broker", c.cfg.BrokerURL())
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	c.logger.Debug("mqtt subscribed", "topic", topic, "qos", qos)

	return nil
}

// resubscribe restores all registered subscriptions after a (re)connect.
func (c *Client) resubscribe() {
	c.subs.Range(func(topic string, sub subscription) bool {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", err)
		}

		return true
	})
}
