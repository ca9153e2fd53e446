package mqtt

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("tcp://broker.local:1883")
	require.NoError(err)

	require.Equal("tcp://broker.local:1883", cfg.BrokerURL())
	require.NotEmpty(cfg.ClientID())
	require.Equal(60*time.Second, cfg.KeepAlive())
	require.Equal(10*time.Second, cfg.ConnectTimeout())
	require.Nil(cfg.TLSConfig())
	require.NotNil(cfg.Logger())
}

func TestNewConfigValidation(t *testing.T) {
	t.Run("empty broker URL", func(t *testing.T) {
		_, err := NewConfig("")
		require.Error(t, err)
	})

	t.Run("broker URL without scheme", func(t *testing.T) {
		_, err := NewConfig("broker.local:1883")
		require.Error(t, err)
	})

	t.Run("empty client ID", func(t *testing.T) {
		_, err := NewConfig("tcp://broker.local:1883", WithClientID(""))
		require.Error(t, err)
	})

	t.Run("keepalive out of range", func(t *testing.T) {
		_, err := NewConfig("tcp://broker.local:1883", WithKeepAlive(time.Millisecond))
		require.Error(t, err)
	})

	t.Run("options applied", func(t *testing.T) {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		cfg, err := NewConfig("tls://broker.local:8883",
			WithClientID("ot2-deck-1"),
			WithCredentials("lab", "secret"),
			WithTLSConfig(tlsCfg),
			WithKeepAlive(30*time.Second),
			WithConnectTimeout(5*time.Second),
		)
		require.NoError(t, err)
		require.Equal(t, "ot2-deck-1", cfg.ClientID())
		require.Equal(t, "lab", cfg.Username())
		require.Equal(t, "secret", cfg.Password())
		require.Same(t, tlsCfg, cfg.TLSConfig())
		require.Equal(t, 30*time.Second, cfg.KeepAlive())
		require.Equal(t, 5*time.Second, cfg.ConnectTimeout())
	})
}

func TestNewClient(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("tcp://broker.local:1883", WithClientID("bench-1"))
	require.NoError(err)

	client, err := NewClient(cfg)
	require.NoError(err)
	require.False(client.IsConnected())

	// Publishing without a connection fails fast.
	require.ErrorIs(client.Publish("lab/telemetry", 1, []byte("{}")), ErrNotConnected)

	// Handler registration works offline; the broker subscribe happens on
	// connect via resubscribe.
	err = client.Subscribe("lab/commands", 1, func(topic string, payload []byte) {})
	require.NoError(err)

	require.Error(client.Subscribe("lab/other", 1, nil))

	_, err = NewClient(nil)
	require.ErrorIs(err, ErrConfigNil)
}
