package awsiot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigEnvFallbacks(t *testing.T) {
	require := require.New(t)

	t.Setenv(EnvEndpoint, "abc123-ats.iot.us-east-1.amazonaws.com")
	t.Setenv(EnvClientID, "sdl-device-7")
	t.Setenv(EnvCertPath, "/etc/sdl/cert.pem")
	t.Setenv(EnvKeyPath, "/etc/sdl/private.key")
	t.Setenv(EnvCAPath, "/etc/sdl/root-CA.crt")

	cfg, err := NewConfig()
	require.NoError(err)

	require.Equal("abc123-ats.iot.us-east-1.amazonaws.com", cfg.Endpoint())
	require.Equal(8883, cfg.Port())
	require.Equal("sdl-device-7", cfg.ClientID())
	require.Equal("/etc/sdl/cert.pem", cfg.CertPath())
	require.Equal("/etc/sdl/private.key", cfg.KeyPath())
	require.Equal("/etc/sdl/root-CA.crt", cfg.CAPath())
	require.Equal(3, cfg.MaxRetries())
	require.Equal(5*time.Second, cfg.RetryDelay())
}

func TestNewConfigOptionsOverrideEnv(t *testing.T) {
	require := require.New(t)

	t.Setenv(EnvEndpoint, "env-endpoint.example.com")

	cfg, err := NewConfig(
		WithEndpoint("opt-endpoint.example.com"),
		WithPort(443),
		WithClientID("bench-42"),
		WithCertFiles("c.pem", "k.pem", "ca.pem"),
		WithMaxRetries(5),
		WithRetryDelay(time.Second),
	)
	require.NoError(err)

	require.Equal("opt-endpoint.example.com", cfg.Endpoint())
	require.Equal(443, cfg.Port())
	require.Equal("bench-42", cfg.ClientID())
	require.Equal(5, cfg.MaxRetries())
	require.Equal(time.Second, cfg.RetryDelay())
}

func TestConfigValidate(t *testing.T) {
	t.Run("missing endpoint", func(t *testing.T) {
		t.Setenv(EnvEndpoint, "")

		cfg, err := NewConfig()
		require.NoError(t, err)
		require.Error(t, cfg.Validate())
	})

	t.Run("missing TLS material", func(t *testing.T) {
		cfg, err := NewConfig(
			WithEndpoint("abc123-ats.iot.us-east-1.amazonaws.com"),
			WithCertFiles("/nonexistent/cert.pem", "/nonexistent/key.pem", "/nonexistent/ca.pem"),
		)
		require.NoError(t, err)
		require.Error(t, cfg.Validate())
	})

	t.Run("complete", func(t *testing.T) {
		dir := t.TempDir()
		cert := filepath.Join(dir, "cert.pem")
		key := filepath.Join(dir, "private.key")
		ca := filepath.Join(dir, "root-CA.crt")
		for _, path := range []string{cert, key, ca} {
			require.NoError(t, os.WriteFile(path, []byte("placeholder"), 0o600))
		}

		cfg, err := NewConfig(
			WithEndpoint("abc123-ats.iot.us-east-1.amazonaws.com"),
			WithCertFiles(cert, key, ca),
		)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
	})
}

func TestNewConfigValidation(t *testing.T) {
	t.Run("port out of range", func(t *testing.T) {
		_, err := NewConfig(WithPort(0))
		require.Error(t, err)
	})

	t.Run("empty endpoint option", func(t *testing.T) {
		_, err := NewConfig(WithEndpoint(""))
		require.Error(t, err)
	})

	t.Run("incomplete cert files", func(t *testing.T) {
		_, err := NewConfig(WithCertFiles("cert.pem", "", "ca.pem"))
		require.Error(t, err)
	})

	t.Run("max retries", func(t *testing.T) {
		_, err := NewConfig(WithMaxRetries(0))
		require.Error(t, err)
	})
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	require := require.New(t)

	_, err := NewClient(nil)
	require.ErrorIs(err, ErrConfigNil)

	t.Setenv(EnvEndpoint, "")
	cfg, err := NewConfig()
	require.NoError(err)

	_, err = NewClient(cfg)
	require.Error(err)
}
