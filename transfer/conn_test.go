package transfer

import (
	"context"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// freePort grabs an ephemeral port from the kernel and releases it so the
// test can bind it through the package API.
func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}

func TestNewConnConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnConfig("127.0.0.1", 7010)
	require.NoError(err)

	require.Equal("127.0.0.1", cfg.Host())
	require.Equal(7010, cfg.Port())
	require.Equal(10*time.Second, cfg.ConnectTimeout())
	require.Equal(30*time.Second, cfg.AcceptTimeout())
	require.Equal(30*time.Second, cfg.ReadTimeout())
	require.Equal(30*time.Second, cfg.WriteTimeout())
	require.Equal(uint32(DefaultMaxNameLen), cfg.MaxNameLen())
	require.Equal(uint32(DefaultMaxContentSize), cfg.MaxContentSize())
	require.NotNil(cfg.Logger())
}

func TestNewConnConfigValidation(t *testing.T) {
	t.Run("empty host is listener wildcard", func(t *testing.T) {
		cfg, err := NewConnConfig("", 7010)
		require.NoError(t, err)
		require.Equal(t, "", cfg.Host())
	})

	t.Run("port out of range", func(t *testing.T) {
		_, err := NewConnConfig("127.0.0.1", 0)
		require.Error(t, err)

		_, err = NewConnConfig("127.0.0.1", 65536)
		require.Error(t, err)
	})

	t.Run("connect timeout out of range", func(t *testing.T) {
		_, err := NewConnConfig("127.0.0.1", 7010, WithConnectTimeout(time.Millisecond))
		require.Error(t, err)
	})

	t.Run("max name length out of range", func(t *testing.T) {
		_, err := NewConnConfig("127.0.0.1", 7010, WithMaxNameLen(0))
		require.Error(t, err)
	})

	t.Run("options applied", func(t *testing.T) {
		cfg, err := NewConnConfig("127.0.0.1", 7010,
			WithConnectTimeout(2*time.Second),
			WithAcceptTimeout(time.Second),
			WithReadTimeout(time.Second),
			WithWriteTimeout(time.Second),
			WithMaxNameLen(64),
			WithMaxContentSize(1<<16),
		)
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, cfg.ConnectTimeout())
		require.Equal(t, time.Second, cfg.AcceptTimeout())
		require.Equal(t, uint32(64), cfg.MaxNameLen())
		require.Equal(t, uint32(1<<16), cfg.MaxContentSize())
	})
}

func TestDialConnectionRefused(t *testing.T) {
	require := require.New(t)

	port := freePort(t)
	cfg, err := NewConnConfig("127.0.0.1", port, WithConnectTimeout(2*time.Second))
	require.NoError(err)

	_, err = Dial(context.Background(), cfg)
	require.ErrorIs(err, ErrConnectionRefused)
}

func TestListenAcceptTimeout(t *testing.T) {
	require := require.New(t)

	port := freePort(t)
	cfg, err := NewConnConfig("127.0.0.1", port, WithAcceptTimeout(time.Second))
	require.NoError(err)

	start := time.Now()
	_, err = Listen(context.Background(), cfg)
	require.ErrorIs(err, ErrAcceptTimeout)
	require.GreaterOrEqual(time.Since(start), 900*time.Millisecond)
}

func TestListenerBind(t *testing.T) {
	require := require.New(t)

	port := freePort(t)
	cfg, err := NewConnConfig("127.0.0.1", port)
	require.NoError(err)

	ln, err := NewListener(context.Background(), cfg)
	require.NoError(err)
	defer func() { _ = ln.Close() }()

	// Second bind on the same address must fail with ErrBind.
	_, err = NewListener(context.Background(), cfg)
	require.ErrorIs(err, ErrBind)

	// Close is idempotent.
	require.NoError(ln.Close())
	require.NoError(ln.Close())
}

func TestDialAndAccept(t *testing.T) {
	require := require.New(t)

	port := freePort(t)
	cfg, err := NewConnConfig("127.0.0.1", port, WithAcceptTimeout(5*time.Second))
	require.NoError(err)

	ln, err := NewListener(context.Background(), cfg)
	require.NoError(err)
	defer func() { _ = ln.Close() }()

	type acceptResult struct {
		conn *Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, acceptErr := ln.Accept(context.Background())
		acceptCh <- acceptResult{conn: conn, err: acceptErr}
	}()

	dialConn, err := Dial(context.Background(), cfg)
	require.NoError(err)

	accepted := <-acceptCh
	require.NoError(accepted.err)

	// Bytes written on one end arrive exactly on the other.
	payload := []byte("hello device")
	_, err = dialConn.Write(payload)
	require.NoError(err)

	buf := make([]byte, len(payload))
	require.NoError(accepted.conn.Read(buf))
	require.Equal(payload, buf)

	require.NoError(dialConn.Close())
	require.NoError(accepted.conn.Close())
}

func TestConnCloseIdempotent(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	c1, c2 := pipeConns(t, cfg)

	require.NoError(c1.Close())
	require.NoError(c1.Close())
	require.NoError(c1.Close())

	// Operations on a closed connection fail with ErrConnClosed.
	require.ErrorIs(c1.Read(make([]byte, 1)), ErrConnClosed)
	_, err := c1.Write([]byte{0x00})
	require.ErrorIs(err, ErrConnClosed)

	require.NoError(c2.Close())
}

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true},
			want: ErrResolution,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			want: ErrConnectionRefused,
		},
		{
			name: "timeout",
			err:  context.DeadlineExceeded,
			want: ErrConnectTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, classifyDialError("127.0.0.1:7010", tt.err), tt.want)
		})
	}
}
