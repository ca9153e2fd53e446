package transfer

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipeConns returns two connected Conn ends backed by net.Pipe.
func pipeConns(t *testing.T, cfg *ConnConfig) (*Conn, *Conn) {
	t.Helper()

	c1, c2 := net.Pipe()
	conn1 := newConn(c1, cfg)
	conn2 := newConn(c2, cfg)

	t.Cleanup(func() {
		_ = conn1.Close()
		_ = conn2.Close()
	})

	return conn1, conn2
}

func testConfig(t *testing.T, opts ...ConnOption) *ConnConfig {
	t.Helper()

	cfg, err := NewConnConfig("127.0.0.1", 7010, opts...)
	require.NoError(t, err)

	return cfg
}

func TestFrameKindString(t *testing.T) {
	require := require.New(t)

	require.Equal("NAME", NameFrame.String())
	require.Equal("SIZE", SizeFrame.String())
	require.Equal("CONTENT", ContentFrame.String())
	require.Equal("unknown", FrameKind(99).String())
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		kind    FrameKind
		payload []byte
		limit   uint32
	}{
		{name: "name frame", kind: NameFrame, payload: []byte("run1.csv"), limit: DefaultMaxNameLen},
		{name: "size frame", kind: SizeFrame, payload: encodeSize(1024), limit: sizePayloadLen},
		{name: "content frame", kind: ContentFrame, payload: make([]byte, 1024), limit: DefaultMaxContentSize},
		{name: "empty payload", kind: ContentFrame, payload: nil, limit: DefaultMaxContentSize},
	}

	cfg := testConfig(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			sender, receiver := pipeConns(t, cfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- writeFrame(sender, tt.kind, tt.payload)
			}()

			payload, err := readFrame(receiver, tt.kind, tt.limit)
			require.NoError(err)
			require.Equal(tt.payload, payload)
			require.NoError(<-errCh)
		})
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	sender, receiver := pipeConns(t, cfg)

	// Declare a giant NAME frame; the receiver must reject it from the prefix
	// alone, before any payload byte is read.
	go func() {
		var prefix [lenPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], 1<<20)
		_, _ = sender.Write(prefix[:])
	}()

	_, err := readFrame(receiver, NameFrame, DefaultMaxNameLen)
	require.ErrorIs(err, ErrFrameTooLarge)
}

func TestReadFramePeerClosedMidFrame(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t)
	sender, receiver := pipeConns(t, cfg)

	// Declare 64 payload bytes but deliver only 10 before closing.
	go func() {
		var prefix [lenPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], 64)
		_, _ = sender.Write(prefix[:])
		_, _ = sender.Write(make([]byte, 10))
		_ = sender.Close()
	}()

	_, err := readFrame(receiver, ContentFrame, DefaultMaxContentSize)
	require.ErrorIs(err, ErrIO)
}

func TestSizeCodec(t *testing.T) {
	require := require.New(t)

	payload := encodeSize(1024)
	require.Len(payload, sizePayloadLen)

	size, err := decodeSize(payload)
	require.NoError(err)
	require.Equal(uint64(1024), size)

	_, err = decodeSize([]byte{0x01, 0x02})
	require.ErrorIs(err, ErrIO)
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		limit    uint32
		wantErr  error
	}{
		{name: "valid", fileName: "run1.csv", limit: DefaultMaxNameLen},
		{name: "empty", fileName: "", limit: DefaultMaxNameLen, wantErr: ErrInvalidName},
		{name: "slash", fileName: "../run1.csv", limit: DefaultMaxNameLen, wantErr: ErrInvalidName},
		{name: "backslash", fileName: `..\run1.csv`, limit: DefaultMaxNameLen, wantErr: ErrInvalidName},
		{name: "too long", fileName: string(make([]byte, 300)), limit: DefaultMaxNameLen, wantErr: ErrInvalidName},
		{name: "invalid utf8", fileName: string([]byte{0xff, 0xfe}), limit: DefaultMaxNameLen, wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.fileName, tt.limit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
