package transfer

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// FrameKind identifies one of the three frame kinds exchanged during a
// transfer. Frames are written and read strictly in the order
// NameFrame, SizeFrame, ContentFrame.
type FrameKind uint8

const (
	// NameFrame carries the UTF-8 encoded file name.
	NameFrame FrameKind = iota
	// SizeFrame carries the total byte length of the file content as an
	// 8-byte big-endian unsigned integer.
	SizeFrame
	// ContentFrame carries the raw file bytes.
	ContentFrame
)

// String returns the string representation of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case NameFrame:
		return "NAME"
	case SizeFrame:
		return "SIZE"
	case ContentFrame:
		return "CONTENT"
	default:
		return "unknown"
	}
}

// lenPrefixSize is the fixed width of the frame length prefix:
// a 4-byte big-endian unsigned integer.
const lenPrefixSize = 4

// sizePayloadLen is the fixed width of a SIZE frame payload:
// an 8-byte big-endian unsigned integer.
const sizePayloadLen = 8

// writeFrame writes one frame to conn: the 4-byte big-endian length prefix
// immediately followed by exactly len(payload) payload bytes.
//
// The prefix and payload are written as one logical unit; a failure anywhere
// mid-frame is reported as ErrIO and leaves the stream unusable.
func writeFrame(conn *Conn, kind FrameKind, payload []byte) error {
	var prefix [lenPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := conn.Write(prefix[:]); err != nil {
		return fmt.Errorf("write %s frame length: %w: %w", kind, ErrIO, err)
	}

	if len(payload) == 0 {
		return nil
	}

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write %s frame payload: %w: %w", kind, ErrIO, err)
	}

	return nil
}

// readFrame reads one frame of the given kind from conn.
//
// It reads the 4-byte length prefix, validates the declared length against
// limit BEFORE reading any payload byte (bounding memory use regardless of
// what the peer declares), then loops until exactly that many payload bytes
// have been read. A short read or a peer that closes mid-frame is reported
// as ErrIO.
func readFrame(conn *Conn, kind FrameKind, limit uint32) ([]byte, error) {
	var prefix [lenPrefixSize]byte
	if err := conn.Read(prefix[:]); err != nil {
		return nil, fmt.Errorf("read %s frame length: %w: %w", kind, ErrIO, err)
	}

	declared := binary.BigEndian.Uint32(prefix[:])
	if declared > limit {
		return nil, fmt.Errorf("%s frame declares %d bytes, ceiling is %d: %w", kind, declared, limit, ErrFrameTooLarge)
	}

	if declared == 0 {
		return nil, nil
	}

	payload := make([]byte, declared)
	if err := conn.Read(payload); err != nil {
		return nil, fmt.Errorf("read %s frame payload: %w: %w", kind, ErrIO, err)
	}

	return payload, nil
}

// encodeSize encodes a SIZE frame payload.
func encodeSize(size uint64) []byte {
	payload := make([]byte, sizePayloadLen)
	binary.BigEndian.PutUint64(payload, size)

	return payload
}

// decodeSize decodes a SIZE frame payload.
func decodeSize(payload []byte) (uint64, error) {
	if len(payload) != sizePayloadLen {
		return 0, fmt.Errorf("SIZE payload is %d bytes, want %d: %w", len(payload), sizePayloadLen, ErrIO)
	}

	return binary.BigEndian.Uint64(payload), nil
}

// validateFileName rejects names that are empty, not valid UTF-8, longer than
// limit bytes, or that contain a path separator. The separator check prevents
// path traversal when the receiver uses the name to create a local file.
func validateFileName(name string, limit uint32) error {
	if name == "" {
		return fmt.Errorf("empty file name: %w", ErrInvalidName)
	}

	if uint32(len(name)) > limit {
		return fmt.Errorf("file name is %d bytes, limit is %d: %w", len(name), limit, ErrInvalidName)
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("file name is not valid UTF-8: %w", ErrInvalidName)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("file name %q contains a path separator: %w", name, ErrInvalidName)
	}

	return nil
}
