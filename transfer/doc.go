// Package transfer implements the byte-oriented file transfer protocol used
// between SDL orchestrators and constrained lab devices.
//
// The protocol runs over a plain TCP connection and exchanges exactly one
// file per connection as three self-delimiting frames, strictly ordered:
//
//	Frame    := LengthPrefix(4 bytes, big-endian) || Payload(LengthPrefix bytes)
//	Transfer := Frame(NAME) Frame(SIZE) Frame(CONTENT)
//
// The NAME payload is a UTF-8 file name of at most 255 bytes with no path
// separators. The SIZE payload is an 8-byte big-endian unsigned integer equal
// to the exact byte length of the CONTENT payload. Declared lengths are
// validated against configured ceilings before any payload byte is read.
//
// The package splits responsibility across three layers:
//
//   - Connection management: Dial, Listen, and Listener produce a ready
//     Conn for either role, with configurable timeouts and idempotent Close.
//   - Frame codec: length-prefixed reads and writes that loop over partial
//     socket I/O until the declared length is satisfied.
//   - Session: drives one ordered exchange, verifies byte counts, persists
//     the received file, and reports a TransferResult. Terminal states close
//     the connection exactly once; failed receiver sessions never leave a
//     partial file under the advertised name.
//
// No retry is performed anywhere in this package. Retry and backoff belong to
// the workflow layer wrapping the session.
//
// Typical sender:
//
//	cfg, _ := transfer.NewConnConfig("10.0.0.5", 7010)
//	result := transfer.SendFile(ctx, cfg, "/data/run1.csv")
//
// Typical receiver:
//
//	cfg, _ := transfer.NewConnConfig("", 7010)
//	result := transfer.ReceiveFile(ctx, cfg, "/data/incoming")
package transfer
