package wire

import "errors"

// ErrIncompleteFrame is returned when the stream is exhausted before one
// primitive finishes decoding. No bytes already consumed by the caller are
// un-read; the caller simply waits for more data to arrive (spec §4.1).
var ErrIncompleteFrame = errors.New("wire: incomplete frame")

// ErrFrameTooLarge is returned when a length-prefixed field's declared
// length exceeds the configured frame cap. The connection must be closed
// by the caller; this error is not recoverable in-stream.
var ErrFrameTooLarge = errors.New("wire: frame too large")

// ErrProtocol covers malformed structure that isn't a short read or an
// oversized length field: an unexpected list marker, an unknown opcode, or
// an opcode arriving at the wrong handshake state.
var ErrProtocol = errors.New("wire: protocol error")
