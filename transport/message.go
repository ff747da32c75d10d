package transport

import (
	"bytes"

	"github.com/Zereker/bincrc"
)

// Codec turns raw stream chunks into frame payloads and payloads into wire
// bytes. *bincrc.Codec is the implementation used by default.
//
// Decode is only called from the connection's read loop. Encode may be
// called from any goroutine that writes to the connection, so it must not
// share state with Decode.
type Codec interface {
	// Decode consumes one chunk read from the stream and returns every
	// payload it completed, in stream order. Returned slices are owned by
	// the caller.
	Decode(p []byte) ([][]byte, error)
	// Encode appends the wire form of payload to out.
	Encode(payload []byte, out *bytes.Buffer) error
}

// statsSource is implemented by codecs that expose decoder counters.
type statsSource interface {
	Stats() bincrc.Stats
}

var _ Codec = (*bincrc.Codec)(nil)
