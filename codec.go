package bincrc

import (
	"bytes"
	"io"
)

// DefaultCapacity fits the largest payload allowed by MaxWirePayload.
const DefaultCapacity = 1024

// Codec glues a Decoder and an Encoder of the same capacity to byte
// buffers and streams. Like Decoder, a Codec belongs to one stream.
type Codec struct {
	dec *Decoder
	enc *Encoder
}

// NewCodec returns a Codec whose decoder buffer holds capacity bytes.
func NewCodec(capacity int) *Codec {
	return &Codec{
		dec: NewDecoder(capacity),
		enc: NewEncoder(capacity),
	}
}

// Decoder returns the underlying decoder.
func (c *Codec) Decoder() *Decoder {
	return c.dec
}

// Encoder returns the underlying encoder.
func (c *Codec) Encoder() *Encoder {
	return c.enc
}

// Stats returns the decoder counters.
func (c *Codec) Stats() Stats {
	return c.dec.Stats()
}

// Decode feeds p through the decoder and returns the frames it completed,
// in order. Each returned payload is a copy. An empty p yields nil.
func (c *Codec) Decode(p []byte) ([][]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	frames := make([][]byte, 0, 1)
	c.dec.Feed(p, func(payload []byte) {
		frames = append(frames, append([]byte(nil), payload...))
	})
	return frames, nil
}

// Encode appends the frame for payload to out.
func (c *Codec) Encode(payload []byte, out *bytes.Buffer) error {
	size, err := c.enc.SizeHint(len(payload))
	if err != nil {
		return err
	}
	scratch := make([]byte, size)
	if _, err := c.enc.CommitFrame(payload, scratch); err != nil {
		return err
	}
	out.Write(scratch)
	return nil
}

// WriteFrame encodes payload and writes it to w in a single Write call.
func (c *Codec) WriteFrame(w io.Writer, payload []byte) error {
	frame, err := c.enc.AppendFrame(nil, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// ReadFrom reads r until EOF, calling sink for every frame found. The
// payload is only valid until sink returns. It returns the number of bytes
// read; a clean EOF is not an error.
func (c *Codec) ReadFrom(r io.Reader, sink func(payload []byte)) (int64, error) {
	buf := make([]byte, 256)
	var total int64
	for {
		n, err := r.Read(buf)
		total += int64(n)
		c.dec.Feed(buf[:n], sink)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, &IOError{Op: "read", Err: err}
		}
	}
}
