package bincrc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SizeHint returns the wire size of a frame carrying n payload bytes. It
// fails with ErrTooBig above MaxWirePayload.
//
// SizeHint(0) fails with ErrInvalidLength instead of reporting the 5 bytes
// an empty frame would take: a zero length byte is rejected by every
// Decoder, so such a frame is never worth sizing or sending.
func SizeHint(n int) (int, error) {
	return sizeHint(n, MaxWirePayload)
}

// CommitFrame writes the frame for payload into dst using the
// MaxWirePayload bound and returns the number of bytes written.
func CommitFrame(payload, dst []byte) (int, error) {
	return commitFrame(payload, dst, MaxWirePayload)
}

// AppendFrame appends the frame for payload to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	return appendFrame(dst, payload, MaxWirePayload)
}

// Encoder serializes frames that a Decoder of the same capacity can read
// back. Both SizeHint and CommitFrame are bound by that capacity.
type Encoder struct {
	maxPayload int
}

// NewEncoder returns an Encoder matching a decoder buffer of the given
// capacity. The capacity is raised to MinCapacity if smaller.
func NewEncoder(capacity int) *Encoder {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Encoder{maxPayload: maxPayloadFor(capacity)}
}

// MaxPayload returns the largest payload the encoder accepts.
func (e *Encoder) MaxPayload() int {
	return e.maxPayload
}

// SizeHint returns the wire size of a frame carrying n payload bytes, or
// ErrTooBig if n exceeds MaxPayload.
func (e *Encoder) SizeHint(n int) (int, error) {
	return sizeHint(n, e.maxPayload)
}

// CommitFrame writes the frame for payload into dst and returns the number
// of bytes written. dst must be at least SizeHint(len(payload)) long.
func (e *Encoder) CommitFrame(payload, dst []byte) (int, error) {
	return commitFrame(payload, dst, e.maxPayload)
}

// AppendFrame appends the frame for payload to dst.
func (e *Encoder) AppendFrame(dst, payload []byte) ([]byte, error) {
	return appendFrame(dst, payload, e.maxPayload)
}

func sizeHint(n, limit int) (int, error) {
	if n == 0 {
		return 0, ErrInvalidLength
	}
	if n < 0 || n > limit {
		return 0, ErrTooBig
	}
	return FrameLen(n), nil
}

func commitFrame(payload, dst []byte, limit int) (int, error) {
	n := len(payload)
	if n == 0 || n > limit {
		return 0, ErrInvalidLength
	}
	size := FrameLen(n)
	if len(dst) < size {
		return 0, ErrNotEnoughSpace
	}

	var off int
	if n <= MaxShortPayload {
		dst[0] = SelectorLen8
		dst[1] = byte(n)
		off = 2
	} else {
		dst[0] = SelectorLen16
		binary.BigEndian.PutUint16(dst[1:3], uint16(n))
		off = 3
	}
	off += copy(dst[off:], payload)
	binary.BigEndian.PutUint16(dst[off:], Checksum(payload))
	dst[off+crcLen] = Terminator
	return size, nil
}

func appendFrame(dst, payload []byte, limit int) ([]byte, error) {
	size, err := sizeHint(len(payload), limit)
	if err != nil {
		if errors.Is(err, ErrTooBig) {
			err = ErrInvalidLength
		}
		return dst, err
	}
	start := len(dst)
	if cap(dst)-start < size {
		grown := make([]byte, start, start+size)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+size]
	if _, err := commitFrame(payload, dst[start:], limit); err != nil {
		return dst[:start], err
	}
	return dst, nil
}
