// Package bincrc implements a streaming codec for length-delimited,
// CRC-protected frames on point-to-point serial links.
//
// A frame on the wire is
//
//	selector | length | payload | crc16 (big-endian) | 0x03
//
// where selector 0x02 carries a 1-byte length (1..255) and selector 0x03 a
// 2-byte big-endian length (>= 255). The CRC is CRC-16/XMODEM over the
// payload only.
//
// The Decoder accepts bytes one at a time from an unsynchronized or noisy
// stream and recovers frame boundaries using a buffer whose capacity is fixed
// at construction. Malformed input is never reported as an error: the decoder
// skips it one byte at a time until a valid frame starts.
package bincrc

// Selector bytes.
const (
	// SelectorLen8 starts a frame with a 1-byte payload length.
	SelectorLen8 byte = 0x02
	// SelectorLen16 starts a frame with a 2-byte big-endian payload length.
	SelectorLen16 byte = 0x03
	// SelectorLen24 is reserved for oversized frames and always rejected.
	SelectorLen24 byte = 0x04
)

// Terminator ends every frame.
const Terminator byte = 0x03

const (
	// MaxShortPayload is the largest payload encoded with a 1-byte length.
	MaxShortPayload = 255
	// MinLongPayload is the smallest length accepted in the 2-byte form.
	// 255 itself is accepted on decode; encoders use the 1-byte form for it.
	MinLongPayload = 255
	// MaxWirePayload bounds the 2-byte form for SizeHint and the
	// package-level encoder.
	MaxWirePayload = 512

	crcLen     = 2
	trailerLen = crcLen + 1

	// MinCapacity is the smallest decoder buffer able to hold a frame with a
	// 1-byte payload.
	MinCapacity = 2 + 1 + trailerLen
)

// HeaderLen returns the header size used to encode a payload of n bytes.
func HeaderLen(n int) int {
	if n <= MaxShortPayload {
		return 2
	}
	return 3
}

// FrameLen returns the wire size of a frame carrying n payload bytes.
func FrameLen(n int) int {
	return HeaderLen(n) + n + trailerLen
}

// maxPayloadFor returns the largest payload whose whole frame fits in a
// buffer of the given capacity.
func maxPayloadFor(capacity int) int {
	long := capacity - 3 - trailerLen
	if long > 0xffff {
		long = 0xffff
	}
	if long > MaxShortPayload {
		return long
	}
	short := capacity - 2 - trailerLen
	if short > MaxShortPayload {
		short = MaxShortPayload
	}
	return short
}
