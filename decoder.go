package bincrc

import "encoding/binary"

// Stats counts what a Decoder has done with its input.
type Stats struct {
	// Frames is the number of payloads delivered to a sink.
	Frames uint64
	// Discarded is the number of bytes skipped while resynchronizing.
	Discarded uint64
	// CRCErrors counts complete candidate frames rejected by their CRC.
	CRCErrors uint64
	// Overflows counts hard resets of a saturated buffer.
	Overflows uint64
	// Dropped is the number of pending bytes thrown away by those resets.
	Dropped uint64
}

// Decoder extracts frames from a byte stream. The zero value is not usable;
// create one with NewDecoder.
//
// A Decoder is owned by a single stream and must not be used concurrently.
// Sinks must not feed bytes back into the Decoder that called them.
type Decoder struct {
	buf []byte

	// Valid bytes lie in buf[readIdx:writeIdx].
	readIdx  int
	writeIdx int
	// bytesLeft is how many more bytes the current candidate frame needs
	// before scanning can make progress. Zero means scan now.
	bytesLeft int

	stats Stats
}

// NewDecoder returns a Decoder with a buffer of the given capacity. The
// capacity is raised to MinCapacity if smaller. The buffer is allocated once
// and never grows.
func NewDecoder(capacity int) *Decoder {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Decoder{buf: make([]byte, capacity)}
}

// Capacity returns the size of the decoder buffer.
func (d *Decoder) Capacity() int {
	return len(d.buf)
}

// Pending returns the number of buffered bytes not yet delivered or skipped.
func (d *Decoder) Pending() int {
	return d.writeIdx - d.readIdx
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Reset discards all buffered bytes. Counters are kept.
func (d *Decoder) Reset() {
	d.readIdx = 0
	d.writeIdx = 0
	d.bytesLeft = 0
}

// Feed passes every byte of p through EatByte, in order.
func (d *Decoder) Feed(p []byte, sink func(payload []byte)) {
	for _, b := range p {
		d.EatByte(b, sink)
	}
}

// EatByte appends one byte to the stream and calls sink once for every frame
// completed by it, in stream order. The payload slice aliases the decoder
// buffer and is only valid until sink returns.
func (d *Decoder) EatByte(b byte, sink func(payload []byte)) {
	capacity := len(d.buf)
	pending := d.writeIdx - d.readIdx

	// No frame boundary within a full buffer: start over from this byte.
	if pending >= capacity {
		d.stats.Overflows++
		d.stats.Dropped += uint64(pending)
		d.buf[0] = b
		d.readIdx = 0
		d.writeIdx = 1
		d.bytesLeft = 0
		return
	}

	// Out of room at the tail: move the pending run to the head.
	if d.writeIdx >= capacity {
		copy(d.buf, d.buf[d.readIdx:d.writeIdx])
		d.readIdx = 0
		d.writeIdx = pending
	}

	d.buf[d.writeIdx] = b
	d.writeIdx++
	pending++

	if d.bytesLeft > 1 {
		d.bytesLeft--
		return
	}

	lookahead := pending
	for i := 0; i < pending; i++ {
		res, n, payload := d.scan(lookahead)
		if res == needMoreBytes {
			break
		}
		if res == consumed {
			d.stats.Frames++
			sink(payload)
		} else {
			d.stats.Discarded++
		}
		d.readIdx += n
		lookahead -= n
	}

	if d.readIdx == d.writeIdx {
		d.readIdx = 0
		d.writeIdx = 0
	}
}

type scanResult int

const (
	needMoreBytes scanResult = iota
	invalidData
	consumed
)

// scan checks whether a complete, valid frame starts at readIdx, looking at
// no more than avail bytes. It returns the number of bytes to advance over:
// 1 for invalidData, the whole frame length for consumed.
func (d *Decoder) scan(avail int) (scanResult, int, []byte) {
	if avail == 0 {
		d.bytesLeft = 1
		return needMoreBytes, 0, nil
	}
	d.bytesLeft = 0

	frame := d.buf[d.readIdx : d.readIdx+avail]

	var hdrLen int
	switch frame[0] {
	case SelectorLen8:
		hdrLen = 2
	case SelectorLen16:
		hdrLen = 3
	default:
		// SelectorLen24 and anything else.
		return invalidData, 1, nil
	}

	if avail < hdrLen {
		d.bytesLeft = hdrLen - avail
		return needMoreBytes, 0, nil
	}

	var payloadLen int
	if hdrLen == 2 {
		payloadLen = int(frame[1])
		if payloadLen == 0 {
			return invalidData, 1, nil
		}
	} else {
		payloadLen = int(binary.BigEndian.Uint16(frame[1:3]))
		if payloadLen < MinLongPayload {
			return invalidData, 1, nil
		}
	}

	// Never fits. Frames that fit only without their header and trailer
	// are left to the overflow reset in EatByte.
	if payloadLen > len(d.buf) {
		return invalidData, 1, nil
	}
	total := hdrLen + payloadLen + trailerLen
	if avail < total {
		d.bytesLeft = total - avail
		return needMoreBytes, 0, nil
	}

	if frame[total-1] != Terminator {
		return invalidData, 1, nil
	}

	payload := frame[hdrLen : hdrLen+payloadLen]
	got := binary.BigEndian.Uint16(frame[hdrLen+payloadLen:])
	if Checksum(payload) != got {
		d.stats.CRCErrors++
		return invalidData, 1, nil
	}
	return consumed, total, payload
}
