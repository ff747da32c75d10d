package bincrc

import "github.com/pkg/errors"

// Errors returned by the encoder. The decoder never returns errors.
var (
	// ErrInvalidLength is returned when a payload length cannot be encoded
	// for the configured capacity.
	ErrInvalidLength = errors.New("bincrc: invalid payload length")
	// ErrNotEnoughSpace is returned when the destination buffer is smaller
	// than the encoded frame.
	ErrNotEnoughSpace = errors.New("bincrc: not enough space in destination")
	// ErrTooBig is returned by SizeHint for lengths outside the encodable range.
	ErrTooBig = errors.New("bincrc: payload too big")
	// ErrIO matches every *IOError.
	ErrIO = errors.New("bincrc: i/o error")
)

// IOError reports a failure of the underlying byte stream while reading or
// writing frames. Err is the transport error, unchanged.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "bincrc: " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
