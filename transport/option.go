package transport

import (
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	codec   Codec
	logger  Logger
	metrics *Metrics

	onMessage func(payload []byte) error
	// onError is called when a read or write fails.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	capacity    int           // decoder buffer size, used when codec is nil
	readChunk   int           // bytes requested per Read
	bufferSize  int           // size of the outbound frame queue
	idleTimeout time.Duration // read/write deadline is idleTimeout * 2
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption replaces the default bincrc codec. The codec must not
// be shared with another connection.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// CapacityOption sets the decoder buffer size of the default codec. It also
// bounds the largest payload that can be written.
func CapacityOption(capacity int) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// ReadChunkOption sets how many bytes are requested from the stream per read.
// Serial links usually deliver far fewer.
func ReadChunkOption(size int) Option {
	return func(o *options) {
		o.readChunk = size
	}
}

// BufferSizeOption returns an Option that sets the size of the send channel buffer.
// A larger buffer allows more frames to be queued before blocking.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// IdleTimeoutOption sets the idle timeout. Streams that support deadlines
// get read/write deadlines of twice this value.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption sets the frame handler. It is required and is called once
// per received payload, in stream order, from the read loop.
func OnMessageOption(cb func(payload []byte) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// MetricsOption records frame and resynchronization counters in m.
func MetricsOption(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
