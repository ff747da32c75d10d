// Package transport moves bincrc frames over byte streams.
// It drives a decoder from a read loop, queues encoded frames for a write
// loop, and provides a TCP server for serial-over-network gateways.
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/bincrc"
)

// Errors returned by connection operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned when the send queue cannot take another frame.
	// The frame was not queued; retry with WriteBlocking or WriteTimeout, or drop it.
	ErrBufferFull = errors.New("send buffer full")
)

// Default configuration values.
const (
	// defaultBufferSize is the default size of the outbound frame queue.
	defaultBufferSize = 1
	// defaultReadChunk is the default number of bytes requested per read.
	defaultReadChunk = 256
	// defaultIdleTimeout is doubled to form read/write deadlines.
	defaultIdleTimeout = 30 * time.Second
)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// Conn carries bincrc frames over one byte stream: a serial device, a TCP
// socket or anything else that reads and writes bytes.
type Conn struct {
	rw     io.ReadWriteCloser
	codec  Codec
	logger Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool

	mu     sync.Mutex // guards ctx and cancel
	ctx    context.Context
	cancel context.CancelFunc

	// last decoder snapshot pushed to metrics; read loop only.
	lastStats bincrc.Stats
}

// NewConn wraps rw. OnMessageOption is required.
func NewConn(rw io.ReadWriteCloser, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(rw, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readChunk <= 0 {
		opts.readChunk = defaultReadChunk
	}

	if opts.capacity <= 0 {
		opts.capacity = bincrc.DefaultCapacity
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}

	if opts.codec == nil {
		opts.codec = bincrc.NewCodec(opts.capacity)
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newConnWithOptions(rw io.ReadWriteCloser, opts options) *Conn {
	return &Conn{
		rw:      rw,
		codec:   opts.codec,
		logger:  opts.logger,
		opts:    opts,
		sendMsg: make(chan []byte, opts.bufferSize),
	}
}

// Run starts the read and write loops and blocks until one of them fails
// or ctx is canceled. The stream is closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.addrString())
	c.logger.Debug("connection options", "addr", c.addrString(),
		"buffer_size", c.opts.bufferSize,
		"read_chunk", c.opts.readChunk,
		"capacity", c.opts.capacity,
		"idle_timeout", c.opts.idleTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, child := errgroup.WithContext(ctx)

	c.mu.Lock()
	c.ctx = child
	c.cancel = cancel
	c.mu.Unlock()
	// Close may have run before cancel was published.
	if c.closed.Load() {
		cancel()
	}

	// A blocked Read only returns once the stream is closed.
	stop := context.AfterFunc(child, func() {
		_ = c.rw.Close()
	})
	defer stop()

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.addrString(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.addrString())
	}

	return err
}

// Close cancels Run and closes the stream. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.rw.Close()
}

// Context returns the context of the running connection. It is done once
// Run starts shutting down. Before Run it returns context.Background().
func (c *Conn) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write encodes payload and queues it without blocking.
//
// Returns:
//   - nil: frame was queued (not yet sent)
//   - ErrBufferFull: queue is full, frame was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - bincrc.ErrInvalidLength or bincrc.ErrTooBig: payload cannot be framed
func (c *Conn) Write(payload []byte) error {
	frame, err := c.encode(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking encodes payload and waits until it is queued or ctx is done.
func (c *Conn) WriteBlocking(ctx context.Context, payload []byte) error {
	frame, err := c.encode(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout is like WriteBlocking with a timeout instead of a context.
// It returns ErrBufferFull if the timeout expires.
func (c *Conn) WriteTimeout(payload []byte, timeout time.Duration) error {
	frame, err := c.encode(payload)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- frame:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// Addr returns the remote address, or nil if the stream has none.
func (c *Conn) Addr() net.Addr {
	if ra, ok := c.rw.(remoteAddresser); ok {
		return ra.RemoteAddr()
	}
	return nil
}

func (c *Conn) addrString() string {
	if addr := c.Addr(); addr != nil {
		return addr.String()
	}
	return "stream"
}

func (c *Conn) encode(payload []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	var buf bytes.Buffer
	if err := c.codec.Encode(payload, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readLoop reads chunks from the stream, feeds them to the codec and hands
// every completed payload to onMessage. Malformed bytes never surface here;
// the codec skips them.
func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, c.opts.readChunk)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d, ok := c.rw.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))
		}

		n, err := c.rw.Read(buf)
		if n > 0 {
			if herr := c.deliver(buf[:n]); herr != nil {
				return herr
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = &bincrc.IOError{Op: "read", Err: err}
			// The peer is gone; retrying cannot help.
			if errors.Is(err, io.EOF) {
				return err
			}

			c.logger.Debug("read error", "addr", c.addrString(), "error", err)
			if c.opts.onError(err) == Disconnect {
				return err
			}
		}
	}
}

func (c *Conn) deliver(chunk []byte) error {
	frames, err := c.codec.Decode(chunk)
	if err != nil {
		return errors.Wrap(err, "decode")
	}

	if s, ok := c.codec.(statsSource); ok {
		cur := s.Stats()
		c.opts.metrics.observeDecoder(c.lastStats, cur)
		if cur.Overflows != c.lastStats.Overflows {
			c.logger.Warn("decoder buffer overflow, pending bytes dropped", "addr", c.addrString(),
				"dropped", cur.Dropped-c.lastStats.Dropped)
		}
		c.lastStats = cur
	}

	for _, payload := range frames {
		if err := c.opts.onMessage(payload); err != nil {
			return errors.WithMessage(err, "on message")
		}
	}
	return nil
}

// writeLoop sends queued frames until ctx is canceled or a write fails.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-c.sendMsg:
			if err := c.write(frame); err != nil {
				return err
			}
		}
	}
}

// write sends one frame. A failure is returned only if onError says Disconnect.
func (c *Conn) write(frame []byte) error {
	if d, ok := c.rw.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))
	}

	if _, err := c.rw.Write(frame); err != nil {
		err = &bincrc.IOError{Op: "write", Err: err}
		c.logger.Debug("write error", "addr", c.addrString(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
		return nil
	}

	c.opts.metrics.frameSent()
	return nil
}

// closeConn marks the connection as closed and closes the stream.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	_ = c.rw.Close()
}
