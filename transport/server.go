package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler handles frames received by a Server.
type Handler interface {
	// ServeFrame is called for each payload received on conn, in order.
	// Returning an error closes the connection.
	ServeFrame(conn *Conn, payload []byte) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(conn *Conn, payload []byte) error

// ServeFrame calls f(conn, payload).
func (f HandlerFunc) ServeFrame(conn *Conn, payload []byte) error {
	return f(conn, payload)
}

// Server accepts TCP connections, typically from serial device servers,
// and runs a Conn with its own decoder for each of them.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration
	connOpts        []Option

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // closed by Close to bypass the timeout
	closeOnce   sync.Once

	conns sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server and, unless
// ServerConnOptions sets another, for its connections.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets how long the server and its connections
// keep running after the Serve context is canceled. Default is 0 (immediate
// shutdown). Call Close to skip the remaining wait.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerConnOptions sets the options applied to every accepted connection.
// OnMessageOption is always overridden by the Handler.
func ServerConnOptions(opts ...Option) ServerOption {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and runs a Conn per connection that passes
// every frame to handler. It blocks until ctx is canceled, Close is called
// or accepting fails; it then closes the running connections and waits
// for them to finish.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			timer := time.NewTimer(s.shutdownTimeout)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			case <-done:
				return
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	// Connections outlive ctx until the shutdown timeout has passed.
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		cancelConns()
		s.conns.Wait()
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return errors.Wrap(err, "accept")
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handle(connCtx, conn, handler)
		}()
	}
}

func (s *Server) handle(ctx context.Context, raw *net.TCPConn, handler Handler) {
	var cc *Conn
	opts := append([]Option{LoggerOption(s.logger)}, s.connOpts...)
	opts = append(opts, OnMessageOption(func(payload []byte) error {
		return handler.ServeFrame(cc, payload)
	}))

	cc, err := NewConn(raw, opts...)
	if err != nil {
		s.logger.Error("create connection", "remote_addr", raw.RemoteAddr(), "error", err)
		_ = raw.Close()
		return
	}

	_ = cc.Run(ctx)
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
// Any blocked Accept calls will return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	// Bypass any pending shutdown timeout, now or later.
	s.closeOnce.Do(func() {
		close(s.shutdownNow)
	})

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
