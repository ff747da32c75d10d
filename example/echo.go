package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Zereker/bincrc/transport"
)

// echoServer writes every received frame back to its sender and counts
// frames per peer.
type echoServer struct {
	sync.Mutex
	frames map[string]int
}

func newEchoServer() *echoServer {
	return &echoServer{frames: make(map[string]int)}
}

func (s *echoServer) ServeFrame(conn *transport.Conn, payload []byte) error {
	n := s.count(conn)
	slog.Info("frame", "addr", conn.Addr(), "len", len(payload), "seq", n)

	// Echo, waiting for room in the send queue.
	return conn.WriteBlocking(conn.Context(), payload)
}

func (s *echoServer) count(conn *transport.Conn) int {
	s.Lock()
	defer s.Unlock()

	key := "stream"
	if addr := conn.Addr(); addr != nil {
		key = addr.String()
	}
	s.frames[key]++
	return s.frames[key]
}

func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		panic(err)
	}

	server, err := transport.New(addr,
		transport.ServerConnOptions(
			transport.CapacityOption(1024),
			transport.BufferSizeOption(8),
			transport.OnErrorOption(func(err error) transport.ErrorAction {
				slog.Error("connection error", "error", err)
				return transport.Disconnect
			}),
		),
	)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, newEchoServer()); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
