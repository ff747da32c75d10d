package main

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/bincrc/transport"
)

var (
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		Aliases: []string{"l"},
		Usage:   "TCP address to accept frames on",
	}

	echoFlag = &cli.BoolFlag{
		Name:  "echo",
		Usage: "Write every received frame back to its sender",
	}

	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Serve prometheus metrics on this address",
	}
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Accept TCP connections and decode frames from each",
		Flags:  []cli.Flag{CapacityFlag, listenFlag, echoFlag, metricsAddrFlag},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, nil)
}

// serve runs the frame server until ctx is canceled. ready, when not nil,
// receives the bound address once the listener is up.
func serve(ctx context.Context, cfg *Config, logger *zap.Logger, ready chan<- net.Addr) error {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Serve.Listen)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", cfg.Serve.Listen)
	}

	connOpts := []transport.Option{
		transport.CapacityOption(cfg.Capacity),
		transport.ReadChunkOption(cfg.ReadChunk),
		transport.BufferSizeOption(cfg.BufferSize),
		transport.IdleTimeoutOption(cfg.IdleTimeout),
	}
	if cfg.Serve.MetricsAddr != "" {
		connOpts = append(connOpts, transport.MetricsOption(transport.DefaultMetrics()))
	}

	server, err := transport.New(addr,
		transport.ServerLoggerOption(newTransportLogger(logger)),
		transport.ServerShutdownTimeoutOption(cfg.Serve.ShutdownTimeout),
		transport.ServerConnOptions(connOpts...),
	)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- server.Addr()
	}

	handler := transport.HandlerFunc(func(conn *transport.Conn, payload []byte) error {
		logger.Info("frame",
			zap.Stringer("addr", conn.Addr()),
			zap.Int("len", len(payload)),
			zap.String("payload", hex.EncodeToString(payload)),
		)
		if cfg.Serve.Echo {
			// Blocks the read loop until the send queue has room.
			return conn.WriteBlocking(conn.Context(), payload)
		}
		return nil
	})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := server.Serve(gctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if cfg.Serve.MetricsAddr != "" {
		metrics := &http.Server{
			Addr:              cfg.Serve.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.Serve.MetricsAddr))
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			return metrics.Shutdown(context.WithoutCancel(gctx))
		})
	}

	return group.Wait()
}
