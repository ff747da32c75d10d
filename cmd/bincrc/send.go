package main

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Zereker/bincrc"
)

var (
	addrFlag = &cli.StringFlag{
		Name:     "addr",
		Aliases:  []string{"a"},
		Usage:    "Server address",
		Required: true,
	}

	repliesFlag = &cli.IntFlag{
		Name:  "replies",
		Usage: "Wait for this many frames back and print them as hex",
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Dial, send and reply timeout",
		Value: 5 * time.Second,
	}
)

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send each argument as one frame",
		ArgsUsage: "payload...",
		Flags:     []cli.Flag{CapacityFlag, addrFlag, HexFlag, repliesFlag, timeoutFlag},
		Action:    sendAction,
	}
}

func sendAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if c.NArg() == 0 {
		return cli.Exit("send: at least one payload is required", 2)
	}
	payloads, err := parsePayloads(c.Args().Slice(), c.Bool(HexFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	return send(ctx, cfg, logger, c.String(addrFlag.Name), payloads, c.Int(repliesFlag.Name), c.App.Writer)
}

// send writes one frame per payload to addr and, if replies > 0, prints
// that many received payloads to out as hex lines.
func send(ctx context.Context, cfg *Config, logger *zap.Logger, addr string, payloads [][]byte, replies int, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	codec := bincrc.NewCodec(cfg.Capacity)
	for _, p := range payloads {
		if err := codec.WriteFrame(conn, p); err != nil {
			return errors.Wrapf(err, "send %d bytes", len(p))
		}
		logger.Debug("sent frame", zap.String("addr", addr), zap.Int("len", len(p)))
	}

	if replies <= 0 {
		return nil
	}

	var (
		got      int
		writeErr error
	)
	buf := make([]byte, cfg.ReadChunk)
	for got < replies {
		n, err := conn.Read(buf)
		codec.Decoder().Feed(buf[:n], func(payload []byte) {
			if got >= replies || writeErr != nil {
				return
			}
			got++
			_, writeErr = io.WriteString(out, hex.EncodeToString(payload)+"\n")
		})
		if writeErr != nil {
			return errors.Wrap(writeErr, "write reply")
		}
		if err != nil && got < replies {
			return errors.Wrapf(&bincrc.IOError{Op: "read", Err: err}, "waiting for reply %d of %d", got+1, replies)
		}
	}
	return nil
}
