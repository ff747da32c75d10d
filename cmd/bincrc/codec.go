package main

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/Zereker/bincrc"
)

// Decode output formats.
const (
	formatHex     = "hex"
	formatRaw     = "raw"
	formatMsgpack = "msgpack"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: hex, raw, msgpack",
	Value:   formatHex,
}

// Record is one decoded payload in msgpack output.
type Record struct {
	Seq     uint64 `msgpack:"seq"`
	Len     int    `msgpack:"len"`
	Payload []byte `msgpack:"payload"`
}

// setup resolves the config and builds the logger for an action.
func setup(c *cli.Context) (*Config, *zap.Logger, error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format, c.App.ErrWriter)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openInput returns --in or the app reader.
func openInput(c *cli.Context) (io.ReadCloser, error) {
	path := c.String(InFlag.Name)
	if path == "" || path == "-" {
		return io.NopCloser(c.App.Reader), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return f, nil
}

// EncodeCommand returns the encode command.
func EncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Wrap stdin into one wire frame",
		ArgsUsage: " ",
		Flags:     []cli.Flag{CapacityFlag, InFlag, HexFlag},
		Action:    encodeAction,
	}
}

func encodeAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := openInput(c)
	if err != nil {
		return err
	}
	defer in.Close()

	payload, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "read payload")
	}

	enc := bincrc.NewEncoder(cfg.Capacity)
	frame, err := enc.AppendFrame(nil, payload)
	if err != nil {
		return cli.Exit(errors.Wrapf(err, "encode %d bytes (max %d)", len(payload), enc.MaxPayload()).Error(), 2)
	}
	logger.Debug("encoded frame", zap.Int("payload", len(payload)), zap.Int("frame", len(frame)))

	if c.Bool(HexFlag.Name) {
		_, err = io.WriteString(c.App.Writer, hex.EncodeToString(frame)+"\n")
	} else {
		_, err = c.App.Writer.Write(frame)
	}
	return errors.Wrap(err, "write frame")
}

// DecodeCommand returns the decode command.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Extract payloads from a wire stream",
		ArgsUsage: " ",
		Flags:     []cli.Flag{CapacityFlag, InFlag, formatFlag},
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	write, err := payloadWriter(c.App.Writer, c.String(formatFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	in, err := openInput(c)
	if err != nil {
		return err
	}
	defer in.Close()

	codec := bincrc.NewCodec(cfg.Capacity)
	var (
		seq      uint64
		writeErr error
	)
	n, err := codec.ReadFrom(in, func(payload []byte) {
		if writeErr != nil {
			return
		}
		seq++
		writeErr = write(seq, payload)
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return errors.Wrap(writeErr, "write payload")
	}

	st := codec.Stats()
	logger.Info("decode finished",
		zap.Int64("bytes", n),
		zap.Uint64("frames", st.Frames),
		zap.Uint64("discarded", st.Discarded),
		zap.Uint64("crc_errors", st.CRCErrors),
		zap.Uint64("overflows", st.Overflows),
		zap.Uint64("dropped", st.Dropped),
		zap.Int("pending", codec.Decoder().Pending()),
	)
	return nil
}

// payloadWriter returns a function that writes one payload to w in format.
func payloadWriter(w io.Writer, format string) (func(seq uint64, payload []byte) error, error) {
	switch format {
	case formatHex:
		return func(_ uint64, payload []byte) error {
			_, err := io.WriteString(w, hex.EncodeToString(payload)+"\n")
			return err
		}, nil
	case formatRaw:
		return func(_ uint64, payload []byte) error {
			_, err := w.Write(payload)
			return err
		}, nil
	case formatMsgpack:
		enc := msgpack.NewEncoder(w)
		return func(seq uint64, payload []byte) error {
			return enc.Encode(&Record{Seq: seq, Len: len(payload), Payload: payload})
		}, nil
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
}

// parsePayloads turns command arguments into payloads.
func parsePayloads(args []string, isHex bool) ([][]byte, error) {
	payloads := make([][]byte, 0, len(args))
	for _, arg := range args {
		if !isHex {
			payloads = append(payloads, []byte(arg))
			continue
		}
		p, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
		if err != nil {
			return nil, errors.Wrapf(err, "payload %q", arg)
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}
