package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
)

var _ Logger = slog.Default()

type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger records every entry.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *mockLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *mockLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

// find returns the first entry with msg.
func (l *mockLogger) find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// arg returns the value logged under key.
func (e logEntry) arg(key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == key {
			return e.args[i+1]
		}
	}
	return nil
}

func TestDefaultLogger(t *testing.T) {
	if defaultLogger() != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
	if NopLogger() == nil {
		t.Fatal("NopLogger returned nil")
	}
}

func TestConn_LogsLifecycle(t *testing.T) {
	logger := &mockLogger{}
	stream := &mockStream{steps: []readStep{{data: frameOf(t, "bye")}}}

	conn, err := NewConn(stream,
		OnMessageOption(noopOnMessage),
		LoggerOption(logger),
		CapacityOption(128),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	_ = conn.Run(context.Background())

	if e, ok := logger.find("connection established"); !ok || e.level != "info" || e.arg("addr") != "stream" {
		t.Errorf("connection established entry = %+v, found %v", e, ok)
	}
	if e, ok := logger.find("connection options"); !ok || e.arg("capacity") != 128 {
		t.Errorf("connection options entry = %+v, found %v", e, ok)
	}
	e, ok := logger.find("connection closed with error")
	if !ok {
		t.Fatal("peer EOF was not logged")
	}
	if err, _ := e.arg("error").(error); err == nil {
		t.Errorf("closed entry carries no error: %+v", e)
	}
}

func TestConn_LogsCanceledAsClosed(t *testing.T) {
	logger := &mockLogger{}
	conn, err := NewConn(&mockStream{}, OnMessageOption(noopOnMessage), LoggerOption(logger))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	_ = conn.Close()
	_ = conn.Run(context.Background())

	if _, ok := logger.find("connection closed"); !ok {
		t.Error("cancellation should log a plain close")
	}
	if _, ok := logger.find("connection closed with error"); ok {
		t.Error("cancellation should not be logged as an error")
	}
}

func TestConn_LogsOverflow(t *testing.T) {
	logger := &mockLogger{}
	// A header announcing 15 bytes cannot complete in a 16 byte buffer.
	junk := append([]byte{0x02, 0x0f}, make([]byte, 20)...)
	stream := &mockStream{steps: []readStep{{data: junk}}}

	conn, err := NewConn(stream,
		OnMessageOption(noopOnMessage),
		LoggerOption(logger),
		CapacityOption(16),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	_ = conn.Run(context.Background())

	e, ok := logger.find("decoder buffer overflow, pending bytes dropped")
	if !ok || e.level != "warn" {
		t.Fatalf("overflow entry = %+v, found %v", e, ok)
	}
	if e.arg("dropped") != uint64(16) {
		t.Errorf("dropped = %v, want 16", e.arg("dropped"))
	}
}

func TestConn_LogsReadErrorAtDebug(t *testing.T) {
	logger := &mockLogger{}
	readErr := errors.New("framing error")
	stream := &mockStream{steps: []readStep{{err: readErr}}}

	conn, err := NewConn(stream,
		OnMessageOption(noopOnMessage),
		LoggerOption(logger),
		OnErrorOption(func(error) ErrorAction { return Continue }),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	_ = conn.Run(context.Background())

	e, ok := logger.find("read error")
	if !ok || e.level != "debug" {
		t.Fatalf("read error entry = %+v, found %v", e, ok)
	}
	if err, _ := e.arg("error").(error); !errors.Is(err, readErr) {
		t.Errorf("logged error = %v, want it to wrap %v", err, readErr)
	}
}
