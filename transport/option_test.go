package transport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCustomCodecOption(t *testing.T) {
	codec := &mockCodec{}
	opt := CustomCodecOption(codec)

	var opts options
	opt(&opts)

	if opts.codec != codec {
		t.Error("codec not set correctly")
	}
}

func TestBufferSizeOption(t *testing.T) {
	opt := BufferSizeOption(100)

	var opts options
	opt(&opts)

	if opts.bufferSize != 100 {
		t.Errorf("bufferSize = %d, want 100", opts.bufferSize)
	}
}

func TestIdleTimeoutOption(t *testing.T) {
	timeout := time.Minute * 5
	opt := IdleTimeoutOption(timeout)

	var opts options
	opt(&opts)

	if opts.idleTimeout != timeout {
		t.Errorf("idleTimeout = %v, want %v", opts.idleTimeout, timeout)
	}
}

func TestCapacityOption(t *testing.T) {
	opt := CapacityOption(4096)

	var opts options
	opt(&opts)

	if opts.capacity != 4096 {
		t.Errorf("capacity = %d, want 4096", opts.capacity)
	}
}

func TestReadChunkOption(t *testing.T) {
	opt := ReadChunkOption(1)

	var opts options
	opt(&opts)

	if opts.readChunk != 1 {
		t.Errorf("readChunk = %d, want 1", opts.readChunk)
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	onError := func(err error) ErrorAction {
		called = true
		return Disconnect
	}
	opt := OnErrorOption(onError)

	var opts options
	opt(&opts)

	if opts.onError == nil {
		t.Fatal("onError is nil")
	}

	opts.onError(nil)
	if !called {
		t.Error("onError callback not called")
	}
}

func TestOnMessageOption(t *testing.T) {
	var got string
	onMessage := func(payload []byte) error {
		got = string(payload)
		return nil
	}
	opt := OnMessageOption(onMessage)

	var opts options
	opt(&opts)

	if opts.onMessage == nil {
		t.Fatal("onMessage is nil")
	}

	_ = opts.onMessage([]byte("hi"))
	if got != "hi" {
		t.Errorf("onMessage got %q, want hi", got)
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestMetricsOption(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	opt := MetricsOption(m)

	var opts options
	opt(&opts)

	if opts.metrics != m {
		t.Error("metrics not set correctly")
	}
}

func TestOptions_MultipleOptions(t *testing.T) {
	codec := &mockCodec{}
	logger := &mockLogger{}
	onMessage := func(payload []byte) error { return nil }
	onError := func(err error) ErrorAction { return Continue }
	idle := time.Second * 45
	bufferSize := 50
	capacity := 8192

	var opts options
	options := []Option{
		CustomCodecOption(codec),
		OnMessageOption(onMessage),
		OnErrorOption(onError),
		IdleTimeoutOption(idle),
		BufferSizeOption(bufferSize),
		CapacityOption(capacity),
		LoggerOption(logger),
	}

	for _, opt := range options {
		opt(&opts)
	}

	if opts.codec != codec {
		t.Error("codec not set")
	}
	if opts.onMessage == nil {
		t.Error("onMessage not set")
	}
	if opts.onError == nil {
		t.Error("onError not set")
	}
	if opts.idleTimeout != idle {
		t.Errorf("idleTimeout = %v, want %v", opts.idleTimeout, idle)
	}
	if opts.bufferSize != bufferSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, bufferSize)
	}
	if opts.capacity != capacity {
		t.Errorf("capacity = %d, want %d", opts.capacity, capacity)
	}
	if opts.logger != logger {
		t.Error("logger not set")
	}
}

func TestErrorAction(t *testing.T) {
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}

	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
