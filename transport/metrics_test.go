package transport

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Zereker/bincrc"
)

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Error("expected error registering twice")
	}
}

func TestDefaultMetrics(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different values")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.observeDecoder(bincrc.Stats{}, bincrc.Stats{Frames: 3})
	m.frameSent()
}

func TestMetrics_ObserveDecoder(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.observeDecoder(bincrc.Stats{}, bincrc.Stats{Frames: 2, Discarded: 5, CRCErrors: 1})
	m.observeDecoder(
		bincrc.Stats{Frames: 2, Discarded: 5, CRCErrors: 1},
		bincrc.Stats{Frames: 3, Discarded: 5, CRCErrors: 1, Overflows: 1, Dropped: 64},
	)

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"frames", m.framesReceived, 3},
		{"discarded", m.bytesDiscarded, 5},
		{"crc", m.crcErrors, 1},
		{"overflows", m.overflows, 1},
		{"dropped", m.bytesDropped, 64},
		{"sent", m.framesSent, 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConn_Metrics(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	junk := []byte{0x00, 0x01, 0xff}
	data := append(append([]byte{}, junk...), frameOf(t, "one")...)
	data = append(data, frameOf(t, "two")...)
	stream := &mockStream{steps: []readStep{{data: data[:5]}, {data: data[5:]}}}

	conn, err := NewConn(stream, OnMessageOption(noopOnMessage), MetricsOption(m))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	_ = conn.Run(context.Background())

	if got := testutil.ToFloat64(m.framesReceived); got != 2 {
		t.Errorf("frames received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bytesDiscarded); got != float64(len(junk)) {
		t.Errorf("bytes discarded = %v, want %d", got, len(junk))
	}

	if err := conn.write(frameOf(t, "reply")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := testutil.ToFloat64(m.framesSent); got != 1 {
		t.Errorf("frames sent = %v, want 1", got)
	}
}
