package transport

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zereker/bincrc"
)

// Metrics holds the prometheus counters shared by all connections.
// All methods are nil-receiver safe.
type Metrics struct {
	framesReceived prometheus.Counter
	framesSent     prometheus.Counter
	bytesDiscarded prometheus.Counter
	crcErrors      prometheus.Counter
	overflows      prometheus.Counter
	bytesDropped   prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bincrc",
		Subsystem: "transport",
		Name:      name,
		Help:      help,
	})
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesReceived: newCounter("frames_received_total", "Frames decoded from the stream."),
		framesSent:     newCounter("frames_sent_total", "Frames written to the stream."),
		bytesDiscarded: newCounter("bytes_discarded_total", "Bytes skipped while resynchronizing."),
		crcErrors:      newCounter("crc_errors_total", "Candidate frames rejected by CRC."),
		overflows:      newCounter("overflow_resets_total", "Decoder buffer resets after saturation."),
		bytesDropped:   newCounter("bytes_dropped_total", "Bytes thrown away by overflow resets."),
	}
	for _, c := range []prometheus.Collector{
		m.framesReceived, m.framesSent, m.bytesDiscarded,
		m.crcErrors, m.overflows, m.bytesDropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register transport metrics")
		}
	}
	return m, nil
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics returns Metrics registered with the prometheus default
// registerer. Repeated calls return the same value.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// observeDecoder adds the difference between two decoder snapshots.
func (m *Metrics) observeDecoder(prev, cur bincrc.Stats) {
	if m == nil {
		return
	}
	m.framesReceived.Add(float64(cur.Frames - prev.Frames))
	m.bytesDiscarded.Add(float64(cur.Discarded - prev.Discarded))
	m.crcErrors.Add(float64(cur.CRCErrors - prev.CRCErrors))
	m.overflows.Add(float64(cur.Overflows - prev.Overflows))
	m.bytesDropped.Add(float64(cur.Dropped - prev.Dropped))
}

func (m *Metrics) frameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}
