package stream

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors of the generator. A nil *Metrics
// records nothing.
type Metrics struct {
	bytesEmitted  *prometheus.CounterVec
	records       *prometheus.CounterVec
	chunks        *prometheus.CounterVec
	encodeLatency *prometheus.HistogramVec
	activeStreams prometheus.Gauge
	streams       *prometheus.CounterVec
	progress      *prometheus.GaugeVec
}

// NewMetrics registers the generator collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bytesEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_bytes_emitted_total",
			Help: "Bytes handed to the transport, framing included.",
		}, []string{"format"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_records_generated_total",
			Help: "Records generated by workers.",
		}, []string{"format"}),
		chunks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_chunks_encoded_total",
			Help: "Chunks encoded by workers.",
		}, []string{"format"}),
		encodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datagen_chunk_encode_seconds",
			Help:    "Time to generate and encode one chunk.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"format"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagen_active_streams",
			Help: "Streams currently open.",
		}),
		streams: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_streams_total",
			Help: "Finished streams by outcome.",
		}, []string{"format", "outcome"}),
		progress: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "datagen_stream_progress_percent",
			Help: "Last sampled completion of an open stream.",
		}, []string{"request_id"}),
	}
}

func (m *Metrics) streamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) streamClosed(format Format, err error) {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
	m.streams.WithLabelValues(format.String(), outcome(err)).Inc()
}

func (m *Metrics) chunkEncoded(format Format, records int, took time.Duration) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(format.String()).Add(float64(records))
	m.chunks.WithLabelValues(format.String()).Inc()
	m.encodeLatency.WithLabelValues(format.String()).Observe(took.Seconds())
}

func (m *Metrics) emitted(format Format, n int) {
	if m == nil {
		return
	}
	m.bytesEmitted.WithLabelValues(format.String()).Add(float64(n))
}

// ObserveProgress publishes a progress sample for an open stream.
func (m *Metrics) ObserveProgress(requestID string, s Snapshot) {
	if m == nil {
		return
	}
	m.progress.WithLabelValues(requestID).Set(s.Percent)
}

// ForgetProgress drops the progress series of a finished stream.
func (m *Metrics) ForgetProgress(requestID string) {
	if m == nil {
		return
	}
	m.progress.DeleteLabelValues(requestID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ErrStreamCancelled):
		return "cancelled"
	case errors.Is(err, ErrEncodingFailure):
		return "encoding_failure"
	default:
		return "error"
	}
}
