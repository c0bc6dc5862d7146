// Package observability holds the process's Prometheus collectors. Counters
// follow the fault/record vocabulary of the specification rather than the
// ad-hoc names a one-off instrumentation pass tends to accumulate.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_tcp_connections_accepted_total",
		Help: "TCP connections accepted by the connection supervisor.",
	})
	LoginsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_logins_accepted_total",
		Help: "IMEI login frames accepted.",
	})
	FramesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_avl_frames_accepted_total",
		Help: "AVL frames that passed CRC and count validation.",
	})
	RecordsNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_records_normalized_total",
		Help: "Individual AVL records normalized and handed to the sink dispatcher.",
	})
	FaultsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_faults_total",
		Help: "Connection-terminating faults, by kind.",
	}, []string{"kind"})
	SinkDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_batches_delivered_total",
		Help: "Batches the fleet API accepted with a 2xx response.",
	})
	SinkFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_batches_failed_total",
		Help: "Batches dropped after a non-2xx response or network error.",
	})
	SinkQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_queue_dropped_total",
		Help: "Batches dropped because the bounded dispatch queue was full (drop-oldest).",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_active_sessions",
		Help: "Sessions currently tracked in the session registry.",
	})
	DecodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_decode_latency_seconds",
		Help:    "Time spent decoding a single frame.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveDecodeLatency records how long a single Decode call took.
func ObserveDecodeLatency(start time.Time) {
	DecodeLatency.Observe(time.Since(start).Seconds())
}
