package application

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coniks-sys/treesync/protocol"
)

// Metrics collects what a treesync server does.
type Metrics interface {
	// ObserveRequest records a handled request of type reqType.
	ObserveRequest(reqType int, code protocol.ErrorCode, d time.Duration)
	// ObserveTx records the final state of a transaction.
	ObserveTx(state string, reason protocol.ErrorCode)
	// SetBlock records the number of the latest sealed block.
	SetBlock(n uint64)
	// IncStaleWrites records a snapshot write refused as stale.
	IncStaleWrites()
	// ObserveSnapshotSize records the encoded size of a snapshot.
	ObserveSnapshotSize(bytes int)
	// Handler returns the HTTP handler exposing the metrics, or nil.
	Handler() http.Handler
}

// PrometheusMetrics implements Metrics using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	txs            *prometheus.CounterVec
	blockHeight    prometheus.Gauge
	staleWrites    prometheus.Counter
	snapshotSize   prometheus.Histogram
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new PrometheusMetrics instance
// with its own registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of handled requests",
			},
			[]string{"type", "result"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent handling a request",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"type"},
		),
		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of final transactions",
			},
			[]string{"state", "reason"},
		),
		blockHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_height",
				Help:      "Number of the latest sealed block",
			},
		),
		staleWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_snapshot_writes_total",
				Help:      "Total number of snapshot writes refused as stale",
			},
		),
		snapshotSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_size_bytes",
				Help:      "Encoded size of written snapshots",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestLatency,
		m.txs,
		m.blockHeight,
		m.staleWrites,
		m.snapshotSize,
	)
	return m
}

var requestNames = map[int]string{
	protocol.ReadSnapshotType:  "read_snapshot",
	protocol.GetRootType:       "get_root",
	protocol.TxStatusType:      "tx_status",
	protocol.TransitionsType:   "transitions",
	protocol.WriteSnapshotType: "write_snapshot",
	protocol.InitTreeType:      "init_tree",
	protocol.SubmitTxType:      "submit_tx",
}

func requestName(reqType int) string {
	if name, ok := requestNames[reqType]; ok {
		return name
	}
	if reqType < 0 {
		return "unknown"
	}
	return "type_" + strconv.Itoa(reqType)
}

func resultName(code protocol.ErrorCode) string {
	if code == protocol.ReqSuccess {
		return "success"
	}
	return strconv.Itoa(int(code))
}

func (m *PrometheusMetrics) ObserveRequest(reqType int, code protocol.ErrorCode, d time.Duration) {
	name := requestName(reqType)
	m.requests.WithLabelValues(name, resultName(code)).Inc()
	m.requestLatency.WithLabelValues(name).Observe(d.Seconds())
}

func (m *PrometheusMetrics) ObserveTx(state string, reason protocol.ErrorCode) {
	r := ""
	if reason != 0 {
		r = resultName(reason)
	}
	m.txs.WithLabelValues(state, r).Inc()
}

func (m *PrometheusMetrics) SetBlock(n uint64) {
	m.blockHeight.Set(float64(n))
}

func (m *PrometheusMetrics) IncStaleWrites() {
	m.staleWrites.Inc()
}

func (m *PrometheusMetrics) ObserveSnapshotSize(bytes int) {
	m.snapshotSize.Observe(float64(bytes))
}

// Handler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics are registered with.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) ObserveRequest(int, protocol.ErrorCode, time.Duration) {}
func (NopMetrics) ObserveTx(string, protocol.ErrorCode)                  {}
func (NopMetrics) SetBlock(uint64)                                       {}
func (NopMetrics) IncStaleWrites()                                       {}
func (NopMetrics) ObserveSnapshotSize(int)                               {}
func (NopMetrics) Handler() http.Handler                                 { return nil }
