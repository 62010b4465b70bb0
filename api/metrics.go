// Package api provides Prometheus metrics for the SimChain engine.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine. Each instance carries
// its own registry so parallel simulations (and tests) never double-register.
type Metrics struct {
	Registry *prometheus.Registry

	// Transaction metrics
	TransactionsSubmitted prometheus.Counter
	TransactionsApplied   prometheus.Counter
	TransactionsRejected  prometheus.Counter

	// Block metrics
	BlocksCommitted prometheus.Counter
	BlockSize       prometheus.Histogram

	// Validator metrics
	HeightConflicts prometheus.Counter
	EmptyDrains     prometheus.Counter

	// System metrics
	MempoolSize prometheus.Gauge
	ChainHeight prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		TransactionsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions submitted to the mempool",
		}),
		TransactionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_applied_total",
			Help:      "Total number of transactions applied to the ledger",
		}),
		TransactionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rejected_total",
			Help:      "Total number of transactions skipped as economically invalid",
		}),

		BlocksCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_committed_total",
			Help:      "Total number of blocks appended to the chain",
		}),
		BlockSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_size",
			Help:      "Number of transactions per committed block",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),

		HeightConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "height_conflicts_total",
			Help:      "Total number of optimistic appends that lost the height race",
		}),
		EmptyDrains: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_drains_total",
			Help:      "Total number of drain attempts that found no transactions",
		}),

		MempoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Current number of pending transactions in the mempool",
		}),
		ChainHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_height",
			Help:      "Height of the last committed block",
		}),
	}
}

// RecordSubmit records one mempool submission.
func (m *Metrics) RecordSubmit() {
	m.TransactionsSubmitted.Inc()
}

// RecordBlock records a committed block and its transaction outcomes.
func (m *Metrics) RecordBlock(height uint64, applied, rejected int) {
	m.BlocksCommitted.Inc()
	m.BlockSize.Observe(float64(applied + rejected))
	m.TransactionsApplied.Add(float64(applied))
	m.TransactionsRejected.Add(float64(rejected))
	m.ChainHeight.Set(float64(height))
}

// RecordHeightConflict records one lost optimistic append.
func (m *Metrics) RecordHeightConflict() {
	m.HeightConflicts.Inc()
}

// RecordEmptyDrain records one empty drain attempt.
func (m *Metrics) RecordEmptyDrain() {
	m.EmptyDrains.Inc()
}

// UpdateMempoolSize updates the mempool gauge.
func (m *Metrics) UpdateMempoolSize(size int) {
	m.MempoolSize.Set(float64(size))
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a new metrics server on the given address.
func NewMetricsServer(addr string, m *Metrics) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
