package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "awkref_parsing_seconds",
		Help:    "Time spent parsing and stubbing one AWK file.",
		Buckets: prometheus.DefBuckets,
	})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "awkref_indexed_files",
		Help: "Number of files currently held by the project index.",
	})

	IndexedIdentifiers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "awkref_indexed_identifiers",
		Help: "Number of identifier stubs currently held by the project index.",
	})

	IndexSourcesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awkref_index_sources_total",
		Help: "Files added to the index by how their stubs were obtained (parsed, store, unchanged, failed).",
	}, []string{"source"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "awkref_query_seconds",
		Help:    "Time spent serving a query operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awkref_queries_total",
		Help: "Query operations served, by operation and result code.",
	}, []string{"operation", "code"})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awkref_resolutions_total",
		Help: "Resolution outcomes by the strategy that ended the chain.",
	}, []string{"strategy", "outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awkref_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ReindexBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awkref_reindex_batches_total",
		Help: "Total number of debounced change batches re-indexed.",
	})

	RequestsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awkref_requests_rejected_total",
		Help: "Total number of server requests rejected by the rate limiter.",
	})
)
