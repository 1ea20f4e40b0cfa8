package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits tracks store hits
	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socs_store_hits_total",
			Help: "Total number of result store hits",
		},
	)

	// StoreMisses tracks store misses (absent or expired)
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socs_store_misses_total",
			Help: "Total number of result store misses",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socs_store_errors_total",
			Help: "Total number of result store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// StoreEntryBytes tracks the size of written entries
	StoreEntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socs_store_entry_bytes",
			Help:    "Size of result store entries in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)
