package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "auditor",
		Subsystem: "store",
		Name:      "persist_duration_seconds",
		Help:      "Time spent writing the store to its backend.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auditor",
		Subsystem: "store",
		Name:      "persist_failures_total",
		Help:      "Number of failed store writes.",
	})
	hostsRestored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auditor",
		Subsystem: "store",
		Name:      "hosts_restored",
		Help:      "Number of hosts loaded from the backend at the last restore.",
	})
)
