// Package metrics declares the Prometheus collectors of the mood store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	MoodUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_upserts_total",
			Help: "Total number of mood upserts by outcome",
		},
		[]string{"outcome"},
	)

	MoodFeedReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_feed_reads_total",
			Help: "Total number of recent-feed reads by source",
		},
		[]string{"source"},
	)

	MoodsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moods_purged_total",
			Help: "Total number of moods deleted by the purger",
		},
	)

	PurgeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purge_latency_seconds",
			Help:    "Purge execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_subscribers",
			Help: "Number of connected live feed subscribers",
		},
	)
)
