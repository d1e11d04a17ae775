// Package metrics holds the Prometheus collectors of the client. They are
// registered on the default registry and served by the watch command.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_cache_lookups_total",
			Help: "Query cache lookups per query and result (hit, miss, stale, coalesced)",
		},
		[]string{"query", "result"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_cache_evictions_total",
			Help: "Entries removed from the query cache per reason",
		},
		[]string{"reason"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moneyguard_cache_entries",
			Help: "Number of entries currently held by the query cache",
		},
	)

	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_invalidations_total",
			Help: "Tag invalidations per source (mutation, bus)",
		},
		[]string{"source"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_requests_total",
			Help: "Outbound API requests per method and status code",
		},
		[]string{"method", "code"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moneyguard_request_duration_seconds",
			Help:    "Outbound API request duration in seconds per method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RateCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_rate_cache_total",
			Help: "Currency rate lookups per outcome (fresh, fetched, failed)",
		},
		[]string{"outcome"},
	)
)

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moneyguard_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moneyguard_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moneyguard_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
