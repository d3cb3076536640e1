package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalAttempts tracks navigation attempts, including retries.
	TotalAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_crawl_attempts_total",
		Help: "The total number of crawl attempts, including retries.",
	})
	// TotalOutcomes tracks finished targets by result classification.
	TotalOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_crawl_outcomes_total",
		Help: "The total number of per-target outcomes by result.",
	}, []string{"result"})
	// CrawlDuration observes wall time per target, attempts included.
	CrawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricewatch_crawl_duration_seconds",
		Help:    "Wall-clock duration of a full per-target crawl.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)

func observeOutcome(outcome Outcome) {
	result := "success"
	if !outcome.Success {
		result = string(outcome.ErrorCode)
	}
	TotalOutcomes.WithLabelValues(result).Inc()
	CrawlDuration.Observe(outcome.Duration.Seconds())
}
