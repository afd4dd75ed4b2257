// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for relay operations.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeOK       = "ok"
)

var (
	initOnce sync.Once

	submissionsTotalCounter       *prometheus.CounterVec
	statusChecksTotalCounter      *prometheus.CounterVec
	proxyRequestsTotalCounter     *prometheus.CounterVec
	providerRequestDurationMetric prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		submissionsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryon_submissions_total",
				Help: "Total number of try-on submissions by outcome.",
			},
			[]string{"outcome"},
		)

		statusChecksTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryon_status_checks_total",
				Help: "Total number of job status checks by outcome.",
			},
			[]string{"outcome"},
		)

		proxyRequestsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_proxy_requests_total",
				Help: "Total number of image proxy fetches by outcome.",
			},
			[]string{"outcome"},
		)

		providerRequestDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Duration of upstream provider calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			submissionsTotalCounter,
			statusChecksTotalCounter,
			proxyRequestsTotalCounter,
			providerRequestDurationMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, outcome := range []string{OutcomeAccepted, OutcomeRejected, OutcomeError} {
			submissionsTotalCounter.WithLabelValues(outcome)
		}
		for _, outcome := range []string{OutcomeOK, OutcomeError} {
			statusChecksTotalCounter.WithLabelValues(outcome)
			proxyRequestsTotalCounter.WithLabelValues(outcome)
		}
	})
}

func IncSubmission(outcome string) {
	Init()
	submissionsTotalCounter.WithLabelValues(outcome).Inc()
}

func IncStatusCheck(outcome string) {
	Init()
	statusChecksTotalCounter.WithLabelValues(outcome).Inc()
}

func IncProxyRequest(outcome string) {
	Init()
	proxyRequestsTotalCounter.WithLabelValues(outcome).Inc()
}

func ObserveProviderRequestDuration(d time.Duration) {
	Init()
	providerRequestDurationMetric.Observe(d.Seconds())
}
