// Package telemetry exposes prometheus counters describing a live-check
// run: samples checked by kind and advice emitted by type and level.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polisai/semcheck/pkg/advice"
)

var (
	samplesChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcheck_samples_checked_total",
		Help: "Samples evaluated by the advisory pipeline, by sample kind.",
	}, []string{"kind"})

	adviceEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcheck_advice_total",
		Help: "Advice items emitted by the advisory pipeline.",
	}, []string{"advice_type", "level"})

	policyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semcheck_policy_failures_total",
		Help: "Per-sample policy evaluation failures.",
	})
)

// RecordSample counts one evaluated sample of the given kind.
func RecordSample(kind string) {
	samplesChecked.WithLabelValues(kind).Inc()
}

// RecordAdvice counts one emitted advice item.
func RecordAdvice(item advice.Advice) {
	adviceEmitted.WithLabelValues(item.AdviceType, item.AdviceLevel.String()).Inc()
}

// RecordPolicyFailure counts one per-sample policy evaluation failure.
func RecordPolicyFailure() {
	policyFailures.Inc()
}

// Handler serves the prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
