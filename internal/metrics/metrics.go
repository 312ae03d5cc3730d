// Package metrics records lookup metrics on a private Prometheus registry.
//
// conjurvar is a short-lived process, so nothing is served over HTTP. The
// CLI writes the registry to a node_exporter textfile when --metrics-file is
// set. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Operation label values for the duration histogram
const (
	OperationAuthenticate = "authenticate"
	OperationFetch        = "fetch"
	OperationLookup       = "lookup"
)

// Recorder holds the lookup metrics
type Recorder struct {
	registry *prometheus.Registry

	authnTotal       *prometheus.CounterVec
	fetchAttempts    prometheus.Counter
	fetchTotal       *prometheus.CounterVec
	operationSeconds *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		authnTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conjurvar_authn_total",
				Help: "Total number of Conjur authentication attempts",
			},
			[]string{"method", "outcome"},
		),
		fetchAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conjurvar_secret_fetch_attempts_total",
				Help: "Total number of secret fetch HTTP attempts, including retries",
			},
		),
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conjurvar_secret_fetch_total",
				Help: "Total number of secret fetches by outcome",
			},
			[]string{"outcome"},
		),
		operationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conjurvar_operation_duration_seconds",
				Help:    "Duration of lookup operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the underlying registry for export and tests
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordAuthn records one authentication outcome
func (r *Recorder) RecordAuthn(method string, err error) {
	if r == nil {
		return
	}
	r.authnTotal.WithLabelValues(method, outcome(err)).Inc()
}

// RecordFetchAttempt counts one secret HTTP attempt
func (r *Recorder) RecordFetchAttempt() {
	if r == nil {
		return
	}
	r.fetchAttempts.Inc()
}

// RecordFetch records the final outcome of a secret fetch
func (r *Recorder) RecordFetch(err error) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveDuration records how long operation took since start
func (r *Recorder) ObserveDuration(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.operationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes all metrics in the text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
