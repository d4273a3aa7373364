package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// durationBucketBoundaries covers 10ms to 600s, spanning a single
// incremental stage up through a thorough-preset full rebuild.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// REDMetrics holds the Rate/Error/Duration instruments shared across the
// CLI surface (index runs, watch cycles, query requests), complementing
// the per-plugin counters the Multi-Index Orchestrator registers on its
// own.
type REDMetrics struct {
	requestsTotal *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	inflightRequests *prometheus.GaugeVec
}

// NewREDMetrics creates the RED instruments and registers them against
// reg. reg may be nil, in which case the instruments are created but
// left unregistered, which test code commonly relies on.
func NewREDMetrics(reg prometheus.Registerer) *REDMetrics {
	rm := &REDMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_requests_total",
			Help: "Total number of completed operations, by op and status.",
		}, []string{"op", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "codegraph_request_duration_seconds",
			Help: "Operation duration in seconds, by op.",
			Buckets: durationBucketBoundaries,
		}, []string{"op"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_errors_total",
			Help: "Total number of failed operations, by op and error category.",
		}, []string{"op", "category"}),
		inflightRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codegraph_inflight_requests",
			Help: "Number of in-flight operations, by op.",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(rm.requestsTotal, rm.requestDuration, rm.errorsTotal, rm.inflightRequests)
	}

	return rm
}

// RecordRequest records a completed operation's status and duration.
func (rm *REDMetrics) RecordRequest(op, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(op, status).Inc()
	rm.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordError records a failed operation's error category.
func (rm *REDMetrics) RecordError(op, category string) {
	rm.errorsTotal.WithLabelValues(op, category).Inc()
}

// TrackInflight increments the in-flight gauge for op and returns a
// function to decrement it, meant to be deferred at the call site.
func (rm *REDMetrics) TrackInflight(op string) func() {
	rm.inflightRequests.WithLabelValues(op).Inc()

	return func() {
		rm.inflightRequests.WithLabelValues(op).Dec()
	}
}
