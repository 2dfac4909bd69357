package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service collectors and the registry they live in.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	attemptTime   *prometheus.HistogramVec
	slots         *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	throttleWait  prometheus.Histogram
	rejected      prometheus.Counter
}

// New creates a Recorder with its own registry, including the Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattooz_upstream_attempts_total",
				Help: "Total number of image generation HTTP attempts by outcome",
			},
			[]string{"outcome"},
		),
		attemptTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tattooz_upstream_attempt_seconds",
				Help:    "Latency of image generation HTTP attempts",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 50},
			},
			[]string{"outcome"},
		),
		slots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattooz_slots_total",
				Help: "Total number of image slots by terminal state",
			},
			[]string{"state"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattooz_batches_total",
				Help: "Total number of batches by strategy",
			},
			[]string{"strategy"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tattooz_batch_seconds",
				Help:    "Wall-clock duration of a whole batch",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 180},
			},
			[]string{"strategy"},
		),
		throttleWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tattooz_throttle_wait_seconds",
				Help:    "Time requests spent waiting on the request throttle",
				Buckets: []float64{0, 0.5, 1, 2, 3, 4, 5, 10, 30},
			},
		),
		rejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tattooz_requests_rejected_total",
				Help: "Total number of requests rejected by the per-client rate limit",
			},
		),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.attempts,
		r.attemptTime,
		r.slots,
		r.batches,
		r.batchDuration,
		r.throttleWait,
		r.rejected,
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records one upstream HTTP attempt.
func (r *Recorder) ObserveAttempt(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(outcome).Inc()
	r.attemptTime.WithLabelValues(outcome).Observe(took.Seconds())
}

// ObserveSlot records a slot reaching a terminal state.
func (r *Recorder) ObserveSlot(state string) {
	if r == nil {
		return
	}
	r.slots.WithLabelValues(state).Inc()
}

// ObserveBatch records a finished batch.
func (r *Recorder) ObserveBatch(strategy string, took time.Duration) {
	if r == nil {
		return
	}
	r.batches.WithLabelValues(strategy).Inc()
	r.batchDuration.WithLabelValues(strategy).Observe(took.Seconds())
}

// ObserveThrottleWait records how long a request was held by the throttle.
func (r *Recorder) ObserveThrottleWait(d time.Duration) {
	if r == nil {
		return
	}
	r.throttleWait.Observe(d.Seconds())
}

// ObserveRejected counts a request refused by the per-client limiter.
func (r *Recorder) ObserveRejected() {
	if r == nil {
		return
	}
	r.rejected.Inc()
}
