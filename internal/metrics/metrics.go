// Package metrics owns the Prometheus collectors exposed on /metrics.
//
// Collectors live on a private registry rather than the global default, so
// tests can build as many registries as they like without duplicate
// registration panics.
//
// All recording methods are safe on a nil *Registry, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for promise counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // validation or rate limit
	OutcomeError    = "error"    // datastore, signing or transport failure
	OutcomeInvalid  = "invalid"  // confirmation with a bad token
)

// Delivery labels for magic links.
const (
	DeliveryEmail  = "email"
	DeliveryLogged = "logged"
	DeliveryFailed = "failed"
)

type Registry struct {
	reg *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	PromiseSubmitted *prometheus.CounterVec
	PromiseConfirmed *prometheus.CounterVec
	RateLimitedTotal *prometheus.CounterVec
	MagicLinks       *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picketly_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "picketly_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		PromiseSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picketly_promises_submitted_total",
				Help: "Promise submissions by outcome",
			},
			[]string{"outcome"},
		),

		PromiseConfirmed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picketly_promises_confirmed_total",
				Help: "Magic-link confirmations by outcome",
			},
			[]string{"outcome"},
		),

		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picketly_rate_limited_total",
				Help: "Magic-link requests rejected by the rate limiter, by reason",
			},
			[]string{"reason"},
		),

		MagicLinks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "picketly_magic_links_total",
				Help: "Magic links issued, by delivery method",
			},
			[]string{"delivery"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.HTTPDuration,
		r.PromiseSubmitted,
		r.PromiseConfirmed,
		r.RateLimitedTotal,
		r.MagicLinks,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Registry) Submitted(outcome string) {
	if r == nil {
		return
	}
	r.PromiseSubmitted.WithLabelValues(outcome).Inc()
}

func (r *Registry) Confirmed(outcome string) {
	if r == nil {
		return
	}
	r.PromiseConfirmed.WithLabelValues(outcome).Inc()
}

func (r *Registry) RateLimited(reason string) {
	if r == nil {
		return
	}
	r.RateLimitedTotal.WithLabelValues(reason).Inc()
}

func (r *Registry) MagicLink(delivery string) {
	if r == nil {
		return
	}
	r.MagicLinks.WithLabelValues(delivery).Inc()
}
