// Package metrics exposes Prometheus counters for redemptions, identity
// service calls and housekeeping. *Metrics satisfies the observer interfaces
// of idpclient and the invite services.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	ServiceName string
	Environment string
}

type Metrics struct {
	gatherer prometheus.Gatherer

	redemptions      *prometheus.CounterVec
	compensations    *prometheus.CounterVec
	identityCalls    *prometheus.CounterVec
	identityDuration *prometheus.HistogramVec
	identityRetries  *prometheus.CounterVec
	credentialFetch  *prometheus.CounterVec
	cleanupRuns      *prometheus.CounterVec
	cleanupDeleted   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// and process collectors.
func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return newMetrics(reg, reg, cfg)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer, cfg Config) *Metrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "invites"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		gatherer: gatherer,
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_redemptions_total",
			Help:        "Invite redemptions by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_compensations_total",
			Help:        "Compensating account deletes after a failed redemption.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		identityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_identity_calls_total",
			Help:        "Identity service calls by operation and outcome, retries folded in.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		identityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "invites_identity_call_duration_seconds",
			Help:        "Identity service call latency including retries.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"op"}),
		identityRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_identity_retries_total",
			Help:        "Identity service attempts that were retried.",
			ConstLabels: constLabels,
		}, []string{"op"}),
		credentialFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_identity_credential_refreshes_total",
			Help:        "Client credential fetches by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		cleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_cleanup_runs_total",
			Help:        "Housekeeping runs by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "invites_cleanup_deleted_total",
			Help:        "Expired invites removed by housekeeping.",
			ConstLabels: constLabels,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "invites_http_requests_total",
			Help:        "HTTP requests by route and status code.",
			ConstLabels: constLabels,
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "invites_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"route"}),
	}

	registerer.MustRegister(
		m.redemptions,
		m.compensations,
		m.identityCalls,
		m.identityDuration,
		m.identityRetries,
		m.credentialFetch,
		m.cleanupRuns,
		m.cleanupDeleted,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRedemption(outcome string) {
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCompensation(ok bool) {
	result := "deleted"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCall(op, outcome string, elapsed time.Duration) {
	m.identityCalls.WithLabelValues(op, outcome).Inc()
	m.identityDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRetry(op string) {
	m.identityRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveCredentialRefresh(outcome string) {
	m.credentialFetch.WithLabelValues(outcome).Inc()
}

// ObserveCleanup matches service.HousekeepingService.Observe.
func (m *Metrics) ObserveCleanup(deleted int64, err error) {
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupDeleted.Add(float64(deleted))
}

// Middleware counts requests by the matched ServeMux pattern. Unmatched
// requests are grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
