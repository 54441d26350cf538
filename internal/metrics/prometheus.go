package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Authentication metrics
	authAttemptsTotal     *prometheus.CounterVec
	policyRejectionsTotal prometheus.Counter

	// Probe metrics
	probeOutcomesTotal   *prometheus.CounterVec
	probeDurationSeconds prometheus.Histogram

	// HTTP endpoint metrics
	httpRequestsTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imapauth_attempts_total",
			Help: "Total number of authentication attempts.",
		}, []string{"domain", "result"}),
		policyRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imapauth_policy_rejections_total",
			Help: "Total number of domain-policy rejections.",
		}),

		probeOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imapauth_probe_outcomes_total",
			Help: "Total number of remote probe outcomes by category.",
		}, []string{"kind"}),
		probeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imapauth_probe_duration_seconds",
			Help:    "Duration of remote capability probes in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imapauth_http_requests_total",
			Help: "Total number of HTTP authentication requests by status code.",
		}, []string{"status"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.authAttemptsTotal,
		c.policyRejectionsTotal,
		c.probeOutcomesTotal,
		c.probeDurationSeconds,
		c.httpRequestsTotal,
	)

	return c
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(domain string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(domain, result).Inc()
}

// PolicyRejection increments the domain-policy rejection counter.
func (c *PrometheusCollector) PolicyRejection() {
	c.policyRejectionsTotal.Inc()
}

// ProbeOutcome increments the probe outcome counter for the category.
func (c *PrometheusCollector) ProbeOutcome(kind string) {
	c.probeOutcomesTotal.WithLabelValues(kind).Inc()
}

// ProbeDuration observes one probe duration.
func (c *PrometheusCollector) ProbeDuration(seconds float64) {
	c.probeDurationSeconds.Observe(seconds)
}

// HTTPRequest increments the HTTP request counter for the status code.
func (c *PrometheusCollector) HTTPRequest(status int) {
	c.httpRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// PrometheusServer exposes a Prometheus registry over HTTP.
type PrometheusServer struct {
	srv *http.Server
}

// NewPrometheusServer creates a metrics server for the default registry.
func NewPrometheusServer(address, path string) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &PrometheusServer{
		srv: &http.Server{
			Addr:         address,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving metrics. It blocks until the context is canceled or
// the listener fails.
func (s *PrometheusServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the metrics server.
func (s *PrometheusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
