// Package metrics provides interfaces and implementations for collecting
// imapauth metrics. This package defines the Collector interface for
// recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording authentication metrics.
type Collector interface {
	// AuthAttempt records one authentication attempt for the given domain
	// (the domain part of the login address, or "" when it had none).
	AuthAttempt(domain string, success bool)

	// PolicyRejection records a local domain-policy rejection. These never
	// reach the remote server.
	PolicyRejection()

	// ProbeOutcome records the outcome category of a remote probe
	// ("success", "connection", "auth", "protocol").
	ProbeOutcome(kind string)

	// ProbeDuration records how long one remote probe took.
	ProbeDuration(seconds float64)

	// HTTPRequest records one request to the HTTP authentication endpoint
	// by response status code.
	HTTPRequest(status int)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
