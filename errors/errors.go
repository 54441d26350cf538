// Package errors provides centralized error definitions for imapauth.
package errors

import "errors"

// Policy errors. These are local decisions; the remote server is never
// contacted when one of them is returned.
var (
	// ErrDomainMismatch indicates the submitted username does not belong to
	// the configured domain.
	ErrDomainMismatch = errors.New("domain mismatch")
)

// Probe errors. Each corresponds to one outcome category of the remote
// capability probe.
var (
	// ErrAuthFailed indicates the server was reachable but rejected the
	// credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrConnectionFailed indicates the server could not be reached, the TLS
	// session could not be established, or the connection timed out.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrProtocolFailed indicates the server returned an error outside the
	// known authentication-failure set.
	ErrProtocolFailed = errors.New("protocol error")
)

// Configuration errors.
var (
	// ErrProberNotConfigured indicates an agent was constructed without a
	// prober.
	ErrProberNotConfigured = errors.New("prober not configured")
)
