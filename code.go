package imapauth

import (
	"fmt"

	"github.com/infodancer/imapauth/errors"
)

// Kind is the outcome category of a remote probe failure.
type Kind int

const (
	// KindConnection covers could-not-connect, TLS failures, and timeouts.
	KindConnection Kind = iota + 1

	// KindAuth covers server-side credential rejections.
	KindAuth

	// KindProtocol covers any other server-side error.
	KindProtocol
)

// String returns the lowercase name of the kind, suitable for logs and
// metrics labels.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Code identifies a probe failure. The numeric values are the legacy
// transport error codes kept as aliases for the symbolic names, so callers
// that still match on numbers keep working across transport versions that
// drop a symbol.
type Code int

const (
	// CodeOK indicates the probe succeeded.
	CodeOK Code = 0

	// CodeCouldNotConnect indicates the TCP connection could not be
	// established.
	CodeCouldNotConnect Code = 7

	// CodeWeirdReply indicates the server sent something the client could
	// not parse.
	CodeWeirdReply Code = 8

	// CodeRemoteAccessDenied indicates the server refused access to the
	// resource after the session was established.
	CodeRemoteAccessDenied Code = 9

	// CodeTimedOut indicates the connect or exchange deadline expired.
	CodeTimedOut Code = 28

	// CodeTLSConnectError indicates the TLS handshake failed.
	CodeTLSConnectError Code = 35

	// CodeLoginDenied indicates the server rejected the credentials.
	CodeLoginDenied Code = 67

	// CodeAuthError indicates a failure in the SASL exchange itself.
	CodeAuthError Code = 94
)

// codeKinds is the single classification table. Codes absent from the table
// classify as KindProtocol; future transport changes only require a table
// edit.
var codeKinds = map[Code]Kind{
	CodeCouldNotConnect:    KindConnection,
	CodeTimedOut:           KindConnection,
	CodeTLSConnectError:    KindConnection,
	CodeRemoteAccessDenied: KindAuth,
	CodeLoginDenied:        KindAuth,
	CodeAuthError:          KindAuth,
}

// codeNames maps codes to their symbolic tags.
var codeNames = map[Code]string{
	CodeOK:                 "ok",
	CodeCouldNotConnect:    "could_not_connect",
	CodeWeirdReply:         "weird_server_reply",
	CodeRemoteAccessDenied: "remote_access_denied",
	CodeTimedOut:           "operation_timed_out",
	CodeTLSConnectError:    "tls_connect_error",
	CodeLoginDenied:        "login_denied",
	CodeAuthError:          "auth_error",
}

// Kind returns the outcome category for the code.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindProtocol
}

// String returns the symbolic tag for the code.
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code_%d", int(c))
}

// ProbeError is a classified remote probe failure. It carries enough detail
// for the caller to log host, code, and cause; user-facing surfaces should
// collapse it to a plain denial.
type ProbeError struct {
	// Code identifies the failure.
	Code Code

	// Host is the remote endpoint the probe targeted, as host:port.
	Host string

	// Err is the underlying transport or protocol error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imap probe %s: %s (%d): %v", e.Host, e.Code, int(e.Code), e.Err)
	}
	return fmt.Sprintf("imap probe %s: %s (%d)", e.Host, e.Code, int(e.Code))
}

// Unwrap returns the underlying cause.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Kind returns the outcome category of the failure.
func (e *ProbeError) Kind() Kind {
	return e.Code.Kind()
}

// Is reports whether the error matches the sentinel for its category, so
// errors.Is(err, errors.ErrAuthFailed) and friends work on wrapped probe
// errors.
func (e *ProbeError) Is(target error) bool {
	switch target {
	case errors.ErrConnectionFailed:
		return e.Kind() == KindConnection
	case errors.ErrAuthFailed:
		return e.Kind() == KindAuth
	case errors.ErrProtocolFailed:
		return e.Kind() == KindProtocol
	default:
		return false
	}
}
