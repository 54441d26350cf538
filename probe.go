package imapauth

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
)

// Security selects how the connection to the remote server is protected.
type Security string

const (
	// SecurityNone is a plaintext connection.
	SecurityNone Security = "none"
	// SecurityImplicit is TLS from the first byte (imaps).
	SecurityImplicit Security = "ssl"
	// SecurityStartTLS upgrades a plaintext connection via STARTTLS.
	SecurityStartTLS Security = "tls"
)

// DefaultConnectTimeout bounds the probe when the caller does not set one.
const DefaultConnectTimeout = 10 * time.Second

// DefaultPort is the standard IMAP port.
const DefaultPort = 143

// ConnConfig describes the remote IMAP endpoint.
type ConnConfig struct {
	// Host is the server hostname or address.
	Host string

	// Port is the server port. Zero means DefaultPort.
	Port int

	// Security selects the TLS mode. Empty means SecurityNone.
	Security Security

	// ConnectTimeout bounds the dial and the full exchange. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool
}

// Address returns the host:port dial target.
func (c ConnConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// URI returns the connection URI for logging, imaps:// for implicit TLS and
// imap:// otherwise.
func (c ConnConfig) URI() string {
	scheme := "imap"
	if c.Security == SecurityImplicit {
		scheme = "imaps"
	}
	return scheme + "://" + c.Address()
}

func (c ConnConfig) timeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return c.ConnectTimeout
}

// ValidSecurity reports whether s is a recognized security mode.
func ValidSecurity(s Security) bool {
	switch s {
	case SecurityNone, SecurityImplicit, SecurityStartTLS, "":
		return true
	default:
		return false
	}
}

// Prober performs one credential check against a remote server. A nil return
// means the credentials were accepted; any failure is a *ProbeError.
type Prober interface {
	Probe(ctx context.Context, login, password string) error
}

// DialFunc opens the raw network connection for a probe.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// onceConn guards the dialed connection against double close. The imapclient
// tears the connection down itself when its read loop exits, and the probe
// also closes on its own exit paths; only the first close reaches the wire.
type onceConn struct {
	net.Conn
	once sync.Once
	err  error
}

func (c *onceConn) Close() error {
	c.once.Do(func() { c.err = c.Conn.Close() })
	return c.err
}

// IMAPProber verifies credentials by logging in to a remote IMAP server and
// issuing a single CAPABILITY command. It is stateless; one connection is
// opened per Probe call and released on every exit path.
type IMAPProber struct {
	cfg  ConnConfig
	dial DialFunc
}

// NewIMAPProber creates a prober for the given endpoint. The security mode
// must be valid; malformed configuration is refused here rather than
// surfacing as probe failures later.
func NewIMAPProber(cfg ConnConfig) (*IMAPProber, error) {
	if cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if !ValidSecurity(cfg.Security) {
		return nil, errors.New("invalid security mode " + strconv.Quote(string(cfg.Security)))
	}
	d := &net.Dialer{}
	return &IMAPProber{cfg: cfg, dial: d.DialContext}, nil
}

// Probe implements Prober.
func (p *IMAPProber) Probe(ctx context.Context, login, password string) error {
	addr := p.cfg.Address()
	timeout := p.cfg.timeout()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rawConn, err := p.dial(dialCtx, "tcp", addr)
	if err != nil {
		code := CodeCouldNotConnect
		if isTimeout(err) {
			code = CodeTimedOut
		}
		return &ProbeError{Code: code, Host: addr, Err: err}
	}

	var conn net.Conn = &onceConn{Conn: rawConn}

	// Single-shot exchange: the connect timeout also bounds the rest of the
	// conversation via a connection deadline.
	deadline := time.Now().Add(timeout)
	_ = conn.SetDeadline(deadline)

	if p.cfg.Security == SecurityImplicit {
		tlsConn := tls.Client(conn, p.tlsConfig())
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return &ProbeError{Code: CodeTLSConnectError, Host: addr, Err: err}
		}
		conn = tlsConn
	}

	var c *imapclient.Client
	if p.cfg.Security == SecurityStartTLS {
		c, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: p.tlsConfig()})
		if err != nil {
			conn.Close()
			return &ProbeError{Code: CodeTLSConnectError, Host: addr, Err: err}
		}
	} else {
		c = imapclient.New(conn, nil)
	}
	defer c.Close()

	if err := c.WaitGreeting(); err != nil {
		return &ProbeError{Code: classifyExchange(err, deadline), Host: addr, Err: err}
	}

	caps, err := c.Capability().Wait()
	if err != nil {
		return &ProbeError{Code: classifyExchange(err, deadline), Host: addr, Err: err}
	}

	if caps.Has(imap.AuthCap(sasl.Plain)) {
		if err := c.Authenticate(sasl.NewPlainClient("", login, password)); err != nil {
			return &ProbeError{Code: classifyAuth(err, CodeAuthError), Host: addr, Err: err}
		}
	} else {
		if err := c.Login(login, password).Wait(); err != nil {
			return &ProbeError{Code: classifyAuth(err, CodeWeirdReply), Host: addr, Err: err}
		}
	}

	// The authenticated capability exchange is the entire success signal; no
	// mailbox is opened.
	if _, err := c.Capability().Wait(); err != nil {
		return &ProbeError{Code: classifyExchange(err, deadline), Host: addr, Err: err}
	}

	// Best effort; the outcome is already decided.
	_ = c.Logout().Wait()
	return nil
}

func (p *IMAPProber) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         p.cfg.Host,
		InsecureSkipVerify: p.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

// classifyAuth maps a failure of the authentication exchange to a code.
// Server status responses are denials; anything else gets the fallback for
// the mechanism in use.
func classifyAuth(err error, fallback Code) Code {
	if isTimeout(err) {
		return CodeTimedOut
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeNoPerm, imap.ResponseCodePrivacyRequired:
			return CodeRemoteAccessDenied
		default:
			return CodeLoginDenied
		}
	}
	return fallback
}

// classifyExchange maps a failure outside the authentication exchange to a
// code. A non-IMAP error arriving after the connection deadline has passed is
// a timed-out read, whatever the client wrapped it into.
func classifyExchange(err error, deadline time.Time) Code {
	if isTimeout(err) {
		return CodeTimedOut
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeNoPerm, imap.ResponseCodePrivacyRequired:
			return CodeRemoteAccessDenied
		}
		return CodeWeirdReply
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return CodeTimedOut
	}
	return CodeWeirdReply
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// The client folds transport errors into the message without wrapping,
	// so the marker text is all that survives of the deadline error.
	msg := err.Error()
	return strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, context.DeadlineExceeded.Error())
}
