package imapauth

import (
	"bufio"
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/infodancer/imapauth/errors"
)

// startFakeIMAP runs a minimal scripted IMAP server. loginResponse is the
// tagged response sent to LOGIN, e.g. "OK welcome" or
// "NO [AUTHENTICATIONFAILED] bad credentials". An empty greeting makes the
// server accept and then stay silent, which forces the client deadline to
// expire.
func startFakeIMAP(t *testing.T, greet bool, loginResponse string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeIMAP(conn, greet, loginResponse)
		}
	}()

	return ln.Addr().String()
}

func serveFakeIMAP(conn net.Conn, greet bool, loginResponse string) {
	defer conn.Close()

	if !greet {
		// Hold the connection open without ever greeting.
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		return
	}

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	w.WriteString("* OK fake IMAP server ready\r\n")
	w.Flush()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		tag, verb := fields[0], strings.ToUpper(fields[1])

		switch verb {
		case "CAPABILITY":
			w.WriteString("* CAPABILITY IMAP4rev1\r\n")
			w.WriteString(tag + " OK CAPABILITY completed\r\n")
		case "LOGIN":
			w.WriteString(tag + " " + loginResponse + "\r\n")
		case "LOGOUT":
			w.WriteString("* BYE see you\r\n")
			w.WriteString(tag + " OK LOGOUT completed\r\n")
			w.Flush()
			return
		default:
			w.WriteString(tag + " BAD unknown command\r\n")
		}
		w.Flush()
	}
}

// countingDialer wraps the prober's dial function so tests can count how
// often the connection handle is released.
func countingDialer(closes *atomic.Int32) DialFunc {
	d := &net.Dialer{}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &countingConn{Conn: conn, closes: closes}, nil
	}
}

type countingConn struct {
	net.Conn
	closes *atomic.Int32
}

func (c *countingConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

func newTestProber(t *testing.T, addr string, closes *atomic.Int32) *IMAPProber {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port %q: %v", port, err)
	}

	p, err := NewIMAPProber(ConnConfig{
		Host:           host,
		Port:           portNum,
		Security:       SecurityNone,
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewIMAPProber: %v", err)
	}
	p.dial = countingDialer(closes)
	return p
}

func TestProbeSuccess(t *testing.T) {
	addr := startFakeIMAP(t, true, "OK LOGIN completed")

	var closes atomic.Int32
	p := newTestProber(t, addr, &closes)

	if err := p.Probe(context.Background(), "bob@example.com", "secret"); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	if closes.Load() != 1 {
		t.Errorf("connection closed %d times, want 1", closes.Load())
	}
}

func TestProbeLoginDenied(t *testing.T) {
	addr := startFakeIMAP(t, true, "NO [AUTHENTICATIONFAILED] bad credentials")

	var closes atomic.Int32
	p := newTestProber(t, addr, &closes)

	err := p.Probe(context.Background(), "bob@example.com", "wrong")
	if err == nil {
		t.Fatal("expected a probe error")
	}

	var pe *ProbeError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected *ProbeError, got %T", err)
	}

	if pe.Code != CodeLoginDenied {
		t.Errorf("Code = %v, want CodeLoginDenied", pe.Code)
	}

	if !stderrors.Is(err, errors.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed match, got %v", err)
	}

	if closes.Load() != 1 {
		t.Errorf("connection closed %d times, want 1", closes.Load())
	}
}

func TestProbeAccessDenied(t *testing.T) {
	addr := startFakeIMAP(t, true, "NO [NOPERM] access denied")

	var closes atomic.Int32
	p := newTestProber(t, addr, &closes)

	err := p.Probe(context.Background(), "bob@example.com", "secret")

	var pe *ProbeError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}

	if pe.Code != CodeRemoteAccessDenied {
		t.Errorf("Code = %v, want CodeRemoteAccessDenied", pe.Code)
	}

	if pe.Kind() != KindAuth {
		t.Errorf("Kind = %v, want KindAuth", pe.Kind())
	}

	if closes.Load() != 1 {
		t.Errorf("connection closed %d times, want 1", closes.Load())
	}
}

func TestProbeConnectRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	var closes atomic.Int32
	p := newTestProber(t, addr, &closes)

	probeErr := p.Probe(context.Background(), "bob", "secret")

	var pe *ProbeError
	if !stderrors.As(probeErr, &pe) {
		t.Fatalf("expected *ProbeError, got %v", probeErr)
	}

	if pe.Code != CodeCouldNotConnect {
		t.Errorf("Code = %v, want CodeCouldNotConnect", pe.Code)
	}

	if !stderrors.Is(probeErr, errors.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed match, got %v", probeErr)
	}

	if closes.Load() != 0 {
		t.Errorf("connection closed %d times before one was opened", closes.Load())
	}
}

func TestProbeGreetingTimeout(t *testing.T) {
	addr := startFakeIMAP(t, false, "")

	var closes atomic.Int32
	p := newTestProber(t, addr, &closes)
	p.cfg.ConnectTimeout = 200 * time.Millisecond

	start := time.Now()
	err := p.Probe(context.Background(), "bob", "secret")
	elapsed := time.Since(start)

	var pe *ProbeError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}

	if pe.Code != CodeTimedOut {
		t.Errorf("Code = %v, want CodeTimedOut", pe.Code)
	}

	// The configured timeout bounds the whole probe, teardown included.
	if elapsed > 5*time.Second {
		t.Errorf("probe took %v, want well under the test deadline", elapsed)
	}

	if !stderrors.Is(err, errors.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed match, got %v", err)
	}

	if closes.Load() != 1 {
		t.Errorf("connection closed %d times, want 1", closes.Load())
	}
}

func TestNewIMAPProberValidation(t *testing.T) {
	if _, err := NewIMAPProber(ConnConfig{}); err == nil {
		t.Error("expected an error for a missing host")
	}

	if _, err := NewIMAPProber(ConnConfig{Host: "mail", Security: "starttls"}); err == nil {
		t.Error("expected an error for an invalid security mode")
	}
}

func TestConnConfigDefaults(t *testing.T) {
	cfg := ConnConfig{Host: "mail.example.com"}

	if got := cfg.Address(); got != "mail.example.com:143" {
		t.Errorf("Address() = %q, want mail.example.com:143", got)
	}

	if got := cfg.URI(); got != "imap://mail.example.com:143" {
		t.Errorf("URI() = %q, want imap://mail.example.com:143", got)
	}

	cfg.Security = SecurityImplicit
	cfg.Port = 993
	if got := cfg.URI(); got != "imaps://mail.example.com:993" {
		t.Errorf("URI() = %q, want imaps://mail.example.com:993", got)
	}

	if got := cfg.timeout(); got != DefaultConnectTimeout {
		t.Errorf("timeout() = %v, want %v", got, DefaultConnectTimeout)
	}
}
