package imapauth

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/infodancer/msgstore"
	msgstoreerrors "github.com/infodancer/msgstore/errors"

	"github.com/infodancer/imapauth/internal/logging"
)

// The agent registers as auth agent type "imap" so hosts can mount it with a
// blank import, the same way msgstore's built-in credential backends register.
func init() {
	msgstore.RegisterAuthAgent("imap", newStoreAgent)
}

// newStoreAgent builds an Agent from a msgstore auth-agent config.
//
// CredentialBackend is the remote endpoint: "imap://host:port",
// "imaps://host:port", or a bare "host[:port]". Options:
//
//	security        none|ssl|tls (overrides the URL scheme)
//	domain          required email domain (empty disables the policy)
//	strip_domain    strip the matched domain from the stored uid (default true)
//	domain_group    derive a group from the uid's domain part (default false)
//	timeout         connect timeout as a duration string (default 10s)
//	tls_skip_verify skip server certificate verification (default false)
//	log_level       debug|info|warn|error (default info)
func newStoreAgent(cfg msgstore.AuthAgentConfig) (msgstore.AuthenticationAgent, error) {
	conn, err := parseBackend(cfg.CredentialBackend)
	if err != nil {
		return nil, fmt.Errorf("imap auth agent: %w", err)
	}

	if v, ok := cfg.Options["security"]; ok {
		conn.Security = Security(v)
	}
	if v, ok := cfg.Options["timeout"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("imap auth agent: invalid timeout %q: %w", v, err)
		}
		conn.ConnectTimeout = d
	}
	if v, ok := cfg.Options["tls_skip_verify"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("imap auth agent: invalid tls_skip_verify %q: %w", v, err)
		}
		conn.InsecureSkipVerify = b
	}

	policy := DomainPolicy{
		Domain:      cfg.Options["domain"],
		StripDomain: true,
	}
	if v, ok := cfg.Options["strip_domain"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("imap auth agent: invalid strip_domain %q: %w", v, err)
		}
		policy.StripDomain = b
	}
	if v, ok := cfg.Options["domain_group"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("imap auth agent: invalid domain_group %q: %w", v, err)
		}
		policy.DomainGroup = b
	}

	prober, err := NewIMAPProber(conn)
	if err != nil {
		return nil, fmt.Errorf("imap auth agent: %w", err)
	}

	agent, err := New(AgentConfig{
		Policy: policy,
		Prober: prober,
		Logger: logging.NewLogger(cfg.Options["log_level"]),
	})
	if err != nil {
		return nil, fmt.Errorf("imap auth agent: %w", err)
	}

	return &storeAgent{agent: agent}, nil
}

// parseBackend parses the endpoint string into a ConnConfig.
func parseBackend(backend string) (ConnConfig, error) {
	if backend == "" {
		return ConnConfig{}, fmt.Errorf("credential backend is required")
	}

	cfg := ConnConfig{Security: SecurityNone}

	hostport := backend
	if strings.Contains(backend, "://") {
		u, err := url.Parse(backend)
		if err != nil {
			return ConnConfig{}, fmt.Errorf("invalid backend URL %q: %w", backend, err)
		}
		switch u.Scheme {
		case "imap":
			cfg.Security = SecurityNone
		case "imaps":
			cfg.Security = SecurityImplicit
			cfg.Port = 993
		default:
			return ConnConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		hostport = u.Host
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		// Bare hostname; the default port applies.
		cfg.Host = hostport
		return cfg, nil
	}

	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return ConnConfig{}, fmt.Errorf("invalid port %q", port)
	}
	cfg.Host = host
	cfg.Port = p
	return cfg, nil
}

// storeAgent adapts an Agent to the msgstore AuthenticationAgent interface.
// Every denial collapses to ErrAuthFailed for the host; the category and
// cause are available only through the log.
type storeAgent struct {
	agent *Agent
}

func (s *storeAgent) Authenticate(ctx context.Context, username, password string) (*msgstore.AuthSession, error) {
	id, err := s.agent.Authenticate(ctx, username, password)
	if err != nil {
		return nil, msgstoreerrors.ErrAuthFailed
	}
	return &msgstore.AuthSession{
		User: &msgstore.User{Username: id.StoredUID},
	}, nil
}

func (s *storeAgent) Close() error {
	return nil
}
