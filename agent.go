package imapauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/infodancer/imapauth/errors"
	"github.com/infodancer/imapauth/internal/logging"
	"github.com/infodancer/imapauth/internal/metrics"
)

// UserStore persists successfully authenticated users. Implementations are
// supplied by the host system; storage failures never change the
// authentication outcome.
type UserStore interface {
	// StoreUser records the canonical uid and its group memberships.
	StoreUser(ctx context.Context, uid string, groups []string) error
}

// AgentConfig holds the collaborators and policy for creating an Agent.
type AgentConfig struct {
	// Policy controls username acceptance and canonicalization.
	Policy DomainPolicy

	// Prober performs the remote credential check. Required.
	Prober Prober

	// Store receives successfully authenticated users. Optional.
	Store UserStore

	// Logger receives one structured entry per non-success outcome.
	// Optional; defaults to an info-level logger.
	Logger *slog.Logger

	// Collector records metrics. Optional; defaults to a no-op collector.
	Collector metrics.Collector
}

// Agent authenticates users against a remote IMAP server. Each call is
// independent and self-contained; an Agent is safe for concurrent use.
type Agent struct {
	policy    DomainPolicy
	prober    Prober
	store     UserStore
	logger    *slog.Logger
	collector metrics.Collector
}

// New creates an Agent. The prober is required; all other collaborators get
// working defaults.
func New(cfg AgentConfig) (*Agent, error) {
	if cfg.Prober == nil {
		return nil, errors.ErrProberNotConfigured
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("info")
	}

	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	return &Agent{
		policy:    cfg.Policy,
		prober:    cfg.Prober,
		store:     cfg.Store,
		logger:    logger.With("component", "imapauth"),
		collector: collector,
	}, nil
}

// Authenticate verifies the submitted credentials. On success it returns the
// resolved identity and hands it to the user store; every failure is returned
// as a typed error that matches the errors package sentinels via errors.Is.
// Diagnostic detail goes to the log, never to user-facing surfaces. Retry
// policy belongs to the caller.
func (a *Agent) Authenticate(ctx context.Context, rawUID, password string) (*Identity, error) {
	id, err := ResolveUsername(rawUID, a.policy)
	if err != nil {
		a.collector.PolicyRejection()
		a.logger.Warn("username rejected by domain policy",
			"uid", rawUID,
			"required_domain", a.policy.Domain)
		return nil, err
	}

	start := time.Now()
	err = a.prober.Probe(ctx, id.LoginAddress, password)
	a.collector.ProbeDuration(time.Since(start).Seconds())

	if err != nil {
		kind := KindProtocol
		host := ""
		code := CodeWeirdReply
		if pe, ok := err.(*ProbeError); ok {
			kind = pe.Kind()
			host = pe.Host
			code = pe.Code
		}
		a.collector.ProbeOutcome(kind.String())
		a.collector.AuthAttempt(id.Domain(), false)
		a.logger.Warn("authentication failed",
			"uid", id.StoredUID,
			"host", host,
			"code", int(code),
			"kind", kind.String(),
			"cause", err)
		return nil, err
	}

	a.collector.ProbeOutcome("success")
	a.collector.AuthAttempt(id.Domain(), true)

	if a.store != nil {
		// Fire and forget: a storage failure is logged but does not undo a
		// successful authentication.
		if err := a.store.StoreUser(ctx, id.StoredUID, id.Groups); err != nil {
			a.logger.Error("storing user failed",
				"uid", id.StoredUID,
				"error", err)
		}
	}

	return id, nil
}
