// Package httpapi exposes the authentication agent over a small HTTP JSON
// endpoint, for hosts that prefer an out-of-process backend to linking the
// agent directly.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/infodancer/imapauth"
	"github.com/infodancer/imapauth/internal/metrics"
)

// Authenticator is the part of the agent the endpoint needs.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*imapauth.Identity, error)
}

// AuthRequest is the JSON payload for POST /authenticate.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned on successful authentication.
type AuthResponse struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Config holds settings for creating a Server.
type Config struct {
	Address       string
	MaxConcurrent int
	Agent         Authenticator
	Logger        *slog.Logger
	Collector     metrics.Collector
}

// Server serves the HTTP authentication endpoint.
type Server struct {
	srv       *http.Server
	agent     Authenticator
	logger    *slog.Logger
	limiter   *RequestLimiter
	collector metrics.Collector
}

// New creates a Server. The agent is required.
func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("httpapi: agent is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}

	s := &Server{
		agent:     cfg.Agent,
		logger:    logger,
		limiter:   NewRequestLimiter(maxConcurrent),
		collector: collector,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/authenticate", s.handleAuthenticate)

	s.srv = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// handleAuthenticate verifies one credential pair. Every denial is a plain
// 401; probe diagnostics stay in the log and never reach the response body.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if !s.limiter.TryAcquire() {
		s.writeError(w, http.StatusServiceUnavailable, "too many requests in flight")
		return
	}
	defer s.limiter.Release()

	id, err := s.agent.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// The agent already logged the category and cause.
		s.writeError(w, http.StatusUnauthorized, "authentication denied")
		return
	}

	s.writeJSON(w, http.StatusOK, AuthResponse{
		Username: id.StoredUID,
		Groups:   id.Groups,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	s.collector.HTTPRequest(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// Start begins serving. It blocks until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.logger.Info("http endpoint listening", "address", s.srv.Addr)

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
