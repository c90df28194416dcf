// Package server exposes the HTTP API: page and workstream CRUD,
// ad-hoc searches, stack resolution, issue drill-downs, exports, and
// LLM summaries.
//
// The tracker connection is optional at startup so the UI can load and
// report "not configured" instead of the process refusing to boot.
// Endpoints that need Jira return 400 until it is configured.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pioj/pioj/internal/config"
	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/llm"
	"github.com/pioj/pioj/internal/query"
	"github.com/pioj/pioj/internal/refresh"
	"github.com/pioj/pioj/internal/store"
)

// Server wires the HTTP handlers to the application services.
type Server struct {
	cfg      config.Config
	store    *store.Store
	jira     *jira.Client // nil until configured
	resolver *query.Resolver
	refresh  *refresh.Runner
	llm      *llm.Client // nil unless configured
	logger   *slog.Logger
}

// New assembles a Server. The Jira client and summarizer are built
// only when their configuration is present.
func New(cfg config.Config, st *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, store: st, logger: logger}

	if cfg.JiraConfigured() {
		client, err := jira.NewClient(jira.Config{
			BaseURL:         cfg.JiraHost,
			Email:           cfg.JiraEmail,
			Token:           cfg.JiraToken,
			EstimationField: cfg.JiraEstimationField,
			SprintField:     cfg.JiraSprintField,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.jira = client
		s.resolver = query.New(jira.NewGateway(client))
		s.refresh = refresh.New(st, s.resolver, cfg.RefreshDelay)
	}

	if cfg.LLMConfigured() {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMAPIBase,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.llm = client
	}

	return s, nil
}

// Handler returns the routed and middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/config/status", s.handleConfigStatus)

	mux.HandleFunc("GET /api/pages", s.handleListPages)
	mux.HandleFunc("POST /api/pages", s.handleCreatePage)
	mux.HandleFunc("PUT /api/pages/{id}", s.handleRenamePage)
	mux.HandleFunc("DELETE /api/pages/{id}", s.handleDeletePage)
	mux.HandleFunc("GET /api/pages/{id}/workstreams", s.handleListWorkstreams)

	mux.HandleFunc("POST /api/workstreams", s.handleCreateWorkstream)
	mux.HandleFunc("GET /api/workstreams/{id}", s.handleGetWorkstream)
	mux.HandleFunc("PUT /api/workstreams/{id}", s.handleUpdateWorkstream)
	mux.HandleFunc("DELETE /api/workstreams/{id}", s.handleDeleteWorkstream)
	mux.HandleFunc("POST /api/workstreams/{id}/refresh", s.handleRefreshWorkstream)
	mux.HandleFunc("GET /api/workstreams/{id}/results", s.handleWorkstreamResults)

	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/issues/{key}", s.handleGetIssue)
	mux.HandleFunc("POST /api/issues/{key}/details", s.handleIssueDetails)

	mux.HandleFunc("POST /api/refresh", s.handleRefreshAll)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/summary", s.handleSummary)

	return s.wrap(mux)
}

// Run serves until ctx is cancelled, then drains with a timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleConfigStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"jira_configured": s.jira != nil,
		"llm_configured":  s.llm != nil,
	}
	if s.jira != nil {
		status["jira_host"] = s.jira.BaseURL()
		status["auth_mode"] = s.jira.AuthMode()

		// Live check: configured credentials may still point at an
		// unreachable or rejecting tracker.
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if user, err := s.jira.Myself(ctx); err != nil {
			status["jira_status"] = "error"
			status["jira_error"] = err.Error()
		} else {
			status["jira_status"] = "connected"
			status["jira_user"] = user
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// requireJira guards handlers that talk to the tracker.
func (s *Server) requireJira(w http.ResponseWriter) bool {
	if s.jira == nil {
		writeError(w, http.StatusBadRequest, "JIRA not configured")
		return false
	}
	return true
}
