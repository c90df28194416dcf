package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/query"
)

type searchRequest struct {
	JQL string `json:"jql"`
}

type searchResponse struct {
	Issues    []jira.Issue `json:"issues"`
	Truncated bool         `json:"truncated"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.JQL == "" {
		writeError(w, http.StatusBadRequest, "jql is required")
		return
	}

	issues, truncated, err := s.jira.SearchIssues(r.Context(), req.JQL, query.MaxResults)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.jira.EnrichIssues(r.Context(), issues)
	if issues == nil {
		issues = []jira.Issue{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Issues: issues, Truncated: truncated})
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	issue, err := s.jira.GetIssue(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type detailsRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleIssueDetails(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	var req detailsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := req.Days
	if days <= 0 {
		days = 7
	}

	details, err := s.Details(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	writeJSON(w, http.StatusOK, details.FilterByAge(cutoff))
}

// Details is the cache-through issue detail fetch: the full history is
// cached unfiltered, so one cache entry serves every requested window.
// Satisfies export.DetailsFetcher.
func (s *Server) Details(ctx context.Context, key string) (jira.IssueDetails, error) {
	cached, ok, err := s.store.GetCachedDetails(ctx, key, s.cfg.CacheTTL)
	if err != nil {
		s.logger.Warn("detail cache read failed", "issue", key, "error", err)
	}
	if ok {
		return cached, nil
	}

	details, err := s.jira.GetIssueDetails(ctx, key)
	if err != nil {
		return jira.IssueDetails{}, err
	}
	if err := s.store.PutCachedDetails(ctx, details); err != nil {
		s.logger.Warn("detail cache write failed", "issue", key, "error", err)
	}
	return details, nil
}
