package server

import (
	"net/http"
	"time"

	"github.com/pioj/pioj/internal/export"
	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/llm"
	"github.com/pioj/pioj/internal/query"
)

type exportRequest struct {
	Name    string             `json:"name"`
	Days    int                `json:"days"`
	Tickets []string           `json:"tickets"`
	Queries []query.Definition `json:"queries"`
	Format  string             `json:"format"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Tickets) == 0 {
		writeError(w, http.StatusBadRequest, "no tickets provided")
		return
	}
	if req.Days <= 0 {
		req.Days = 7
	}

	exporter := export.New(s, s.jira.BaseURL())
	exportReq := export.Request{
		Name:    req.Name,
		Days:    req.Days,
		Keys:    req.Tickets,
		Queries: req.Queries,
	}

	switch req.Format {
	case "", "markdown":
		md, err := exporter.Markdown(r.Context(), exportReq)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"markdown": md})
	case "csv":
		out, err := exporter.CSV(r.Context(), exportReq)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	default:
		writeError(w, http.StatusBadRequest, "unknown export format: "+req.Format)
	}
}

type summaryRequest struct {
	Tickets      []string `json:"tickets"`
	Days         int      `json:"days"`
	Context      string   `json:"context"`
	OmitInactive bool     `json:"omit_inactive"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}
	if s.llm == nil {
		writeError(w, http.StatusBadRequest, "LLM not configured. Set LLM_API_KEY")
		return
	}

	var req summaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Tickets) == 0 {
		writeError(w, http.StatusBadRequest, "no tickets provided")
		return
	}
	if req.Days <= 0 {
		req.Days = 7
	}
	cutoff := time.Now().UTC().Add(-time.Duration(req.Days) * 24 * time.Hour)

	var details []jira.IssueDetails
	for _, key := range req.Tickets {
		d, err := s.Details(r.Context(), key)
		if err != nil {
			s.logger.Warn("summary fetch failed", "issue", key, "error", err)
			continue
		}
		details = append(details, d.FilterByAge(cutoff))
	}

	entries, active := llm.CollectEntries(details, req.OmitInactive)
	sum, err := s.llm.Summarize(r.Context(), entries, req.Days, active, req.Context)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
