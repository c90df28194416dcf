package server

import (
	"errors"
	"net/http"

	"github.com/pioj/pioj/internal/query"
	"github.com/pioj/pioj/internal/store"
)

type workstreamRequest struct {
	PageID string             `json:"page_id"`
	Name   string             `json:"name"`
	Stack  []query.Definition `json:"stack"`
}

func validateWorkstreamRequest(w http.ResponseWriter, name string, stack []query.Definition) bool {
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return false
	}
	if len(stack) == 0 {
		writeError(w, http.StatusBadRequest, "stack must contain at least one query")
		return false
	}
	if err := query.ValidateStack(stack); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreateWorkstream(w http.ResponseWriter, r *http.Request) {
	var req workstreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PageID == "" {
		writeError(w, http.StatusBadRequest, "page_id is required")
		return
	}
	if !validateWorkstreamRequest(w, req.Name, req.Stack) {
		return
	}
	if _, err := s.store.GetPage(r.Context(), req.PageID); err != nil {
		writeStoreError(w, err)
		return
	}

	ws, err := s.store.CreateWorkstream(r.Context(), req.PageID, req.Name, req.Stack)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleGetWorkstream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.store.GetWorkstream(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleUpdateWorkstream(w http.ResponseWriter, r *http.Request) {
	var req workstreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validateWorkstreamRequest(w, req.Name, req.Stack) {
		return
	}

	id := r.PathValue("id")
	if err := s.store.UpdateWorkstream(r.Context(), id, req.Name, req.Stack); err != nil {
		writeStoreError(w, err)
		return
	}

	ws, err := s.store.GetWorkstream(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDeleteWorkstream(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkstream(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshWorkstream(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	ws, err := s.store.GetWorkstream(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	snap, err := s.refresh.RefreshWorkstream(r.Context(), ws)
	if err != nil {
		var perr *query.ParseError
		if errors.As(err, &perr) {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Outcome)
}

func (s *Server) handleWorkstreamResults(w http.ResponseWriter, r *http.Request) {
	ws, err := s.store.GetWorkstream(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	hash, err := query.StackHash(ws.Stack)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap, err := s.store.GetSnapshot(r.Context(), ws.ID, hash)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workstream has not been resolved yet")
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	if !s.requireJira(w) {
		return
	}

	report, err := s.refresh.RefreshAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
