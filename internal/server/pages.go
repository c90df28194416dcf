package server

import (
	"net/http"

	"github.com/pioj/pioj/internal/store"
)

type pageRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.store.ListPages(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if pages == nil {
		pages = []store.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	page, err := s.store.CreatePage(r.Context(), req.Title)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (s *Server) handleRenamePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	id := r.PathValue("id")
	if err := s.store.RenamePage(r.Context(), id, req.Title); err != nil {
		writeStoreError(w, err)
		return
	}

	page, err := s.store.GetPage(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePage(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListWorkstreams(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetPage(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	streams, err := s.store.ListWorkstreams(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if streams == nil {
		streams = []store.Workstream{}
	}
	writeJSON(w, http.StatusOK, streams)
}
