// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSchemaROI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, roiSchema())
}

func (s *Server) handleSchemaResult(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, resultSchema())
}

func (s *Server) handleSchemaVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"schema_version": SchemaVersion,
		"version":        s.cfg.Version,
	})
}

// handleRecentResults serves the audit archive's newest records for a
// product. Without a configured archive the endpoint is unavailable.
func (s *Server) handleRecentResults(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: "result archive is not enabled"})
		return
	}
	name := r.URL.Query().Get("product")
	if name == "" {
		badRequest(w, r, "product query parameter is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.archive.Recent(r.Context(), name, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"count":        len(records),
		"results":      records,
	})
}

// handleStats serves the accumulated pass-rate counters per product.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: "statistics store is not enabled"})
		return
	}
	name := chi.URLParam(r, "product")
	summary, err := s.stats.Summary(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summary == nil {
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: "no inspections recorded for product " + name})
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}
