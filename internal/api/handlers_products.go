// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visualaoi/aoid/internal/product"
)

// handleHealth is the legacy liveness view old clients poll; /healthz
// and /readyz carry the real checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         s.cfg.Version,
		"active_sessions": len(s.sessions.List()),
	})
}

// handleInitialize warms the analyzer capabilities and reports which
// run native and which run in simulation.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	statuses := s.registry.Warmup(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       "initialized",
		"capabilities": statuses,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"products": names,
		"count":    len(names),
	})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string `json:"product_name"`
		NumDevices  int    `json:"num_devices"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.ProductName == "" {
		badRequest(w, r, "product_name is required")
		return
	}

	rois, err := s.store.Create(r.Context(), req.ProductName, req.NumDevices)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"product_name": req.ProductName,
		"rois":         rois,
	})
}

func (s *Server) handleGetROIs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rois, err := s.store.Load(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"rois":         rois,
	})
}

func (s *Server) handleSaveROIs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		ROIs []product.ROI `json:"rois"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	deleted, err := s.store.Save(r.Context(), name, req.ROIs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name":        name,
		"rois_saved":          len(req.ROIs),
		"deleted_roi_folders": deleted,
	})
}

func (s *Server) handleGetColors(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cc, err := s.store.Colors(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cc)
}

func (s *Server) handleSaveColors(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var cc product.ColorConfig
	if err := decodeBody(r, &cc); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if err := s.store.SaveColors(r.Context(), name, &cc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"status":       "saved",
	})
}

// handleROIGroups summarizes a product's capture groups the way the
// capture tooling expects: one entry per (focus, exposure) with the
// ROIs that will run against that frame.
func (s *Server) handleROIGroups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "product")
	rois, err := s.store.Load(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	buckets := product.GroupByCapture(rois)
	type groupView struct {
		Focus    int           `json:"focus"`
		Exposure int           `json:"exposure"`
		ROICount int           `json:"roi_count"`
		ROIs     []product.ROI `json:"rois"`
	}
	groups := make([]groupView, 0, len(buckets))
	for _, g := range product.SortedGroups(buckets) {
		groups = append(groups, groupView{
			Focus:    g.Focus,
			Exposure: g.Exposure,
			ROICount: len(buckets[g]),
			ROIs:     buckets[g],
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"groups":       groups,
		"total_groups": len(groups),
		"total_rois":   len(rois),
	})
}
