// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/product"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string          `json:"product_name"`
		ClientInfo  json.RawMessage `json:"client_info"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.ProductName == "" {
		badRequest(w, r, "product_name is required")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.ProductName, req.ClientInfo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.ClientInfo) > 0 {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str(log.FieldSessionID, sess.ID).
			RawJSON("client_info", req.ClientInfo).
			Msg("session client registered")
	}
	writeJSON(w, r, http.StatusCreated, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Close(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"session_id": id,
		"status":     "closed",
	})
}

// groupPayload is one capture group with its image input.
type groupPayload struct {
	Focus    int `json:"focus"`
	Exposure int `json:"exposure"`
	inspect.ImageSource
}

// groupedRequest is the grouped-inspection body. Device barcodes arrive
// with string keys; old clients additionally send the single legacy
// device_barcode.
type groupedRequest struct {
	Groups         []groupPayload    `json:"groups"`
	DeviceBarcodes map[string]string `json:"device_barcodes"`
	DeviceBarcode  string            `json:"device_barcode"`
	Filter         *product.Group    `json:"filter"`
}

// parseBarcodes converts the wire barcode map onto integer device ids.
func parseBarcodes(raw map[string]string, legacy string) (inspect.Barcodes, error) {
	b := inspect.Barcodes{Legacy: legacy}
	if len(raw) == 0 {
		return b, nil
	}
	b.PerDevice = make(map[int]string, len(raw))
	for key, value := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 {
			return inspect.Barcodes{}, fmt.Errorf("invalid device id %q in device_barcodes", key)
		}
		b.PerDevice[id] = value
	}
	return b, nil
}

func toGroupImages(payloads []groupPayload) []inspect.GroupImage {
	groups := make([]inspect.GroupImage, len(payloads))
	for i, p := range payloads {
		groups[i] = inspect.GroupImage{
			Group:  product.Group{Focus: p.Focus, Exposure: p.Exposure},
			Source: p.ImageSource,
		}
	}
	return groups
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		inspect.ImageSource
		Focus          *int              `json:"focus"`
		Exposure       *int              `json:"exposure"`
		DeviceBarcodes map[string]string `json:"device_barcodes"`
		DeviceBarcode  string            `json:"device_barcode"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if (req.Focus == nil) != (req.Exposure == nil) {
		badRequest(w, r, "focus and exposure must be provided together")
		return
	}
	barcodes, err := parseBarcodes(req.DeviceBarcodes, req.DeviceBarcode)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	release, err := s.sessions.Acquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var group *product.Group
	if req.Focus != nil {
		group = &product.Group{Focus: *req.Focus, Exposure: *req.Exposure}
	}

	resp, err := s.orch.Inspect(r.Context(), id, sess.Product, req.ImageSource, group, barcodes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The session is held busy, so it cannot vanish mid-record.
	_ = s.sessions.RecordResult(id, resp.Overall.Passed)
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleGroupedInspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req groupedRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	s.runGrouped(w, r, id, req)
}

// handleLegacyGroupedInspection keeps the original flat entry point
// alive: with a session_id it behaves like the session route, without
// one it runs a one-shot session around the single call.
func (s *Server) handleLegacyGroupedInspection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		groupedRequest
		SessionID   string `json:"session_id"`
		ProductName string `json:"product_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	if req.SessionID != "" {
		s.runGrouped(w, r, req.SessionID, req.groupedRequest)
		return
	}
	if req.ProductName == "" {
		badRequest(w, r, "session_id or product_name is required")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.ProductName, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() {
		if err := s.sessions.Close(r.Context(), sess.ID); err != nil {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().Err(err).
				Str(log.FieldSessionID, sess.ID).
				Msg("one-shot session cleanup failed")
		}
	}()
	s.runGrouped(w, r, sess.ID, req.groupedRequest)
}

// runGrouped validates a grouped request and executes it under the
// session's single inspection slot.
func (s *Server) runGrouped(w http.ResponseWriter, r *http.Request, id string, req groupedRequest) {
	if len(req.Groups) == 0 {
		badRequest(w, r, "groups is required")
		return
	}
	barcodes, err := parseBarcodes(req.DeviceBarcodes, req.DeviceBarcode)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	release, err := s.sessions.Acquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.orch.InspectGrouped(r.Context(), id, sess.Product, toGroupImages(req.Groups), barcodes, req.Filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = s.sessions.RecordResult(id, resp.Overall.Passed)
	writeJSON(w, r, http.StatusOK, resp)
}
