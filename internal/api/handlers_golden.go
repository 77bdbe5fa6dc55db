// SPDX-License-Identifier: MIT

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/visualaoi/aoid/internal/log"
)

// goldenParams pulls the {product}/{roi} pair out of the route.
func goldenParams(r *http.Request) (string, int, bool) {
	product := chi.URLParam(r, "product")
	roi, err := strconv.Atoi(chi.URLParam(r, "roi"))
	if err != nil || roi < 1 {
		return "", 0, false
	}
	return product, roi, true
}

func (s *Server) handleGoldenList(w http.ResponseWriter, r *http.Request) {
	name, roi, ok := goldenParams(r)
	if !ok {
		badRequest(w, r, "roi id must be a positive integer")
		return
	}
	samples, err := s.library.List(r.Context(), name, roi)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"roi_id":       roi,
		"samples":      samples,
	})
}

func (s *Server) handleGoldenMetadata(w http.ResponseWriter, r *http.Request) {
	name, roi, ok := goldenParams(r)
	if !ok {
		badRequest(w, r, "roi id must be a positive integer")
		return
	}
	samples, err := s.library.Metadata(r.Context(), name, roi)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": name,
		"roi_id":       roi,
		"samples":      samples,
	})
}

func (s *Server) handleGoldenDownload(w http.ResponseWriter, r *http.Request) {
	name, roi, ok := goldenParams(r)
	if !ok {
		badRequest(w, r, "roi id must be a positive integer")
		return
	}
	f, err := s.library.Open(r.Context(), name, roi, chi.URLParam(r, "file"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "image/jpeg")
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	if _, err := io.Copy(w, f); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Msg("golden download interrupted")
	}
}

// handleGoldenSave accepts a multipart upload and installs it as the
// new best golden. The previous best is backed up, never overwritten.
func (s *Server) handleGoldenSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, r, "invalid multipart form: "+err.Error())
		return
	}
	name := r.FormValue("product_name")
	if name == "" {
		badRequest(w, r, "product_name is required")
		return
	}
	roi, err := strconv.Atoi(r.FormValue("roi_id"))
	if err != nil || roi < 1 {
		badRequest(w, r, "roi_id must be a positive integer")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// Old capture tools named the part "image".
		file, header, err = r.FormFile("image")
	}
	if err != nil {
		badRequest(w, r, "file upload is required")
		return
	}
	defer func() { _ = file.Close() }()

	// macOS clients upload decomposed unicode filenames.
	uploadName := norm.NFC.String(header.Filename)

	// The upload only lands for products that actually exist.
	if _, err := s.store.Load(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.library.Save(r.Context(), name, roi, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldProduct, name).
		Int(log.FieldROIIndex, roi).
		Str("upload", uploadName).
		Msg("golden sample uploaded")
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"product_name": name,
		"roi_id":       roi,
		"written":      result.Written,
		"backup":       result.Backup,
	})
}

// goldenFileRequest is the shared body of promote, restore and delete.
type goldenFileRequest struct {
	ProductName string `json:"product_name"`
	ROIID       int    `json:"roi_id"`
	Filename    string `json:"filename"`
}

func (s *Server) decodeGoldenFile(w http.ResponseWriter, r *http.Request) (goldenFileRequest, bool) {
	var req goldenFileRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return req, false
	}
	switch {
	case req.ProductName == "":
		badRequest(w, r, "product_name is required")
		return req, false
	case req.ROIID < 1:
		badRequest(w, r, "roi_id must be a positive integer")
		return req, false
	case req.Filename == "":
		badRequest(w, r, "filename is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleGoldenPromote(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGoldenFile(w, r)
	if !ok {
		return
	}
	result, err := s.library.Promote(r.Context(), req.ProductName, req.ROIID, req.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": req.ProductName,
		"roi_id":       req.ROIID,
		"written":      result.Written,
		"backup":       result.Backup,
	})
}

func (s *Server) handleGoldenRestore(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGoldenFile(w, r)
	if !ok {
		return
	}
	result, err := s.library.Restore(r.Context(), req.ProductName, req.ROIID, req.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": req.ProductName,
		"roi_id":       req.ROIID,
		"written":      result.Written,
		"backup":       result.Backup,
	})
}

func (s *Server) handleGoldenDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGoldenFile(w, r)
	if !ok {
		return
	}
	if err := s.library.Delete(r.Context(), req.ProductName, req.ROIID, req.Filename); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": req.ProductName,
		"roi_id":       req.ROIID,
		"deleted":      req.Filename,
	})
}

// handleGoldenRename remaps golden folders onto new ROI indexes.
// Products with live sessions refuse the rename; an inspection racing
// the folder moves would read half-renamed goldens.
func (s *Server) handleGoldenRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string         `json:"product_name"`
		Mapping     map[string]int `json:"mapping"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.ProductName == "" {
		badRequest(w, r, "product_name is required")
		return
	}
	if len(req.Mapping) == 0 {
		badRequest(w, r, "mapping is required")
		return
	}

	mapping := make(map[int]int, len(req.Mapping))
	for key, to := range req.Mapping {
		from, err := strconv.Atoi(key)
		if err != nil || from < 1 {
			badRequest(w, r, "invalid roi id "+strconv.Quote(key)+" in mapping")
			return
		}
		mapping[from] = to
	}

	if active := s.sessions.ActiveByProduct(req.ProductName); len(active) > 0 {
		writeJSON(w, r, http.StatusConflict, errorBody{
			Error: "product has active sessions, close them before renaming golden folders",
		})
		return
	}

	if err := s.library.RenameFolders(r.Context(), req.ProductName, mapping); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"product_name": req.ProductName,
		"renamed":      len(mapping),
	})
}
