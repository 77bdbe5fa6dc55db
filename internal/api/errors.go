// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/visualaoi/aoid/internal/golden"
	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/product"
	"github.com/visualaoi/aoid/internal/session"
	"github.com/visualaoi/aoid/internal/shared"
)

// errorBody is the uniform error envelope. Validation failures carry
// the per-item messages alongside the summary.
type errorBody struct {
	Error            string   `json:"error"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// writeJSON encodes v with a status code. Encoding failures are logged;
// the header is already out at that point.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Msg("failed to encode response")
	}
}

// writeError maps a domain error onto the HTTP taxonomy:
// not-found 404, validation 400, conflict 409, everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs product.ValidationErrors
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, r, http.StatusBadRequest, errorBody{
			Error:            "validation failed",
			ValidationErrors: verrs,
		})
		return
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, golden.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, shared.ErrInputNotFound):
		status = http.StatusNotFound
	case errors.Is(err, product.ErrExists),
		errors.Is(err, session.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, product.ErrInvalidName),
		errors.Is(err, golden.ErrBadName),
		errors.Is(err, golden.ErrEmptyUpload),
		errors.Is(err, golden.ErrLastSample),
		errors.Is(err, golden.ErrBadMapping),
		errors.Is(err, shared.ErrOutsideShare),
		errors.Is(err, inspect.ErrNoImage):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, r, status, errorBody{Error: err.Error()})
}

// badRequest reports a malformed request body or parameter.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeBody decodes a JSON request body into v. Unknown fields are
// tolerated; legacy clients send extras.
func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
