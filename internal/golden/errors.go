// SPDX-License-Identifier: MIT

package golden

import "errors"

var (
	// ErrNotFound is returned when a golden folder or a named sample is missing.
	ErrNotFound = errors.New("golden sample not found")

	// ErrLastSample guards the delete operation: a non-empty golden
	// folder must never be emptied through the API.
	ErrLastSample = errors.New("cannot delete the last golden sample")

	// ErrBadName is returned for sample names outside the
	// best_golden.jpg / original_<ts>[_old_best].jpg scheme.
	ErrBadName = errors.New("invalid golden sample name")

	// ErrEmptyUpload is returned when a save carries no image bytes.
	ErrEmptyUpload = errors.New("empty golden image upload")

	// ErrBadMapping is returned for rename mappings with non-positive
	// ids or duplicate targets.
	ErrBadMapping = errors.New("invalid rename mapping")
)
