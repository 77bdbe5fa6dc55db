// SPDX-License-Identifier: MIT

package product

import "errors"

var (
	// ErrNotFound is returned when a product, its ROI config or its
	// colors config does not exist on the shared filesystem.
	ErrNotFound = errors.New("product not found")

	// ErrExists is returned by Create when the product already has a config.
	ErrExists = errors.New("product already exists")

	// ErrInvalidName is returned for product names outside [A-Za-z0-9_-].
	ErrInvalidName = errors.New("invalid product name")
)
