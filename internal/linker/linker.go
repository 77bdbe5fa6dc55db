// SPDX-License-Identifier: MIT

// Package linker resolves raw scanned barcodes into canonical
// identifiers through the external ProcessLock service. Failures never
// propagate into inspection results; callers keep the raw value.
package linker

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the noop linker so callers can tell
// "no linking configured" from a transient failure.
var ErrDisabled = errors.New("barcode linking disabled")

// Linker transforms one raw barcode into its linked identifier.
type Linker interface {
	Link(ctx context.Context, barcode string) (string, error)
}

// Noop is the disabled linker used when no link URL is configured.
type Noop struct{}

func (Noop) Link(ctx context.Context, barcode string) (string, error) {
	return "", ErrDisabled
}
