// SPDX-License-Identifier: MIT

// Package analyzer implements the four ROI analyzer families. Barcode
// decoding, OCR and ML feature extraction are opaque capabilities
// plugged into a registry; a built-in pixel extractor and deterministic
// simulated engines keep every flow runnable without them.
package analyzer

import (
	"context"
	"image"

	"github.com/visualaoi/aoid/internal/product"
)

// Match result values carried in compare payloads.
const (
	MatchResultMatch     = "Match"
	MatchResultDifferent = "Different"
)

// Request is one unit of analyzer work: a crop already cut (and
// rotated) out of the capture, plus the ROI that described it.
// Colors carries the effective color configuration for Color ROIs,
// resolved by the caller (ROI-embedded config first, product-level
// colors file second).
type Request struct {
	Product string
	ROI     product.ROI
	Crop    image.Image
	Colors  *product.ColorConfig
}

// Payload carries the type-specific fields of one ROI result. Only the
// block matching the ROI type is populated.
type Payload struct {
	Passed bool

	// Barcode
	BarcodeValues []string

	// Compare
	MatchResult  string
	AISimilarity float64
	GoldenPath   string

	// GoldenResized is the matched golden scaled to the crop size, kept
	// so the orchestrator can export it next to the crop.
	GoldenResized image.Image

	// PromoteSample names an alternative that should become the new
	// best. The analyzer never touches golden files itself; the
	// processor forwards this as a command to the library.
	PromoteSample string

	// OCR
	OCRText string

	// Color
	DetectedColor   string
	MatchPercentage float64
	DominantColor   [3]int

	// Compare and Color pass thresholds.
	Threshold float64
}

// Analyzer produces the type-specific payload for one crop.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Payload, error)
}

// BarcodeDecoder is the opaque barcode capability: zero or more decoded
// strings per crop.
type BarcodeDecoder interface {
	Decode(ctx context.Context, img image.Image) ([]string, error)
}

// TextRecognizer is the opaque OCR capability.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// FeatureExtractor is the opaque deep-feature capability used by the
// mobilenet compare method.
type FeatureExtractor interface {
	Extract(ctx context.Context, img image.Image) ([]float64, error)
}

// GoldenSource lists the reference image paths for a Compare ROI, best
// first. *golden.Library satisfies it.
type GoldenSource interface {
	ListPaths(ctx context.Context, product string, roi int) ([]string, error)
}
