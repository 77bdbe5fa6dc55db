// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/product"
)

// Capability modes reported by Warmup.
const (
	ModeReal       = "real"
	ModeSimulation = "simulation"
)

// Capabilities bundles the opaque inference engines. Nil fields fall
// back to deterministic simulated engines so the full pipeline stays
// runnable on machines without the ML runtime.
type Capabilities struct {
	Barcode  BarcodeDecoder
	OCR      TextRecognizer
	Features FeatureExtractor
}

// CapabilityStatus is one row of the warm-up report.
type CapabilityStatus struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// Registry dispatches crops to the analyzer matching their ROI type.
type Registry struct {
	barcode Analyzer
	compare Analyzer
	ocr     Analyzer
	color   Analyzer

	caps Capabilities
}

// NewRegistry wires the four analyzers over the given capabilities and
// golden source. Missing capabilities are replaced by simulations.
func NewRegistry(caps Capabilities, goldens GoldenSource) *Registry {
	logger := log.WithComponent("analyzer")
	if caps.Barcode == nil {
		logger.Warn().Str("capability", "barcode").Bool(log.FieldSimulation, true).
			Msg("barcode decoder unavailable, using simulation")
		caps.Barcode = simulatedDecoder{}
	}
	if caps.OCR == nil {
		logger.Warn().Str("capability", "ocr").Bool(log.FieldSimulation, true).
			Msg("ocr engine unavailable, using simulation")
		caps.OCR = simulatedOCR{}
	}
	// A nil feature extractor needs no simulation stand-in: the compare
	// analyzer falls back to the built-in pixel extractor.
	return &Registry{
		barcode: &barcodeAnalyzer{decoder: caps.Barcode},
		compare: &compareAnalyzer{goldens: goldens, features: caps.Features},
		ocr:     &ocrAnalyzer{engine: caps.OCR},
		color:   &colorAnalyzer{},
		caps:    caps,
	}
}

// For returns the analyzer responsible for an ROI type, or nil for
// unknown types.
func (r *Registry) For(t product.ROIType) Analyzer {
	switch t {
	case product.TypeBarcode:
		return r.barcode
	case product.TypeCompare:
		return r.compare
	case product.TypeOCR:
		return r.ocr
	case product.TypeColor:
		return r.color
	default:
		return nil
	}
}

// Warmup exercises every capability once against a tiny frame and
// reports whether it runs real or simulated.
func (r *Registry) Warmup(ctx context.Context) []CapabilityStatus {
	probe := image.NewRGBA(image.Rect(0, 0, 16, 16))
	_, _ = r.caps.Barcode.Decode(ctx, probe)
	_, _ = r.caps.OCR.Recognize(ctx, probe)

	statuses := []CapabilityStatus{
		{Name: "barcode", Mode: capabilityMode(r.caps.Barcode)},
		{Name: "ocr", Mode: capabilityMode(r.caps.OCR)},
	}
	if r.caps.Features != nil {
		_, _ = r.caps.Features.Extract(ctx, probe)
		statuses = append(statuses, CapabilityStatus{Name: "features", Mode: ModeReal})
	} else {
		statuses = append(statuses, CapabilityStatus{Name: "features", Mode: ModeSimulation})
	}
	return statuses
}

func capabilityMode(c any) string {
	switch c.(type) {
	case simulatedDecoder, simulatedOCR:
		return ModeSimulation
	default:
		return ModeReal
	}
}

// cropDigest hashes the visible pixels so simulated engines answer
// deterministically for identical crops.
func cropDigest(img image.Image) string {
	src := imaging.ToRGBA(img)
	sum := sha256.Sum256(src.Pix)
	return fmt.Sprintf("%x", sum[:4])
}

// simulatedDecoder fabricates one stable value per distinct crop.
// Uniform (blank) crops decode to nothing, mirroring a real decoder
// pointed at an empty label.
type simulatedDecoder struct{}

func (simulatedDecoder) Decode(ctx context.Context, img image.Image) ([]string, error) {
	if isUniform(img) {
		return nil, nil
	}
	return []string{"SIM-" + cropDigest(img)}, nil
}

// simulatedOCR fabricates stable text per distinct crop; blank crops
// read as empty.
type simulatedOCR struct{}

func (simulatedOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	if isUniform(img) {
		return "", nil
	}
	return "SIMTEXT-" + cropDigest(img), nil
}

func isUniform(img image.Image) bool {
	src := imaging.ToRGBA(img)
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return true
	}
	first := src.RGBAAt(b.Min.X, b.Min.Y)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.RGBAAt(x, y) != first {
				return false
			}
		}
	}
	return true
}
