// SPDX-License-Identifier: MIT

package inspect

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/visualaoi/aoid/internal/analyzer"
	"github.com/visualaoi/aoid/internal/golden"
	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
	"github.com/visualaoi/aoid/internal/product"
	"github.com/visualaoi/aoid/internal/shared"
)

// ColorSource resolves the product-level color config fallback.
// *product.Store satisfies it.
type ColorSource interface {
	Colors(ctx context.Context, name string) (*product.ColorConfig, error)
}

// Promoter receives promote commands issued by compare matches.
// *golden.Library satisfies it.
type Promoter interface {
	Promote(ctx context.Context, product string, roi int, alternative string) (golden.SaveResult, error)
}

// Processor turns one decoded frame plus one ROI into one ROIResult.
// Analyzer errors are captured into the result, never returned: a
// broken ROI must not abort the rest of the batch.
type Processor struct {
	folder   *shared.Folder
	registry *analyzer.Registry
	colors   ColorSource
	promoter Promoter
}

// NewProcessor wires the ROI processor.
func NewProcessor(folder *shared.Folder, registry *analyzer.Registry, colors ColorSource, promoter Promoter) *Processor {
	return &Processor{folder: folder, registry: registry, colors: colors, promoter: promoter}
}

// Process analyzes one ROI against the frame it was captured in.
func (p *Processor) Process(ctx context.Context, sessionID, productName string, frame image.Image, roi product.ROI) ROIResult {
	start := time.Now()
	typeName := strings.ToLower(roi.Type.String())
	logger := log.WithComponentFromContext(ctx, "processor")

	metrics.IncROIsInFlight()
	defer metrics.DecROIsInFlight()

	result := ROIResult{
		ROIID:       roi.Index,
		DeviceID:    roi.DeviceLocation,
		ROITypeName: roi.Type.String(),
		Coordinates: [4]int{roi.Coords.X1, roi.Coords.Y1, roi.Coords.X2, roi.Coords.Y2},
	}

	crop, payload, err := p.analyze(ctx, productName, frame, roi)
	if err != nil {
		result.Error = err.Error()
		metrics.RecordROIAnalysis(typeName, "error", time.Since(start).Seconds())
		logger.Warn().Err(err).
			Str(log.FieldProduct, productName).
			Int(log.FieldROIIndex, roi.Index).
			Str(log.FieldROIType, typeName).
			Str(log.FieldResult, "errored").
			Msg("roi analysis errored")
		if crop != nil {
			p.exportCrop(ctx, sessionID, roi.Index, crop, &result)
		}
		return result
	}

	result.Passed = payload.Passed
	p.fillPayload(&result, roi, payload)
	p.exportCrop(ctx, sessionID, roi.Index, crop, &result)
	if payload.GoldenResized != nil {
		name := fmt.Sprintf("golden_%d.jpg", roi.Index)
		if path, err := p.folder.SaveOutput(sessionID, name, payload.GoldenResized); err != nil {
			logger.Warn().Err(err).
				Str(log.FieldSessionID, sessionID).
				Int(log.FieldROIIndex, roi.Index).
				Msg("golden image export failed, omitting path")
		} else {
			result.GoldenImagePath = p.folder.ClientPath(path)
		}
	}

	if payload.PromoteSample != "" && p.promoter != nil {
		if _, err := p.promoter.Promote(ctx, productName, roi.Index, payload.PromoteSample); err != nil {
			logger.Warn().Err(err).
				Str(log.FieldProduct, productName).
				Int(log.FieldROIIndex, roi.Index).
				Str("sample", payload.PromoteSample).
				Msg("golden promotion command failed")
		} else {
			metrics.IncGoldenPromotion(productName, "match")
		}
	}

	outcome := "fail"
	if result.Passed {
		outcome = "pass"
	}
	metrics.RecordROIAnalysis(typeName, outcome, time.Since(start).Seconds())
	logger.Debug().
		Str(log.FieldProduct, productName).
		Int(log.FieldROIIndex, roi.Index).
		Str(log.FieldROIType, typeName).
		Int(log.FieldDevice, roi.DeviceLocation).
		Str(log.FieldResult, outcome).
		Dur(log.FieldDuration, time.Since(start)).
		Msg("roi analyzed")
	return result
}

// analyze cuts the crop and runs the type-matched analyzer.
func (p *Processor) analyze(ctx context.Context, productName string, frame image.Image, roi product.ROI) (image.Image, analyzer.Payload, error) {
	an := p.registry.For(roi.Type)
	if an == nil {
		return nil, analyzer.Payload{}, fmt.Errorf("no analyzer for roi type %d", int(roi.Type))
	}

	crop, err := imaging.Crop(frame, roi.Coords.Rect())
	if err != nil {
		return nil, analyzer.Payload{}, err
	}
	var cropped image.Image = crop
	if roi.Rotation != 0 {
		cropped = imaging.Rotate(crop, float64(roi.Rotation))
	}

	req := analyzer.Request{Product: productName, ROI: roi, Crop: cropped}
	if roi.Type == product.TypeColor {
		req.Colors = p.resolveColors(ctx, productName, roi)
	}

	payload, err := an.Analyze(ctx, req)
	if err != nil {
		return cropped, analyzer.Payload{}, err
	}
	if roi.Type == product.TypeBarcode {
		payload.BarcodeValues = nonNil(payload.BarcodeValues)
	}
	return cropped, payload, nil
}

// resolveColors applies the config priority: ROI-embedded first, then
// the product-level colors file. A missing fallback stays nil; the
// analyzer reports it.
func (p *Processor) resolveColors(ctx context.Context, productName string, roi product.ROI) *product.ColorConfig {
	if roi.ColorConfig != nil {
		return roi.ColorConfig
	}
	if p.colors == nil {
		return nil
	}
	cc, err := p.colors.Colors(ctx, productName)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "processor")
		logger.Debug().Err(err).
			Str(log.FieldProduct, productName).
			Int(log.FieldROIIndex, roi.Index).
			Msg("no product-level color config")
		return nil
	}
	return cc
}

// exportCrop persists the analyzed crop best-effort; failures log and
// leave the path empty.
func (p *Processor) exportCrop(ctx context.Context, sessionID string, idx int, crop image.Image, result *ROIResult) {
	name := fmt.Sprintf("roi_%d.jpg", idx)
	path, err := p.folder.SaveOutput(sessionID, name, crop)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "processor")
		logger.Warn().Err(err).
			Str(log.FieldSessionID, sessionID).
			Int(log.FieldROIIndex, idx).
			Msg("crop export failed, omitting path")
		return
	}
	result.ROIImagePath = p.folder.ClientPath(path)
}

// fillPayload copies the analyzer payload into the wire result.
func (p *Processor) fillPayload(result *ROIResult, roi product.ROI, payload analyzer.Payload) {
	switch roi.Type {
	case product.TypeBarcode:
		result.BarcodeValues = payload.BarcodeValues
		result.deviceBarcode = roi.DeviceBarcode()
	case product.TypeCompare:
		result.MatchResult = payload.MatchResult
		result.AISimilarity = f64ptr(payload.AISimilarity)
		result.Threshold = f64ptr(payload.Threshold)
	case product.TypeOCR:
		text := payload.OCRText
		result.OCRText = &text
	case product.TypeColor:
		result.DetectedColor = payload.DetectedColor
		result.MatchPercentage = f64ptr(payload.MatchPercentage)
		result.Threshold = f64ptr(payload.Threshold)
		result.DominantColor = []int{payload.DominantColor[0], payload.DominantColor[1], payload.DominantColor[2]}
	}
}

func f64ptr(v float64) *float64 { return &v }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
