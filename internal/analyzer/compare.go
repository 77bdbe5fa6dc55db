// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/product"
)

// targetLuma is the illumination normalization target applied to both
// sides of every comparison.
const targetLuma = 128

// compareAnalyzer scores the live crop against the ROI's golden
// samples, best first, and stops at the first one clearing the
// threshold. Matching a non-best alternative flags it for promotion;
// so does an alternative that outscores the current best on a miss.
type compareAnalyzer struct {
	goldens  GoldenSource
	features FeatureExtractor
}

func (a *compareAnalyzer) Analyze(ctx context.Context, req Request) (Payload, error) {
	paths, err := a.goldens.ListPaths(ctx, req.Product, req.ROI.Index)
	if err != nil {
		return Payload{}, fmt.Errorf("list goldens: %w", err)
	}
	threshold := req.ROI.Threshold()
	if len(paths) == 0 {
		return Payload{
			MatchResult:  MatchResultDifferent,
			AISimilarity: 0,
			Threshold:    threshold,
		}, nil
	}

	live := imaging.NormalizeIllumination(req.Crop, targetLuma)
	w, h := live.Bounds().Dx(), live.Bounds().Dy()
	liveFeat, err := a.extract(ctx, req.ROI.Method(), live)
	if err != nil {
		return Payload{}, err
	}

	logger := log.WithComponentFromContext(ctx, "analyzer")

	bestGoldenSim := -1.0 // similarity of best_golden.jpg, when readable
	topSim := 0.0
	topIdx := -1
	var topName string

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		goldenImg, err := imaging.DecodeFile(path)
		if err != nil {
			logger.Warn().Err(err).
				Str(log.FieldProduct, req.Product).
				Int(log.FieldROIIndex, req.ROI.Index).
				Str("golden", filepath.Base(path)).
				Msg("golden sample unreadable, skipping")
			continue
		}
		resized, err := imaging.Resize(goldenImg, w, h)
		if err != nil {
			return Payload{}, fmt.Errorf("resize golden: %w", err)
		}
		norm := imaging.NormalizeIllumination(resized, targetLuma)
		feat, err := a.extract(ctx, req.ROI.Method(), norm)
		if err != nil {
			return Payload{}, err
		}
		sim := CosineSimilarity(liveFeat, feat)

		name := filepath.Base(path)
		if i == 0 && name == "best_golden.jpg" {
			bestGoldenSim = sim
		}
		if sim > topSim || topIdx < 0 {
			topSim, topIdx, topName = sim, i, name
		}

		if sim >= threshold {
			p := Payload{
				Passed:        true,
				MatchResult:   MatchResultMatch,
				AISimilarity:  sim,
				Threshold:     threshold,
				GoldenPath:    path,
				GoldenResized: resized,
			}
			if i > 0 {
				p.PromoteSample = name
			}
			return p, nil
		}
	}

	p := Payload{
		MatchResult:  MatchResultDifferent,
		AISimilarity: topSim,
		Threshold:    threshold,
	}
	// An alternative that beats the current best is worth trying first
	// next run even though nothing matched this time.
	if topIdx > 0 && topSim > bestGoldenSim && bestGoldenSim >= 0 {
		p.PromoteSample = topName
	}
	return p, nil
}

// extract runs the configured feature method. The injected extractor
// serves mobilenet; everything else, and a missing extractor, uses the
// built-in pixel features.
func (a *compareAnalyzer) extract(ctx context.Context, method string, img image.Image) ([]float64, error) {
	if method == product.MethodMobileNet && a.features != nil {
		feat, err := a.features.Extract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("extract features: %w", err)
		}
		return feat, nil
	}
	return builtinFeatures(method, img), nil
}
