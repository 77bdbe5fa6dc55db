// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"fmt"
	"image"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/product"
)

// colorAnalyzer checks the crop against the effective color config:
// the simple expected-color tolerance mode or the legacy named-range
// mode.
type colorAnalyzer struct{}

func (a *colorAnalyzer) Analyze(ctx context.Context, req Request) (Payload, error) {
	cc := req.Colors
	if cc == nil {
		return Payload{}, fmt.Errorf("no color configuration for roi %d", req.ROI.Index)
	}

	var p Payload
	switch {
	case cc.Simple():
		p = analyzeSimpleColor(req.Crop, cc)
	case cc.Ranged():
		p = analyzeRangedColor(req.Crop, cc)
	default:
		return Payload{}, fmt.Errorf("color configuration for roi %d is empty", req.ROI.Index)
	}

	r, g, b := imaging.MeanRGB(req.Crop)
	p.DominantColor = [3]int{int(r + 0.5), int(g + 0.5), int(b + 0.5)}
	return p, nil
}

// analyzeSimpleColor counts pixels within the per-channel tolerance of
// the expected color.
func analyzeSimpleColor(crop image.Image, cc *product.ColorConfig) Payload {
	src := imaging.ToRGBA(crop)
	b := src.Bounds()
	total := b.Dx() * b.Dy()

	tol := product.DefaultColorTolerance
	if cc.ColorTolerance != nil {
		tol = *cc.ColorTolerance
	}
	minPct := product.DefaultMinPixelPercentage
	if cc.MinPixelPercentage != nil {
		minPct = *cc.MinPixelPercentage
	}
	er, eg, eb := cc.ExpectedColor[0], cc.ExpectedColor[1], cc.ExpectedColor[2]

	matched := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := src.RGBAAt(x, y)
			if withinTolerance(int(px.R), er, tol) &&
				withinTolerance(int(px.G), eg, tol) &&
				withinTolerance(int(px.B), eb, tol) {
				matched++
			}
		}
	}

	pct := 0.0
	if total > 0 {
		pct = float64(matched) / float64(total) * 100
	}
	return Payload{
		Passed:          pct >= minPct,
		DetectedColor:   fmt.Sprintf("#%02x%02x%02x", er, eg, eb),
		MatchPercentage: pct,
		Threshold:       minPct,
	}
}

func withinTolerance(v, expected, tol int) bool {
	return v >= expected-tol && v <= expected+tol
}

// analyzeRangedColor evaluates the legacy named ranges. Ranges sharing
// a name aggregate before the threshold comparison; the name with the
// highest aggregate percentage wins.
func analyzeRangedColor(crop image.Image, cc *product.ColorConfig) Payload {
	src := imaging.ToRGBA(crop)
	b := src.Bounds()
	total := b.Dx() * b.Dy()

	counts := make(map[string]int, len(cc.ColorRanges))
	thresholds := make(map[string]float64, len(cc.ColorRanges))
	order := make([]string, 0, len(cc.ColorRanges))
	for _, rg := range cc.ColorRanges {
		if _, seen := counts[rg.Name]; !seen {
			order = append(order, rg.Name)
		}
		counts[rg.Name] += 0
		// The last declared threshold for a name wins, matching how the
		// config is read top to bottom.
		thresholds[rg.Name] = rg.Threshold
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := src.RGBAAt(x, y)
			for _, rg := range cc.ColorRanges {
				if pixelInRange(px.R, px.G, px.B, rg) {
					counts[rg.Name]++
				}
			}
		}
	}

	best := ""
	bestPct := -1.0
	for _, name := range order {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[name]) / float64(total) * 100
		}
		if pct > bestPct {
			best, bestPct = name, pct
		}
	}
	if bestPct < 0 {
		bestPct = 0
	}

	return Payload{
		Passed:          best != "" && bestPct >= thresholds[best],
		DetectedColor:   best,
		MatchPercentage: bestPct,
		Threshold:       thresholds[best],
	}
}

func pixelInRange(r, g, b uint8, rg product.ColorRange) bool {
	var c [3]float64
	switch rg.ColorSpace {
	case "HSV":
		c[0], c[1], c[2] = imaging.RGBToHSV(r, g, b)
	default:
		c[0], c[1], c[2] = float64(r), float64(g), float64(b)
	}
	for ch := 0; ch < 3; ch++ {
		if c[ch] < float64(rg.Lower[ch]) || c[ch] > float64(rg.Upper[ch]) {
			return false
		}
	}
	return true
}
