// SPDX-License-Identifier: MIT

package analyzer

import (
	"image"
	"math"

	"github.com/visualaoi/aoid/internal/imaging"
)

// Built-in extractor geometry. 16x16 luma cells plus per-channel
// histograms give a 1024-dim vector that separates layouts without any
// external model.
const (
	gridCells = 16
	histBins  = 32
)

// GridLumaFeatures downsamples img to an n x n grid of mean luminance
// cells, L2-normalized.
func GridLumaFeatures(img image.Image, n int) []float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, n*n)
	if w == 0 || h == 0 {
		return out
	}
	counts := make([]float64, n*n)
	for y := 0; y < h; y++ {
		cy := y * n / h
		for x := 0; x < w; x++ {
			cx := x * n / w
			idx := cy*n + cx
			out[idx] += float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			counts[idx]++
		}
	}
	for i := range out {
		if counts[i] > 0 {
			out[i] /= counts[i] * 255
		}
	}
	return l2Normalize(out)
}

// HistogramFeatures builds per-channel RGB histograms with the given
// number of bins per channel, L2-normalized.
func HistogramFeatures(img image.Image, bins int) []float64 {
	src := imaging.ToRGBA(img)
	b := src.Bounds()
	out := make([]float64, 3*bins)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := src.RGBAAt(x, y)
			out[int(px.R)*bins/256]++
			out[bins+int(px.G)*bins/256]++
			out[2*bins+int(px.B)*bins/256]++
		}
	}
	return l2Normalize(out)
}

// GradientFeatures bins gradient orientations per grid cell, the
// classic HOG shape used here as the sift/orb stand-in.
func GradientFeatures(img image.Image, n, orientations int) []float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, n*n*orientations)
	if w < 3 || h < 3 {
		return out
	}
	for y := 1; y < h-1; y++ {
		cy := y * n / h
		for x := 1; x < w-1; x++ {
			cx := x * n / w
			gx := float64(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y).Y) - float64(gray.GrayAt(b.Min.X+x-1, b.Min.Y+y).Y)
			gy := float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y+1).Y) - float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y-1).Y)
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx) + math.Pi // [0, 2pi)
			bin := int(angle / (2 * math.Pi) * float64(orientations))
			if bin >= orientations {
				bin = orientations - 1
			}
			out[(cy*n+cx)*orientations+bin] += mag
		}
	}
	return l2Normalize(out)
}

// builtinFeatures selects the built-in extractor variant for a compare
// feature method.
func builtinFeatures(method string, img image.Image) []float64 {
	switch method {
	case "sift", "orb":
		return GradientFeatures(img, gridCells/2, 8)
	case "opencv":
		return HistogramFeatures(img, histBins)
	default: // mobilenet fallback and anything unrecognized
		grid := GridLumaFeatures(img, gridCells)
		hist := HistogramFeatures(img, histBins)
		return append(grid, hist...)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b,
// clamped to [0, 1]. Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func l2Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
