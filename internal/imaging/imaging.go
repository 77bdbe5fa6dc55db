// SPDX-License-Identifier: MIT

// Package imaging implements the raster operations inspections depend on:
// decoding camera frames, cropping regions of interest, rotation, resizing
// and basic color statistics.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	_ "golang.org/x/image/bmp" // some line cameras export BMP
	_ "image/gif"
	_ "image/png"
)

// Decode decodes an image from raw bytes using the registered formats.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeBase64 decodes a base64-encoded image. A leading data URI prefix
// ("data:image/jpeg;base64,") and embedded whitespace are tolerated.
func DecodeBase64(s string) (image.Image, error) {
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		s = s[idx+len("base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return Decode(raw)
}

// DecodeFile decodes an image from disk.
func DecodeFile(path string) (image.Image, error) {
	// #nosec G304 -- callers confine the path to the shared root first
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return Decode(data)
}

// DecodeConfigFile reads only the image header and returns its
// dimensions without decoding pixel data.
func DecodeConfigFile(path string) (width, height int, err error) {
	// #nosec G304 -- callers confine the path to the shared root first
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// EncodeJPEG encodes img as JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality out of range: %d", quality)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToRGBA returns img as *image.RGBA with bounds translated to the origin.
// The input is copied.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Crop extracts the given rectangle from img. The rectangle is clamped to the
// image bounds; an empty intersection is an error.
func Crop(img image.Image, r image.Rectangle) (*image.RGBA, error) {
	clamped := r.Intersect(img.Bounds())
	if clamped.Empty() {
		return nil, fmt.Errorf("crop %v lies outside image bounds %v", r, img.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, clamped.Dx(), clamped.Dy()))
	draw.Draw(dst, dst.Bounds(), img, clamped.Min, draw.Src)
	return dst, nil
}

// Resize scales img to w x h using Catmull-Rom interpolation.
func Resize(img image.Image, w, h int) (*image.RGBA, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("resize target must be positive: %dx%d", w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst, nil
}

// Rotate rotates img by degrees counter-clockwise around its center.
// Multiples of 90 rotate exactly and swap dimensions where appropriate; other
// angles keep the source dimensions and fill uncovered corners with black.
func Rotate(img image.Image, degrees float64) *image.RGBA {
	deg := math.Mod(degrees, 360)
	if deg < 0 {
		deg += 360
	}

	src := ToRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	switch deg {
	case 0:
		return src
	case 90:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for yd := 0; yd < w; yd++ {
			for xd := 0; xd < h; xd++ {
				dst.SetRGBA(xd, yd, src.RGBAAt(w-1-yd, xd))
			}
		}
		return dst
	case 180:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		for yd := 0; yd < h; yd++ {
			for xd := 0; xd < w; xd++ {
				dst.SetRGBA(xd, yd, src.RGBAAt(w-1-xd, h-1-yd))
			}
		}
		return dst
	case 270:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for yd := 0; yd < w; yd++ {
			for xd := 0; xd < h; xd++ {
				dst.SetRGBA(xd, yd, src.RGBAAt(yd, h-1-xd))
			}
		}
		return dst
	}

	// Arbitrary angle: affine rotation about the center, same output size.
	rad := deg * math.Pi / 180
	alpha := math.Cos(rad)
	beta := math.Sin(rad)
	cx := float64(w) / 2
	cy := float64(h) / 2

	m := f64.Aff3{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Transform(dst, m, src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Grayscale converts img to 8-bit grayscale.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// MeanLuma returns the average luminance of img in [0,255].
func MeanLuma(img image.Image) float64 {
	gray := Grayscale(img)
	b := gray.Bounds()
	total := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			total += float64(gray.GrayAt(x, y).Y)
		}
	}
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0
	}
	return total / n
}

// NormalizeIllumination scales all channels so the mean luminance approaches
// targetLuma. The gain is clamped to [0.5, 2.0] so badly exposed frames do
// not blow out.
func NormalizeIllumination(img image.Image, targetLuma float64) *image.RGBA {
	src := ToRGBA(img)
	mean := MeanLuma(src)
	if mean <= 0 {
		return src
	}
	gain := targetLuma / mean
	if gain > 2.0 {
		gain = 2.0
	} else if gain < 0.5 {
		gain = 0.5
	}

	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := src.RGBAAt(x, y)
			dst.SetRGBA(x, y, color.RGBA{
				R: scaleChannel(px.R, gain),
				G: scaleChannel(px.G, gain),
				B: scaleChannel(px.B, gain),
				A: px.A,
			})
		}
	}
	return dst
}

func scaleChannel(c uint8, gain float64) uint8 {
	v := float64(c) * gain
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v + 0.5)
}

// MeanRGB returns the average red, green and blue channel values in [0,255].
func MeanRGB(img image.Image) (float64, float64, float64) {
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0, 0, 0
	}
	var rSum, gSum, bSum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			rSum += float64(r >> 8)
			gSum += float64(g >> 8)
			bSum += float64(bb >> 8)
		}
	}
	return rSum / n, gSum / n, bSum / n
}

// RGBToHSV converts 8-bit RGB to HSV with H in [0,360) and S,V in [0,100].
func RGBToHSV(r, g, b uint8) (float64, float64, float64) {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	maxV := math.Max(rf, math.Max(gf, bf))
	minV := math.Min(rf, math.Min(gf, bf))
	delta := maxV - minV

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxV == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case maxV == gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if maxV > 0 {
		s = delta / maxV * 100
	}
	v := maxV * 100

	return h, s, v
}
