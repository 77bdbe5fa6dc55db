// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualaoi/aoid/internal/product"
)

type stubDecoder struct {
	values []string
	err    error
}

func (s stubDecoder) Decode(context.Context, image.Image) ([]string, error) {
	return s.values, s.err
}

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) Recognize(context.Context, image.Image) (string, error) {
	return s.text, s.err
}

type stubGoldens struct {
	paths []string
	err   error
}

func (s stubGoldens) ListPaths(context.Context, string, int) ([]string, error) {
	return s.paths, s.err
}

func barcodeROI() product.ROI {
	r := product.ROI{Index: 1, Type: product.TypeBarcode, Coords: product.Coords{X2: 10, Y2: 10}}
	product.Normalize(&r)
	return r
}

func TestBarcodeAnalyzer(t *testing.T) {
	tests := []struct {
		name       string
		decoder    stubDecoder
		wantPassed bool
		wantValues []string
		wantErr    bool
	}{
		{"decoded value passes", stubDecoder{values: []string{"ABC123"}}, true, []string{"ABC123"}, false},
		{"whitespace only fails", stubDecoder{values: []string{"   "}}, false, []string{""}, false},
		{"no values fails", stubDecoder{}, false, []string{}, false},
		{"mixed values pass", stubDecoder{values: []string{"", "XYZ"}}, true, []string{"", "XYZ"}, false},
		{"decoder error propagates", stubDecoder{err: errors.New("boom")}, false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &barcodeAnalyzer{decoder: tt.decoder}
			p, err := a.Analyze(context.Background(), Request{ROI: barcodeROI(), Crop: solid(4, 4, red)})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, p.Passed)
			assert.Equal(t, tt.wantValues, p.BarcodeValues)
		})
	}
}

func TestOCRAnalyzer(t *testing.T) {
	expected := "SN-42"
	roiWith := product.ROI{Index: 2, Type: product.TypeOCR, ExpectedText: &expected}
	product.Normalize(&roiWith)
	roiWithout := product.ROI{Index: 2, Type: product.TypeOCR}
	product.Normalize(&roiWithout)

	tests := []struct {
		name       string
		roi        product.ROI
		text       string
		wantPassed bool
		wantText   string
	}{
		{"expected substring found", roiWith, "lot SN-42 rev A", true, "lot SN-42 rev A [PASS:SN-42]"},
		{"expected substring missing", roiWith, "lot SN-43", false, "lot SN-43 [FAIL:SN-42]"},
		{"expected but nothing read", roiWith, "  ", false, "[FAIL:SN-42]"},
		{"no expectation, text found", roiWithout, " hello ", true, "hello"},
		{"no expectation, empty", roiWithout, "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &ocrAnalyzer{engine: stubOCR{text: tt.text}}
			p, err := a.Analyze(context.Background(), Request{ROI: tt.roi, Crop: solid(4, 4, red)})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, p.Passed)
			assert.Equal(t, tt.wantText, p.OCRText)
		})
	}
}

func simpleColorConfig(r, g, b, tol int, minPct float64) *product.ColorConfig {
	return &product.ColorConfig{
		ExpectedColor:      []int{r, g, b},
		ColorTolerance:     &tol,
		MinPixelPercentage: &minPct,
	}
}

func TestColorAnalyzerSimpleMode(t *testing.T) {
	a := &colorAnalyzer{}

	p, err := a.Analyze(context.Background(), Request{
		ROI:    product.ROI{Index: 4, Type: product.TypeColor},
		Crop:   solid(20, 20, red),
		Colors: simpleColorConfig(255, 0, 0, 10, 5.0),
	})
	require.NoError(t, err)
	assert.True(t, p.Passed)
	assert.InDelta(t, 100.0, p.MatchPercentage, 0.01)
	assert.Equal(t, [3]int{255, 0, 0}, p.DominantColor)
	assert.InDelta(t, 5.0, p.Threshold, 1e-9)

	// A blue crop has no red pixels at all.
	p, err = a.Analyze(context.Background(), Request{
		ROI:    product.ROI{Index: 4, Type: product.TypeColor},
		Crop:   solid(20, 20, blue),
		Colors: simpleColorConfig(255, 0, 0, 10, 5.0),
	})
	require.NoError(t, err)
	assert.False(t, p.Passed)
	assert.Zero(t, p.MatchPercentage)
}

func TestColorAnalyzerRangedMode(t *testing.T) {
	cc := &product.ColorConfig{ColorRanges: []product.ColorRange{
		{Name: "red", Lower: []int{200, 0, 0}, Upper: []int{255, 60, 60}, ColorSpace: "RGB", Threshold: 50},
		{Name: "blue", Lower: []int{0, 0, 200}, Upper: []int{60, 60, 255}, ColorSpace: "RGB", Threshold: 50},
	}}

	a := &colorAnalyzer{}
	p, err := a.Analyze(context.Background(), Request{
		ROI:    product.ROI{Index: 4, Type: product.TypeColor},
		Crop:   solid(10, 10, red),
		Colors: cc,
	})
	require.NoError(t, err)
	assert.True(t, p.Passed)
	assert.Equal(t, "red", p.DetectedColor)
	assert.InDelta(t, 100.0, p.MatchPercentage, 0.01)
}

func TestColorAnalyzerRangedHSV(t *testing.T) {
	// Pure red is H=0, S=100, V=100.
	cc := &product.ColorConfig{ColorRanges: []product.ColorRange{
		{Name: "red", Lower: []int{0, 80, 80}, Upper: []int{20, 100, 100}, ColorSpace: "HSV", Threshold: 80},
	}}
	a := &colorAnalyzer{}
	p, err := a.Analyze(context.Background(), Request{
		ROI:    product.ROI{Index: 4, Type: product.TypeColor},
		Crop:   solid(10, 10, red),
		Colors: cc,
	})
	require.NoError(t, err)
	assert.True(t, p.Passed)
	assert.Equal(t, "red", p.DetectedColor)
}

func TestColorAnalyzerSameNameRangesAggregate(t *testing.T) {
	// Two halves of the hue space under one name must sum.
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 5 {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, green)
			}
		}
	}
	cc := &product.ColorConfig{ColorRanges: []product.ColorRange{
		{Name: "mark", Lower: []int{200, 0, 0}, Upper: []int{255, 60, 60}, ColorSpace: "RGB", Threshold: 90},
		{Name: "mark", Lower: []int{0, 200, 0}, Upper: []int{60, 255, 60}, ColorSpace: "RGB", Threshold: 90},
	}}
	a := &colorAnalyzer{}
	p, err := a.Analyze(context.Background(), Request{
		ROI:    product.ROI{Index: 4, Type: product.TypeColor},
		Crop:   img,
		Colors: cc,
	})
	require.NoError(t, err)
	assert.True(t, p.Passed)
	assert.Equal(t, "mark", p.DetectedColor)
	assert.InDelta(t, 100.0, p.MatchPercentage, 0.01)
}

func TestColorAnalyzerMissingConfig(t *testing.T) {
	a := &colorAnalyzer{}
	_, err := a.Analyze(context.Background(), Request{
		ROI:  product.ROI{Index: 4, Type: product.TypeColor},
		Crop: solid(4, 4, red),
	})
	require.Error(t, err)
}

func TestSimulatedEngines(t *testing.T) {
	ctx := context.Background()

	dec := simulatedDecoder{}
	vals, err := dec.Decode(ctx, solid(8, 8, red))
	require.NoError(t, err)
	assert.Empty(t, vals, "uniform crops decode to nothing")

	noisy := image.NewRGBA(image.Rect(0, 0, 8, 8))
	noisy.SetRGBA(3, 3, white)
	vals, err = dec.Decode(ctx, noisy)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	again, _ := dec.Decode(ctx, noisy)
	assert.Equal(t, vals, again, "simulation must be deterministic")

	ocr := simulatedOCR{}
	text, err := ocr.Recognize(ctx, noisy)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestRegistryDispatchAndWarmup(t *testing.T) {
	reg := NewRegistry(Capabilities{}, stubGoldens{})

	assert.NotNil(t, reg.For(product.TypeBarcode))
	assert.NotNil(t, reg.For(product.TypeCompare))
	assert.NotNil(t, reg.For(product.TypeOCR))
	assert.NotNil(t, reg.For(product.TypeColor))
	assert.Nil(t, reg.For(product.ROIType(9)))

	statuses := reg.Warmup(context.Background())
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.Equal(t, ModeSimulation, s.Mode, s.Name)
	}

	real := NewRegistry(Capabilities{Barcode: stubDecoder{}, OCR: stubOCR{}}, stubGoldens{})
	statuses = real.Warmup(context.Background())
	modes := map[string]string{}
	for _, s := range statuses {
		modes[s.Name] = s.Mode
	}
	assert.Equal(t, ModeReal, modes["barcode"])
	assert.Equal(t, ModeReal, modes["ocr"])
	assert.Equal(t, ModeSimulation, modes["features"])
}
