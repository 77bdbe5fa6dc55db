// SPDX-License-Identifier: MIT

package product

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validCompareROI(idx int) ROI {
	roi := ROI{
		Index:  idx,
		Type:   TypeCompare,
		Coords: Coords{X1: 0, Y1: 0, X2: 100, Y2: 100},
	}
	Normalize(&roi)
	return roi
}

func TestValidateROIsAcceptsSeededConfig(t *testing.T) {
	require.NoError(t, ValidateROIs(SeedROIs(4)))
}

func TestValidateROIsRejections(t *testing.T) {
	colorROI := func(cc *ColorConfig) ROI {
		roi := ROI{Index: 1, Type: TypeColor, Coords: Coords{X2: 10, Y2: 10}, ColorConfig: cc}
		Normalize(&roi)
		return roi
	}
	withField := func(mutate func(*ROI)) []ROI {
		roi := validCompareROI(1)
		mutate(&roi)
		return []ROI{roi}
	}

	cases := []struct {
		name string
		rois []ROI
		want string
	}{
		{
			name: "zero idx",
			rois: []ROI{validCompareROI(0)},
			want: "idx must be positive",
		},
		{
			name: "duplicate idx",
			rois: []ROI{validCompareROI(3), validCompareROI(3)},
			want: "duplicate idx",
		},
		{
			name: "unknown type",
			rois: withField(func(r *ROI) { r.Type = ROIType(8) }),
			want: "unknown type 8",
		},
		{
			name: "degenerate x span",
			rois: withField(func(r *ROI) { r.Coords = Coords{X1: 5, Y1: 0, X2: 5, Y2: 10} }),
			want: "x1 must be less than x2",
		},
		{
			name: "degenerate y span",
			rois: withField(func(r *ROI) { r.Coords = Coords{X1: 0, Y1: 9, X2: 5, Y2: 9} }),
			want: "y1 must be less than y2",
		},
		{
			name: "negative coords",
			rois: withField(func(r *ROI) { r.Coords = Coords{X1: -1, Y1: 0, X2: 5, Y2: 10} }),
			want: "coords must be non-negative",
		},
		{
			name: "negative focus",
			rois: withField(func(r *ROI) { r.Focus = -5 }),
			want: "focus must be positive",
		},
		{
			name: "zero exposure",
			rois: withField(func(r *ROI) { r.Exposure = 0 }),
			want: "exposure must be positive",
		},
		{
			name: "device location out of range",
			rois: withField(func(r *ROI) { r.DeviceLocation = 5 }),
			want: "device_location must be between 1 and 4",
		},
		{
			name: "non right-angle rotation",
			rois: withField(func(r *ROI) { r.Rotation = 45 }),
			want: "rotation must be one of 0, 90, 180, 270",
		},
		{
			name: "threshold above one",
			rois: withField(func(r *ROI) { r.AIThreshold = ptr(1.5) }),
			want: "ai_threshold must be within [0, 1]",
		},
		{
			name: "missing threshold",
			rois: withField(func(r *ROI) { r.AIThreshold = nil }),
			want: "ai_threshold is required",
		},
		{
			name: "compare with barcode method",
			rois: withField(func(r *ROI) { r.FeatureMethod = ptr(MethodBarcode) }),
			want: "not usable for Compare",
		},
		{
			name: "barcode with sift method",
			rois: func() []ROI {
				roi := ROI{Index: 1, Type: TypeBarcode, Coords: Coords{X2: 10, Y2: 10}}
				Normalize(&roi)
				roi.FeatureMethod = ptr(MethodSIFT)
				return []ROI{roi}
			}(),
			want: `feature_method must be "barcode"`,
		},
		{
			name: "ocr with mobilenet method",
			rois: func() []ROI {
				roi := ROI{Index: 1, Type: TypeOCR, Coords: Coords{X2: 10, Y2: 10}}
				Normalize(&roi)
				roi.FeatureMethod = ptr(MethodMobileNet)
				return []ROI{roi}
			}(),
			want: `feature_method must be "ocr"`,
		},
		{
			name: "color without config",
			rois: []ROI{colorROI(nil)},
			want: "color_config is required",
		},
		{
			name: "color with empty config",
			rois: []ROI{colorROI(&ColorConfig{})},
			want: "either expected_color or color_ranges",
		},
		{
			name: "color with short channel list",
			rois: []ROI{colorROI(&ColorConfig{ExpectedColor: []int{10, 20}})},
			want: "expected_color must have 3 channels",
		},
		{
			name: "color channel out of range",
			rois: []ROI{colorROI(&ColorConfig{ExpectedColor: []int{10, 20, 300}})},
			want: "must be within [0, 255]",
		},
		{
			name: "color with both modes",
			rois: []ROI{colorROI(&ColorConfig{
				ExpectedColor: []int{1, 2, 3},
				ColorRanges:   []ColorRange{{Name: "red", Lower: []int{0, 0, 0}, Upper: []int{255, 0, 0}, ColorSpace: "RGB", Threshold: 50}},
			})},
			want: "mutually exclusive",
		},
		{
			name: "range with unknown color space",
			rois: []ROI{colorROI(&ColorConfig{
				ColorRanges: []ColorRange{{Name: "x", Lower: []int{0, 0, 0}, Upper: []int{1, 1, 1}, ColorSpace: "LAB", Threshold: 10}},
			})},
			want: "color_space must be RGB or HSV",
		},
		{
			name: "range with inverted bounds",
			rois: []ROI{colorROI(&ColorConfig{
				ColorRanges: []ColorRange{{Name: "x", Lower: []int{9, 0, 0}, Upper: []int{1, 1, 1}, ColorSpace: "RGB", Threshold: 10}},
			})},
			want: "lower[0] must not exceed upper[0]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateROIs(tc.rois)
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)

			found := false
			for _, msg := range verrs {
				if strings.Contains(msg, tc.want) {
					found = true
					break
				}
			}
			assert.True(t, found, "want %q somewhere in %v", tc.want, verrs)
		})
	}
}

func TestValidateStoredAllowsColorWithoutConfig(t *testing.T) {
	roi := ROI{Index: 1, Type: TypeColor, Coords: Coords{X2: 10, Y2: 10}}
	Normalize(&roi)

	require.Error(t, ValidateROIs([]ROI{roi}))
	require.NoError(t, ValidateStored([]ROI{roi}))
}
