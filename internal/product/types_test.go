// SPDX-License-Identifier: MIT

package product

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordsJSONRoundTrip(t *testing.T) {
	c := Coords{X1: 10, Y1: 20, X2: 110, Y2: 220}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `[10,20,110,220]`, string(data))

	var back Coords
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}

func TestCoordsUnmarshalLegacyObject(t *testing.T) {
	var c Coords
	require.NoError(t, json.Unmarshal([]byte(`{"x1":1,"y1":2,"x2":3,"y2":4}`), &c))
	assert.Equal(t, Coords{X1: 1, Y1: 2, X2: 3, Y2: 4}, c)
}

func TestCoordsUnmarshalRejectsBadShapes(t *testing.T) {
	cases := []string{
		`[1,2,3]`,
		`[1,2,3,4,5]`,
		`{"x1":1,"y1":2}`,
		`"10,20,30,40"`,
	}
	for _, raw := range cases {
		var c Coords
		assert.Error(t, json.Unmarshal([]byte(raw), &c), "input %s", raw)
	}
}

func TestROITypeNames(t *testing.T) {
	cases := []struct {
		typ   ROIType
		want  string
		valid bool
	}{
		{TypeBarcode, "Barcode", true},
		{TypeCompare, "Compare", true},
		{TypeOCR, "OCR", true},
		{TypeColor, "Color", true},
		{ROIType(0), "Unknown(0)", false},
		{ROIType(9), "Unknown(9)", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.typ.String())
		assert.Equal(t, tc.valid, tc.typ.Valid())
	}
}

func TestROICanonicalJSONHasAllKeys(t *testing.T) {
	roi := ROI{Index: 7, Type: TypeBarcode, Coords: Coords{X1: 0, Y1: 0, X2: 10, Y2: 10}}
	Normalize(&roi)

	data, err := json.Marshal(roi)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))

	want := []string{
		"idx", "type", "coords", "focus", "exposure", "device_location",
		"rotation", "ai_threshold", "feature_method", "expected_text",
		"is_device_barcode", "color_config",
	}
	assert.Len(t, m, len(want))
	for _, k := range want {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, "null", string(m["ai_threshold"]))
	assert.Equal(t, "null", string(m["color_config"]))
}

func TestROICloneIsDeep(t *testing.T) {
	threshold := 0.9
	method := MethodSIFT
	src := ROI{
		Index:         1,
		Type:          TypeCompare,
		Coords:        Coords{X2: 10, Y2: 10},
		AIThreshold:   &threshold,
		FeatureMethod: &method,
	}

	dst := src.Clone()
	*dst.AIThreshold = 0.1
	*dst.FeatureMethod = MethodORB

	assert.InDelta(t, 0.9, *src.AIThreshold, 1e-9)
	assert.Equal(t, MethodSIFT, *src.FeatureMethod)
}

func TestColorConfigCloneIsDeep(t *testing.T) {
	tol := 12
	src := &ColorConfig{
		ExpectedColor:  []int{1, 2, 3},
		ColorTolerance: &tol,
	}
	dst := src.Clone()
	dst.ExpectedColor[0] = 99
	*dst.ColorTolerance = 77

	assert.Equal(t, []int{1, 2, 3}, src.ExpectedColor)
	assert.Equal(t, 12, *src.ColorTolerance)
}

func TestGroupByCapture(t *testing.T) {
	rois := []ROI{
		{Index: 1, Focus: 305, Exposure: 3000},
		{Index: 2, Focus: 305, Exposure: 3000},
		{Index: 3, Focus: 400, Exposure: 5000},
	}

	groups := GroupByCapture(rois)
	require.Len(t, groups, 2)
	assert.Len(t, groups[Group{Focus: 305, Exposure: 3000}], 2)
	assert.Len(t, groups[Group{Focus: 400, Exposure: 5000}], 1)

	keys := SortedGroups(groups)
	require.Equal(t, []Group{{Focus: 305, Exposure: 3000}, {Focus: 400, Exposure: 5000}}, keys)
	assert.Equal(t, "305_3000", keys[0].String())
}
