// SPDX-License-Identifier: MIT

// Package product stores per-product ROI configurations on the shared
// filesystem: canonical twelve-field ROIs, legacy-format normalization,
// type/field coupling validation and golden-folder garbage collection.
package product

import (
	"encoding/json"
	"fmt"
	"image"
	"sort"
)

// ROIType enumerates the four analyzer families.
type ROIType int

const (
	TypeBarcode ROIType = 1
	TypeCompare ROIType = 2
	TypeOCR     ROIType = 3
	TypeColor   ROIType = 4
)

// String returns the display name carried in roi_type_name fields.
func (t ROIType) String() string {
	switch t {
	case TypeBarcode:
		return "Barcode"
	case TypeCompare:
		return "Compare"
	case TypeOCR:
		return "OCR"
	case TypeColor:
		return "Color"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Valid reports whether t is one of the four known ROI types.
func (t ROIType) Valid() bool { return t >= TypeBarcode && t <= TypeColor }

// Feature extraction methods accepted in feature_method.
const (
	MethodMobileNet = "mobilenet"
	MethodOpenCV    = "opencv"
	MethodSIFT      = "sift"
	MethodORB       = "orb"
	MethodBarcode   = "barcode"
	MethodOCR       = "ocr"
)

// compareMethods are the feature methods usable by Compare ROIs.
var compareMethods = map[string]bool{
	MethodMobileNet: true,
	MethodOpenCV:    true,
	MethodSIFT:      true,
	MethodORB:       true,
}

// Coords is an axis-aligned box in pixel space. The wire form is the
// four-element array [x1, y1, x2, y2]; the legacy object form
// {"x1":..,"y1":..,"x2":..,"y2":..} is still accepted on input.
type Coords struct {
	X1, Y1, X2, Y2 int
}

func (c Coords) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{c.X1, c.Y1, c.X2, c.Y2})
}

func (c *Coords) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) != 4 {
			return fmt.Errorf("coords: expected 4 elements, got %d", len(arr))
		}
		c.X1, c.Y1, c.X2, c.Y2 = arr[0], arr[1], arr[2], arr[3]
		return nil
	}
	var obj struct {
		X1 *int `json:"x1"`
		Y1 *int `json:"y1"`
		X2 *int `json:"x2"`
		Y2 *int `json:"y2"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("coords: expected [x1,y1,x2,y2] array or {x1,y1,x2,y2} object: %w", err)
	}
	if obj.X1 == nil || obj.Y1 == nil || obj.X2 == nil || obj.Y2 == nil {
		return fmt.Errorf("coords: object form requires x1, y1, x2 and y2")
	}
	c.X1, c.Y1, c.X2, c.Y2 = *obj.X1, *obj.Y1, *obj.X2, *obj.Y2
	return nil
}

// Rect converts the box into an image.Rectangle for cropping.
func (c Coords) Rect() image.Rectangle { return image.Rect(c.X1, c.Y1, c.X2, c.Y2) }

func (c Coords) Width() int  { return c.X2 - c.X1 }
func (c Coords) Height() int { return c.Y2 - c.Y1 }

// ColorRange is one named band of a legacy multi-range color config.
type ColorRange struct {
	Name       string  `json:"name"`
	Lower      []int   `json:"lower"`
	Upper      []int   `json:"upper"`
	ColorSpace string  `json:"color_space"`
	Threshold  float64 `json:"threshold"`
}

// ColorConfig describes what a Color ROI is expected to contain.
// Exactly one of the two modes is populated: the simple expected-color
// form or the legacy color_ranges form.
type ColorConfig struct {
	ExpectedColor      []int        `json:"expected_color,omitempty"`
	ColorTolerance     *int         `json:"color_tolerance,omitempty"`
	MinPixelPercentage *float64     `json:"min_pixel_percentage,omitempty"`
	ColorRanges        []ColorRange `json:"color_ranges,omitempty"`
}

// Simple reports whether the config uses the expected-color form.
func (c *ColorConfig) Simple() bool { return c != nil && len(c.ExpectedColor) > 0 }

// Ranged reports whether the config uses the legacy color_ranges form.
func (c *ColorConfig) Ranged() bool { return c != nil && len(c.ColorRanges) > 0 }

// Clone returns a deep copy of the config.
func (c *ColorConfig) Clone() *ColorConfig {
	if c == nil {
		return nil
	}
	out := &ColorConfig{}
	if c.ExpectedColor != nil {
		out.ExpectedColor = append([]int(nil), c.ExpectedColor...)
	}
	if c.ColorTolerance != nil {
		v := *c.ColorTolerance
		out.ColorTolerance = &v
	}
	if c.MinPixelPercentage != nil {
		v := *c.MinPixelPercentage
		out.MinPixelPercentage = &v
	}
	if c.ColorRanges != nil {
		out.ColorRanges = make([]ColorRange, len(c.ColorRanges))
		for i, rg := range c.ColorRanges {
			cp := rg
			cp.Lower = append([]int(nil), rg.Lower...)
			cp.Upper = append([]int(nil), rg.Upper...)
			out.ColorRanges[i] = cp
		}
	}
	return out
}

// ROI is the canonical twelve-field region definition. Fields that do
// not apply to the ROI's type stay nil and serialize as null.
type ROI struct {
	Index           int          `json:"idx"`
	Type            ROIType      `json:"type"`
	Coords          Coords       `json:"coords"`
	Focus           int          `json:"focus"`
	Exposure        int          `json:"exposure"`
	DeviceLocation  int          `json:"device_location"`
	Rotation        int          `json:"rotation"`
	AIThreshold     *float64     `json:"ai_threshold"`
	FeatureMethod   *string      `json:"feature_method"`
	ExpectedText    *string      `json:"expected_text"`
	IsDeviceBarcode *bool        `json:"is_device_barcode"`
	ColorConfig     *ColorConfig `json:"color_config"`
}

// DeviceBarcode reports whether this ROI identifies its device.
func (r *ROI) DeviceBarcode() bool {
	return r.Type == TypeBarcode && r.IsDeviceBarcode != nil && *r.IsDeviceBarcode
}

// Method returns the effective feature method, or "" when unset.
func (r *ROI) Method() string {
	if r.FeatureMethod == nil {
		return ""
	}
	return *r.FeatureMethod
}

// Threshold returns the effective compare similarity threshold.
func (r *ROI) Threshold() float64 {
	if r.AIThreshold == nil {
		return DefaultAIThreshold
	}
	return *r.AIThreshold
}

// Text returns the expected OCR text, or "" when unset.
func (r *ROI) Text() string {
	if r.ExpectedText == nil {
		return ""
	}
	return *r.ExpectedText
}

// Clone returns a deep copy so cached configs never leak mutable state.
func (r ROI) Clone() ROI {
	out := r
	if r.AIThreshold != nil {
		v := *r.AIThreshold
		out.AIThreshold = &v
	}
	if r.FeatureMethod != nil {
		v := *r.FeatureMethod
		out.FeatureMethod = &v
	}
	if r.ExpectedText != nil {
		v := *r.ExpectedText
		out.ExpectedText = &v
	}
	if r.IsDeviceBarcode != nil {
		v := *r.IsDeviceBarcode
		out.IsDeviceBarcode = &v
	}
	out.ColorConfig = r.ColorConfig.Clone()
	return out
}

// CloneROIs deep-copies a config slice.
func CloneROIs(rois []ROI) []ROI {
	if rois == nil {
		return nil
	}
	out := make([]ROI, len(rois))
	for i := range rois {
		out[i] = rois[i].Clone()
	}
	return out
}

// Group identifies one camera capture: every ROI sharing a focus and
// exposure pair is photographed in the same shot.
type Group struct {
	Focus    int `json:"focus"`
	Exposure int `json:"exposure"`
}

// String renders the "focus_exposure" key used in grouped payloads.
func (g Group) String() string { return fmt.Sprintf("%d_%d", g.Focus, g.Exposure) }

// GroupByCapture buckets ROIs by their (focus, exposure) pair.
func GroupByCapture(rois []ROI) map[Group][]ROI {
	groups := make(map[Group][]ROI)
	for i := range rois {
		key := Group{Focus: rois[i].Focus, Exposure: rois[i].Exposure}
		groups[key] = append(groups[key], rois[i].Clone())
	}
	return groups
}

// SortedGroups returns the group keys in deterministic order.
func SortedGroups(groups map[Group][]ROI) []Group {
	keys := make([]Group, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Focus != keys[j].Focus {
			return keys[i].Focus < keys[j].Focus
		}
		return keys[i].Exposure < keys[j].Exposure
	})
	return keys
}
