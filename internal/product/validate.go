// SPDX-License-Identifier: MIT

package product

import (
	"fmt"
	"strings"
)

// ValidationErrors aggregates per-ROI messages for a rejected config.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(e, "; "))
}

// ValidateROIs enforces the type/field coupling rules for a config
// about to be persisted. Color ROIs must carry a well-formed
// color_config.
func ValidateROIs(rois []ROI) error {
	return validateROIs(rois, true)
}

// ValidateStored checks a config read back from disk. Stored legacy
// configs may omit color_config on Color ROIs (the analyzer falls back
// to the product colors file).
func ValidateStored(rois []ROI) error {
	return validateROIs(rois, false)
}

func validateROIs(rois []ROI, requireColorConfig bool) error {
	var errs ValidationErrors
	seen := make(map[int]int, len(rois))

	for i := range rois {
		r := &rois[i]
		label := fmt.Sprintf("roi[%d] (idx %d)", i, r.Index)

		if r.Index <= 0 {
			errs = append(errs, label+": idx must be positive")
		} else if prev, dup := seen[r.Index]; dup {
			errs = append(errs, fmt.Sprintf("%s: duplicate idx, already used by roi[%d]", label, prev))
		} else {
			seen[r.Index] = i
		}

		if !r.Type.Valid() {
			errs = append(errs, fmt.Sprintf("%s: unknown type %d", label, int(r.Type)))
			continue
		}

		errs = append(errs, validateCoords(label, r.Coords)...)

		if r.Focus <= 0 {
			errs = append(errs, label+": focus must be positive")
		}
		if r.Exposure <= 0 {
			errs = append(errs, label+": exposure must be positive")
		}
		if r.DeviceLocation < 1 || r.DeviceLocation > MaxDeviceLocation {
			errs = append(errs, fmt.Sprintf("%s: device_location must be between 1 and %d", label, MaxDeviceLocation))
		}
		if !validRotation(r.Rotation) {
			errs = append(errs, fmt.Sprintf("%s: rotation must be one of 0, 90, 180, 270 (got %d)", label, r.Rotation))
		}

		switch r.Type {
		case TypeCompare:
			if r.AIThreshold == nil {
				errs = append(errs, label+": ai_threshold is required for Compare ROIs")
			} else if *r.AIThreshold < 0 || *r.AIThreshold > 1 {
				errs = append(errs, fmt.Sprintf("%s: ai_threshold must be within [0, 1] (got %g)", label, *r.AIThreshold))
			}
			if !compareMethods[r.Method()] {
				errs = append(errs, fmt.Sprintf("%s: feature_method %q is not usable for Compare ROIs", label, r.Method()))
			}
		case TypeBarcode:
			if r.Method() != MethodBarcode {
				errs = append(errs, fmt.Sprintf("%s: feature_method must be %q for Barcode ROIs", label, MethodBarcode))
			}
		case TypeOCR:
			if r.Method() != MethodOCR {
				errs = append(errs, fmt.Sprintf("%s: feature_method must be %q for OCR ROIs", label, MethodOCR))
			}
		case TypeColor:
			if r.ColorConfig == nil {
				if requireColorConfig {
					errs = append(errs, label+": color_config is required for Color ROIs")
				}
			} else {
				for _, p := range validateColorConfig(r.ColorConfig) {
					errs = append(errs, label+": "+p)
				}
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCoords(label string, c Coords) []string {
	var problems []string
	if c.X1 < 0 || c.Y1 < 0 || c.X2 < 0 || c.Y2 < 0 {
		problems = append(problems, label+": coords must be non-negative")
	}
	if c.X1 >= c.X2 {
		problems = append(problems, fmt.Sprintf("%s: coords x1 must be less than x2 (got %d >= %d)", label, c.X1, c.X2))
	}
	if c.Y1 >= c.Y2 {
		problems = append(problems, fmt.Sprintf("%s: coords y1 must be less than y2 (got %d >= %d)", label, c.Y1, c.Y2))
	}
	return problems
}

func validRotation(deg int) bool {
	switch deg {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// validateColorConfig checks either config mode. The returned messages
// carry no ROI label so the colors endpoint can reuse them verbatim.
func validateColorConfig(cc *ColorConfig) []string {
	var problems []string
	switch {
	case cc.Simple() && cc.Ranged():
		problems = append(problems, "color_config: expected_color and color_ranges are mutually exclusive")
	case cc.Simple():
		if len(cc.ExpectedColor) != 3 {
			problems = append(problems, fmt.Sprintf("color_config: expected_color must have 3 channels (got %d)", len(cc.ExpectedColor)))
		} else {
			for i, v := range cc.ExpectedColor {
				if v < 0 || v > 255 {
					problems = append(problems, fmt.Sprintf("color_config: expected_color[%d] must be within [0, 255] (got %d)", i, v))
				}
			}
		}
		if cc.ColorTolerance != nil && *cc.ColorTolerance < 0 {
			problems = append(problems, "color_config: color_tolerance must be non-negative")
		}
		if cc.MinPixelPercentage != nil && (*cc.MinPixelPercentage < 0 || *cc.MinPixelPercentage > 100) {
			problems = append(problems, "color_config: min_pixel_percentage must be within [0, 100]")
		}
	case cc.Ranged():
		for i, rg := range cc.ColorRanges {
			problems = append(problems, validateColorRange(i, rg)...)
		}
	default:
		problems = append(problems, "color_config: either expected_color or color_ranges must be set")
	}
	return problems
}

func validateColorRange(i int, rg ColorRange) []string {
	var problems []string
	prefix := fmt.Sprintf("color_ranges[%d]", i)
	if rg.Name == "" {
		problems = append(problems, prefix+": name must not be empty")
	}
	var maxima [3]int
	switch rg.ColorSpace {
	case "RGB":
		maxima = [3]int{255, 255, 255}
	case "HSV":
		maxima = [3]int{360, 100, 100}
	default:
		problems = append(problems, fmt.Sprintf("%s: color_space must be RGB or HSV (got %q)", prefix, rg.ColorSpace))
		return problems
	}
	if len(rg.Lower) != 3 || len(rg.Upper) != 3 {
		problems = append(problems, prefix+": lower and upper must have 3 channels")
		return problems
	}
	for ch := 0; ch < 3; ch++ {
		if rg.Lower[ch] < 0 || rg.Lower[ch] > maxima[ch] || rg.Upper[ch] < 0 || rg.Upper[ch] > maxima[ch] {
			problems = append(problems, fmt.Sprintf("%s: channel %d must be within [0, %d]", prefix, ch, maxima[ch]))
		}
		if rg.Lower[ch] > rg.Upper[ch] {
			problems = append(problems, fmt.Sprintf("%s: lower[%d] must not exceed upper[%d]", prefix, ch, ch))
		}
	}
	if rg.Threshold < 0 || rg.Threshold > 100 {
		problems = append(problems, prefix+": threshold must be within [0, 100]")
	}
	return problems
}
