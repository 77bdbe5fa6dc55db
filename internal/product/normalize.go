// SPDX-License-Identifier: MIT

package product

// Defaults padded into legacy configs. Older persisted ROIs carried as
// few as five fields; normalization brings every ROI to the canonical
// twelve-field form before validation runs.
const (
	DefaultFocus              = 300
	DefaultExposure           = 1000
	DefaultDeviceLocation     = 1
	DefaultAIThreshold        = 0.8
	DefaultColorTolerance     = 30
	DefaultMinPixelPercentage = 50.0
	MaxDeviceLocation         = 4
)

// Normalize pads missing fields with defaults, infers feature_method
// from the ROI type and clears fields that do not apply to the type.
func Normalize(r *ROI) {
	if r.Focus <= 0 {
		r.Focus = DefaultFocus
	}
	if r.Exposure <= 0 {
		r.Exposure = DefaultExposure
	}
	if r.DeviceLocation == 0 {
		r.DeviceLocation = DefaultDeviceLocation
	}

	switch r.Type {
	case TypeCompare:
		if r.AIThreshold == nil {
			v := DefaultAIThreshold
			r.AIThreshold = &v
		}
		if r.FeatureMethod == nil {
			m := MethodMobileNet
			r.FeatureMethod = &m
		}
		r.ExpectedText = nil
		r.IsDeviceBarcode = nil
		r.ColorConfig = nil
	case TypeBarcode:
		if r.FeatureMethod == nil {
			m := MethodBarcode
			r.FeatureMethod = &m
		}
		if r.IsDeviceBarcode == nil {
			v := false
			r.IsDeviceBarcode = &v
		}
		r.AIThreshold = nil
		r.ExpectedText = nil
		r.ColorConfig = nil
	case TypeOCR:
		if r.FeatureMethod == nil {
			m := MethodOCR
			r.FeatureMethod = &m
		}
		r.AIThreshold = nil
		r.IsDeviceBarcode = nil
		r.ColorConfig = nil
	case TypeColor:
		normalizeColorConfig(r.ColorConfig)
		r.FeatureMethod = nil
		r.AIThreshold = nil
		r.ExpectedText = nil
		r.IsDeviceBarcode = nil
	}
}

// NormalizeAll normalizes every ROI in place.
func NormalizeAll(rois []ROI) {
	for i := range rois {
		Normalize(&rois[i])
	}
}

func normalizeColorConfig(cc *ColorConfig) {
	if cc == nil || !cc.Simple() {
		return
	}
	if cc.ColorTolerance == nil {
		v := DefaultColorTolerance
		cc.ColorTolerance = &v
	}
	if cc.MinPixelPercentage == nil {
		v := DefaultMinPixelPercentage
		cc.MinPixelPercentage = &v
	}
}

// SeedROIs builds the default config for a freshly created product:
// one Barcode, one Compare and one OCR ROI per device slot, laid out
// in a coarse grid so the boxes never overlap.
func SeedROIs(numDevices int) []ROI {
	types := []ROIType{TypeBarcode, TypeCompare, TypeOCR}
	rois := make([]ROI, 0, numDevices*len(types))
	for d := 1; d <= numDevices; d++ {
		for t, typ := range types {
			roi := ROI{
				Index: (d-1)*len(types) + t + 1,
				Type:  typ,
				Coords: Coords{
					X1: 120 * (d - 1),
					Y1: 120 * t,
					X2: 120*(d-1) + 100,
					Y2: 120*t + 100,
				},
				DeviceLocation: d,
			}
			Normalize(&roi)
			rois = append(rois, roi)
		}
	}
	return rois
}
