// SPDX-License-Identifier: MIT

// Package inspect runs the inspection pipeline: per-ROI processing,
// capture-group orchestration and per-device result aggregation with
// barcode priority selection and external linking.
package inspect

// ROIResult is the wire form of one analyzed region.
type ROIResult struct {
	ROIID       int    `json:"roi_id"`
	DeviceID    int    `json:"device_id"`
	ROITypeName string `json:"roi_type_name"`
	Passed      bool   `json:"passed"`
	Coordinates [4]int `json:"coordinates"`

	ROIImagePath    string `json:"roi_image_path,omitempty"`
	GoldenImagePath string `json:"golden_image_path,omitempty"`
	Error           string `json:"error,omitempty"`

	// Barcode
	BarcodeValues []string `json:"barcode_values,omitempty"`

	// Compare
	MatchResult  string   `json:"match_result,omitempty"`
	AISimilarity *float64 `json:"ai_similarity,omitempty"`

	// OCR
	OCRText *string `json:"ocr_text,omitempty"`

	// Color
	DetectedColor   string   `json:"detected_color,omitempty"`
	MatchPercentage *float64 `json:"match_percentage,omitempty"`
	DominantColor   []int    `json:"dominant_color,omitempty"`

	// Compare and Color pass thresholds.
	Threshold *float64 `json:"threshold,omitempty"`

	// deviceBarcode marks the result of a Barcode ROI flagged
	// is_device_barcode; the aggregator's P0 source reads it.
	deviceBarcode bool
}

// firstBarcode returns the first non-empty decoded value.
func (r *ROIResult) firstBarcode() string {
	for _, v := range r.BarcodeValues {
		if v != "" {
			return v
		}
	}
	return ""
}

// NoBarcode is the canonical placeholder for devices without any
// barcode source.
const NoBarcode = "N/A"

// DeviceSummary is the per-device rollup.
type DeviceSummary struct {
	DeviceID     int         `json:"device_id"`
	TotalROIs    int         `json:"total_rois"`
	PassedROIs   int         `json:"passed_rois"`
	FailedROIs   int         `json:"failed_rois"`
	DevicePassed bool        `json:"device_passed"`
	Barcode      string      `json:"barcode"`
	Results      []ROIResult `json:"results"`
}

// OverallResult is the whole-frame rollup.
type OverallResult struct {
	Passed     bool `json:"passed"`
	TotalROIs  int  `json:"total_rois"`
	PassedROIs int  `json:"passed_rois"`
	FailedROIs int  `json:"failed_rois"`
}

// Response is the full inspection response document.
type Response struct {
	ROIResults      []ROIResult     `json:"roi_results"`
	DeviceSummaries []DeviceSummary `json:"device_summaries"`
	Overall         OverallResult   `json:"overall_result"`
	ProcessingTime  float64         `json:"processing_time"`
	SessionID       string          `json:"session_id"`
	ProductName     string          `json:"product_name"`
}

// ImageSource carries one of the three accepted image inputs, in
// priority order: absolute client path, session-relative filename,
// inline base64.
type ImageSource struct {
	Path     string `json:"image_path,omitempty"`
	Filename string `json:"image_filename,omitempty"`
	Base64   string `json:"image,omitempty"`
}

// Empty reports whether no input method was provided.
func (s ImageSource) Empty() bool {
	return s.Path == "" && s.Filename == "" && s.Base64 == ""
}

// Barcodes carries manually supplied device barcodes: the per-device
// map and the legacy single value.
type Barcodes struct {
	PerDevice map[int]string
	Legacy    string
}
