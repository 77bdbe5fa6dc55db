// SPDX-License-Identifier: MIT

package api

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaVersion tags the published ROI and result document shapes.
// Bump it whenever a field changes meaning or a new one is added.
const SchemaVersion = "1.0"

// roiSchema describes the canonical twelve-field ROI document served
// to configuration frontends.
func roiSchema() *openapi3.Schema {
	coords := openapi3.NewArraySchema().
		WithItems(openapi3.NewIntegerSchema())
	coords.Description = "pixel box as [x1, y1, x2, y2]"
	coords.MinItems = 4
	four := uint64(4)
	coords.MaxItems = &four

	roiType := openapi3.NewIntegerSchema().
		WithEnum(1, 2, 3, 4)
	roiType.Description = "1=Barcode 2=Compare 3=OCR 4=Color"

	method := openapi3.NewStringSchema().
		WithEnum("mobilenet", "opencv", "sift", "orb", "barcode", "ocr")
	method.Nullable = true

	threshold := openapi3.NewFloat64Schema().WithMin(0).WithMax(1)
	threshold.Nullable = true

	expected := openapi3.NewStringSchema()
	expected.Nullable = true

	deviceBarcode := openapi3.NewBoolSchema()
	deviceBarcode.Nullable = true

	colorCfg := colorConfigSchema()
	colorCfg.Nullable = true

	s := openapi3.NewObjectSchema().
		WithProperty("idx", openapi3.NewIntegerSchema().WithMin(1)).
		WithProperty("type", roiType).
		WithProperty("coords", coords).
		WithProperty("focus", openapi3.NewIntegerSchema().WithMin(1)).
		WithProperty("exposure", openapi3.NewIntegerSchema().WithMin(1)).
		WithProperty("device_location", openapi3.NewIntegerSchema().WithMin(1).WithMax(4)).
		WithProperty("rotation", openapi3.NewIntegerSchema().WithEnum(0, 90, 180, 270)).
		WithProperty("ai_threshold", threshold).
		WithProperty("feature_method", method).
		WithProperty("expected_text", expected).
		WithProperty("is_device_barcode", deviceBarcode).
		WithProperty("color_config", colorCfg)
	s.Description = "one inspection region; fields not used by the roi type are null"
	s.Required = []string{"idx", "type", "coords", "focus", "exposure", "device_location"}
	return s
}

func colorConfigSchema() *openapi3.Schema {
	channel := openapi3.NewIntegerSchema().WithMin(0).WithMax(255)
	rgb := openapi3.NewArraySchema().WithItems(channel)
	rgb.Description = "RGB triplet"

	rangeSchema := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("lower", rgb).
		WithProperty("upper", rgb).
		WithProperty("color_space", openapi3.NewStringSchema()).
		WithProperty("threshold", openapi3.NewFloat64Schema().WithMin(0).WithMax(1))

	return openapi3.NewObjectSchema().
		WithProperty("expected_color", rgb).
		WithProperty("color_tolerance", openapi3.NewIntegerSchema().WithMin(0)).
		WithProperty("min_pixel_percentage", openapi3.NewFloat64Schema().WithMin(0).WithMax(100)).
		WithProperty("color_ranges", openapi3.NewArraySchema().WithItems(rangeSchema))
}

// resultSchema describes the inspection response document.
func resultSchema() *openapi3.Schema {
	roiResult := openapi3.NewObjectSchema().
		WithProperty("roi_id", openapi3.NewIntegerSchema()).
		WithProperty("device_id", openapi3.NewIntegerSchema()).
		WithProperty("roi_type_name", openapi3.NewStringSchema().
			WithEnum("Barcode", "Compare", "OCR", "Color")).
		WithProperty("passed", openapi3.NewBoolSchema()).
		WithProperty("coordinates", openapi3.NewArraySchema().
			WithItems(openapi3.NewIntegerSchema())).
		WithProperty("roi_image_path", openapi3.NewStringSchema()).
		WithProperty("golden_image_path", openapi3.NewStringSchema()).
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("barcode_values", openapi3.NewArraySchema().
			WithItems(openapi3.NewStringSchema())).
		WithProperty("match_result", openapi3.NewStringSchema().
			WithEnum("Match", "Different")).
		WithProperty("ai_similarity", openapi3.NewFloat64Schema().WithMin(0).WithMax(1)).
		WithProperty("ocr_text", openapi3.NewStringSchema()).
		WithProperty("detected_color", openapi3.NewStringSchema()).
		WithProperty("match_percentage", openapi3.NewFloat64Schema()).
		WithProperty("dominant_color", openapi3.NewArraySchema().
			WithItems(openapi3.NewIntegerSchema())).
		WithProperty("threshold", openapi3.NewFloat64Schema())
	roiResult.Required = []string{"roi_id", "device_id", "roi_type_name", "passed", "coordinates"}

	deviceSummary := openapi3.NewObjectSchema().
		WithProperty("device_id", openapi3.NewIntegerSchema()).
		WithProperty("total_rois", openapi3.NewIntegerSchema()).
		WithProperty("passed_rois", openapi3.NewIntegerSchema()).
		WithProperty("failed_rois", openapi3.NewIntegerSchema()).
		WithProperty("device_passed", openapi3.NewBoolSchema()).
		WithProperty("barcode", openapi3.NewStringSchema()).
		WithProperty("results", openapi3.NewArraySchema().WithItems(roiResult))
	deviceSummary.Description = `barcode is "N/A" when the device has no barcode source`

	overall := openapi3.NewObjectSchema().
		WithProperty("passed", openapi3.NewBoolSchema()).
		WithProperty("total_rois", openapi3.NewIntegerSchema()).
		WithProperty("passed_rois", openapi3.NewIntegerSchema()).
		WithProperty("failed_rois", openapi3.NewIntegerSchema())

	s := openapi3.NewObjectSchema().
		WithProperty("roi_results", openapi3.NewArraySchema().WithItems(roiResult)).
		WithProperty("device_summaries", openapi3.NewArraySchema().WithItems(deviceSummary)).
		WithProperty("overall_result", overall).
		WithProperty("processing_time", openapi3.NewFloat64Schema()).
		WithProperty("session_id", openapi3.NewStringSchema()).
		WithProperty("product_name", openapi3.NewStringSchema())
	s.Description = "full inspection response document"
	s.Required = []string{"roi_results", "device_summaries", "overall_result", "session_id", "product_name"}
	return s
}
