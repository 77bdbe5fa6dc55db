// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Inspection attributes
	InspectionProductKey = "inspection.product"
	InspectionSessionKey = "inspection.session_id"
	InspectionGroupsKey  = "inspection.groups"
	InspectionROIsKey    = "inspection.rois"
	InspectionResultKey  = "inspection.result"

	// ROI attributes
	ROIIndexKey = "roi.index"
	ROITypeKey  = "roi.type"
	ROIScoreKey = "roi.score"

	// Golden library attributes
	GoldenOpKey      = "golden.op"
	GoldenProductKey = "golden.product"

	// Link attributes
	LinkOutcomeKey = "link.outcome"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// InspectionAttributes creates inspection-scoped span attributes.
func InspectionAttributes(product, sessionID string, groups, rois int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if product != "" {
		attrs = append(attrs, attribute.String(InspectionProductKey, product))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(InspectionSessionKey, sessionID))
	}
	attrs = append(attrs,
		attribute.Int(InspectionGroupsKey, groups),
		attribute.Int(InspectionROIsKey, rois),
	)
	return attrs
}

// ROIAttributes creates attributes for a single ROI analysis span.
func ROIAttributes(index int, roiType string, score float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ROIIndexKey, index),
		attribute.String(ROITypeKey, roiType),
		attribute.Float64(ROIScoreKey, score),
	}
}

// GoldenAttributes creates golden library operation attributes.
func GoldenAttributes(op, product string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(GoldenOpKey, op),
		attribute.String(GoldenProductKey, product),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
