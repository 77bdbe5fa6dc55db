// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldDuration  = "duration_ms"

	// Inspection fields
	FieldProduct    = "product"
	FieldROIIndex   = "roi_index"
	FieldROIType    = "roi_type"
	FieldDevice     = "device"
	FieldBarcode    = "barcode"
	FieldFocus      = "focus"
	FieldExposure   = "exposure"
	FieldScore      = "score"
	FieldResult     = "result"
	FieldSimulation = "simulation"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
