// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inspection metrics
	inspectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_inspections_total",
		Help: "Completed inspection requests by product and overall result",
	}, []string{"product", "result"}) // result=pass|fail|error

	inspectionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aoi_inspection_duration_seconds",
		Help:    "End-to-end inspection latency per product",
		Buckets: prometheus.DefBuckets,
	}, []string{"product"})

	roiAnalysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_roi_analysis_total",
		Help: "Individual ROI analyses by type and outcome",
	}, []string{"type", "outcome"}) // type=barcode|compare|ocr|color outcome=pass|fail|error

	roiAnalysisDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aoi_roi_analysis_duration_seconds",
		Help:    "Single ROI analysis latency by type",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"type"})

	roisInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aoi_rois_in_flight",
		Help: "ROI analyses currently running across all requests",
	})

	// Golden library metrics
	goldenOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_golden_operations_total",
		Help: "Golden sample library operations by kind and outcome",
	}, []string{"op", "outcome"}) // op=upload|delete|promote|rename outcome=success|failure

	goldenPromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_golden_promotions_total",
		Help: "Alternative golden samples promoted to best, by trigger",
	}, []string{"product", "trigger"}) // trigger=upload|match

	// Session metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aoi_sessions_active",
		Help: "Currently registered inspection sessions",
	})

	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aoi_sessions_started_total",
		Help: "Total sessions started",
	})

	sessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aoi_sessions_expired_total",
		Help: "Sessions removed by the idle sweeper",
	})

	// Barcode linking metrics
	linkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_link_requests_total",
		Help: "External barcode link lookups by outcome",
	}, []string{"outcome"}) // outcome=success|error|timeout|cache_hit|disabled

	linkRequestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aoi_link_request_duration_seconds",
		Help:    "External barcode link lookup latency",
		Buckets: prometheus.DefBuckets,
	})

	// Product store metrics
	configWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aoi_product_config_writes_total",
		Help: "Product ROI configuration writes by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	// Operational metrics
	auditWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aoi_audit_write_errors_total",
		Help: "Failures persisting inspection results to the local archive",
	})
)

func RecordInspection(product, result string, seconds float64) {
	inspectionsTotal.WithLabelValues(product, result).Inc()
	inspectionDurationSeconds.WithLabelValues(product).Observe(seconds)
}

func RecordROIAnalysis(roiType, outcome string, seconds float64) {
	roiAnalysisTotal.WithLabelValues(roiType, outcome).Inc()
	roiAnalysisDurationSeconds.WithLabelValues(roiType).Observe(seconds)
}

func IncROIsInFlight() { roisInFlight.Inc() }
func DecROIsInFlight() { roisInFlight.Dec() }

func IncGoldenOperation(op, outcome string) {
	goldenOperationsTotal.WithLabelValues(op, outcome).Inc()
}

func IncGoldenPromotion(product, trigger string) {
	goldenPromotionsTotal.WithLabelValues(product, trigger).Inc()
}

func RecordSessionStarted() {
	sessionsStartedTotal.Inc()
	sessionsActive.Inc()
}

func RecordSessionClosed()     { sessionsActive.Dec() }
func RecordSessionExpired(n int) {
	sessionsExpiredTotal.Add(float64(n))
	sessionsActive.Sub(float64(n))
}

func RecordLink(outcome string, seconds float64) {
	linkRequestsTotal.WithLabelValues(outcome).Inc()
	linkRequestDurationSeconds.Observe(seconds)
}

func IncLinkOutcome(outcome string) { linkRequestsTotal.WithLabelValues(outcome).Inc() }

func IncConfigWrite(outcome string) { configWritesTotal.WithLabelValues(outcome).Inc() }

func IncAuditWriteError() { auditWriteErrors.Inc() }
