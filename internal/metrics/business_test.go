// SPDX-License-Identifier: MIT

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visualaoi/aoid/internal/metrics"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	if _, err := srv.Client().Get(srv.URL); err != nil {
		t.Fatal(err)
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.Handler().ServeHTTP(recorder, req)
	return recorder.Body.String()
}

func TestRecordInspection(t *testing.T) {
	tests := []struct {
		name    string
		product string
		result  string
	}{
		{"pass result", "widget-a", "pass"},
		{"fail result", "widget-a", "fail"},
		{"error result", "widget-b", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics.RecordInspection(tt.product, tt.result, 0.42)

			body := scrape(t)
			if !strings.Contains(body, "aoi_inspections_total") {
				t.Error("expected aoi_inspections_total metric to be present")
			}
			if !strings.Contains(body, `result="`+tt.result+`"`) {
				t.Errorf("expected result label %q in metrics output", tt.result)
			}
			if !strings.Contains(body, `product="`+tt.product+`"`) {
				t.Errorf("expected product label %q in metrics output", tt.product)
			}
		})
	}
}

func TestRecordROIAnalysis(t *testing.T) {
	metrics.RecordROIAnalysis("barcode", "pass", 0.01)
	metrics.RecordROIAnalysis("compare", "fail", 0.2)

	body := scrape(t)
	if !strings.Contains(body, "aoi_roi_analysis_total") {
		t.Error("expected aoi_roi_analysis_total metric")
	}
	if !strings.Contains(body, `type="barcode"`) {
		t.Error("expected barcode type label in metrics")
	}
	if !strings.Contains(body, `type="compare"`) {
		t.Error("expected compare type label in metrics")
	}
}

func TestSessionGaugeBalance(t *testing.T) {
	metrics.RecordSessionStarted()
	metrics.RecordSessionClosed()
	metrics.RecordSessionStarted()
	metrics.RecordSessionExpired(1)

	body := scrape(t)
	if !strings.Contains(body, "aoi_sessions_active") {
		t.Error("expected aoi_sessions_active metric")
	}
	if !strings.Contains(body, "aoi_sessions_expired_total") {
		t.Error("expected aoi_sessions_expired_total metric")
	}
}

func TestLinkOutcomes(t *testing.T) {
	metrics.RecordLink("success", 0.05)
	metrics.IncLinkOutcome("cache_hit")

	body := scrape(t)
	if !strings.Contains(body, `outcome="cache_hit"`) {
		t.Error("expected cache_hit outcome label")
	}
	if !strings.Contains(body, "aoi_link_request_duration_seconds") {
		t.Error("expected link duration histogram")
	}
}
