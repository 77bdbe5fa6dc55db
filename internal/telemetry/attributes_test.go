// SPDX-License-Identifier: MIT

package telemetry

import (
	"errors"
	"testing"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/api/inspect", "http://localhost/api/inspect", 200)
	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
}

func TestInspectionAttributesSkipsEmpty(t *testing.T) {
	attrs := InspectionAttributes("", "", 2, 6)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes without product/session, got %d", len(attrs))
	}

	attrs = InspectionAttributes("widget-a", "s-1", 2, 6)
	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "validation")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
}
