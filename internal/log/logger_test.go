// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponentEmitsComponentField(t *testing.T) {
	var buf bytes.Buffer
	orig := base
	base = zerolog.New(&buf).With().Timestamp().Str("service", "aoid").Logger()
	defer func() { base = orig }()

	l := WithComponent("golden")
	l.Info().Str(FieldProduct, "widget-a").Msg("promoted")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["component"] != "golden" {
		t.Errorf("component = %v, want golden", entry["component"])
	}
	if entry["product"] != "widget-a" {
		t.Errorf("product = %v, want widget-a", entry["product"])
	}
	if entry["service"] != "aoid" {
		t.Errorf("service = %v, want aoid", entry["service"])
	}
}

func TestConfigureIsIdempotent(t *testing.T) {
	Configure(Config{Level: "debug"})
	first := Base()
	Configure(Config{Level: "error"})
	second := Base()
	if first.GetLevel() != second.GetLevel() {
		t.Error("Configure must only take effect once")
	}
}
