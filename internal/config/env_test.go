// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		set      bool
		def      string
		expected string
	}{
		{"unset returns default", "AOI_TEST_STR_A", "", false, "fallback", "fallback"},
		{"set returns value", "AOI_TEST_STR_B", "hello", true, "fallback", "hello"},
		{"empty returns default", "AOI_TEST_STR_C", "", true, "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(tt.key, tt.value)
			}
			if got := ParseString(tt.key, tt.def); got != tt.expected {
				t.Errorf("ParseString(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		def      int
		expected int
	}{
		{"unset returns default", "", false, 42, 42},
		{"valid int", "7", true, 42, 7},
		{"invalid int returns default", "seven", true, 42, 42},
		{"empty returns default", "", true, 42, 42},
		{"negative allowed", "-3", true, 42, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "AOI_TEST_INT"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := ParseInt(key, tt.def); got != tt.expected {
				t.Errorf("ParseInt(%q) = %d, want %d", key, got, tt.expected)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		def      time.Duration
		expected time.Duration
	}{
		{"unset returns default", "", false, 5 * time.Second, 5 * time.Second},
		{"valid duration", "90s", true, 5 * time.Second, 90 * time.Second},
		{"invalid duration returns default", "ninety", true, 5 * time.Second, 5 * time.Second},
		{"bare number rejected", "90", true, 5 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "AOI_TEST_DUR"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := ParseDuration(key, tt.def); got != tt.expected {
				t.Errorf("ParseDuration(%q) = %v, want %v", key, got, tt.expected)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		def      bool
		expected bool
	}{
		{"unset returns default", "", false, true, true},
		{"true", "true", true, false, true},
		{"one", "1", true, false, true},
		{"yes", "YES", true, false, true},
		{"false", "false", true, true, false},
		{"zero", "0", true, true, false},
		{"garbage returns default", "maybe", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "AOI_TEST_BOOL"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := ParseBool(key, tt.def); got != tt.expected {
				t.Errorf("ParseBool(%q) = %v, want %v", key, got, tt.expected)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	t.Setenv("AOI_TEST_FLOAT", "2.5")
	if got := ParseFloat("AOI_TEST_FLOAT", 1.0); got != 2.5 {
		t.Errorf("ParseFloat = %v, want 2.5", got)
	}
	t.Setenv("AOI_TEST_FLOAT", "nope")
	if got := ParseFloat("AOI_TEST_FLOAT", 1.0); got != 1.0 {
		t.Errorf("ParseFloat fallback = %v, want 1.0", got)
	}
}
