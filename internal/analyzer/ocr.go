// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// ocrAnalyzer recognizes text in the crop. With an expected_text it
// passes on substring containment; without one, any non-empty text
// counts as recognized.
type ocrAnalyzer struct {
	engine TextRecognizer
}

func (a *ocrAnalyzer) Analyze(ctx context.Context, req Request) (Payload, error) {
	text, err := a.engine.Recognize(ctx, req.Crop)
	if err != nil {
		return Payload{}, fmt.Errorf("ocr recognize: %w", err)
	}
	text = strings.TrimSpace(text)

	expected := strings.TrimSpace(req.ROI.Text())
	if expected == "" {
		return Payload{Passed: text != "", OCRText: text}, nil
	}

	passed := strings.Contains(text, expected)
	marker := "[FAIL:" + expected + "]"
	if passed {
		marker = "[PASS:" + expected + "]"
	}
	display := marker
	if text != "" {
		display = text + " " + marker
	}
	return Payload{Passed: passed, OCRText: display}, nil
}
