// SPDX-License-Identifier: MIT

package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// barcodeAnalyzer passes when the decoder finds at least one non-empty
// value in the crop.
type barcodeAnalyzer struct {
	decoder BarcodeDecoder
}

func (a *barcodeAnalyzer) Analyze(ctx context.Context, req Request) (Payload, error) {
	values, err := a.decoder.Decode(ctx, req.Crop)
	if err != nil {
		return Payload{}, fmt.Errorf("barcode decode: %w", err)
	}

	cleaned := make([]string, 0, len(values))
	passed := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		cleaned = append(cleaned, v)
		if v != "" {
			passed = true
		}
	}

	return Payload{
		Passed:        passed,
		BarcodeValues: cleaned,
	}, nil
}
