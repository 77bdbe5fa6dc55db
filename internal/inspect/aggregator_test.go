// SPDX-License-Identifier: MIT

package inspect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkFunc func(ctx context.Context, barcode string) (string, error)

func (f linkFunc) Link(ctx context.Context, barcode string) (string, error) { return f(ctx, barcode) }

func prefixLinker(calls *[]string) linkFunc {
	return func(_ context.Context, barcode string) (string, error) {
		if calls != nil {
			*calls = append(*calls, barcode)
		}
		return "LINKED-" + barcode, nil
	}
}

func barcodeResult(device, roi int, flagged bool, passed bool, values ...string) ROIResult {
	return ROIResult{
		ROIID:         roi,
		DeviceID:      device,
		ROITypeName:   "Barcode",
		Passed:        passed,
		BarcodeValues: values,
		deviceBarcode: flagged,
	}
}

func plainResult(device, roi int, passed bool) ROIResult {
	return ROIResult{ROIID: roi, DeviceID: device, ROITypeName: "OCR", Passed: passed}
}

func TestAggregateBarcodePriorityP0(t *testing.T) {
	var calls []string
	a := NewAggregator(prefixLinker(&calls))

	resp := a.Aggregate(context.Background(), "s1", "demoA", []ROIResult{
		barcodeResult(1, 1, true, true, "ABC"),
		barcodeResult(1, 2, false, true, "OTHER"),
		plainResult(1, 3, true),
	}, Barcodes{PerDevice: map[int]string{1: "MANUAL"}}, time.Second)

	require.Len(t, resp.DeviceSummaries, 1)
	assert.Equal(t, "LINKED-ABC", resp.DeviceSummaries[0].Barcode)
	assert.Equal(t, []string{"ABC"}, calls, "only the selected barcode is linked")

	// Raw decoded values stay visible in the roi results.
	for _, r := range resp.ROIResults {
		if r.ROIID == 1 {
			assert.Equal(t, []string{"ABC"}, r.BarcodeValues)
		}
	}
}

func TestAggregateBarcodePriorityFallthrough(t *testing.T) {
	tests := []struct {
		name     string
		results  []ROIResult
		barcodes Barcodes
		want     string
	}{
		{
			"P1 any barcode roi",
			[]ROIResult{barcodeResult(1, 1, true, false), barcodeResult(1, 2, false, true, "SIDE")},
			Barcodes{PerDevice: map[int]string{1: "MANUAL"}},
			"LINKED-SIDE",
		},
		{
			"P2 manual map when rois decode nothing",
			[]ROIResult{barcodeResult(1, 1, true, false)},
			Barcodes{PerDevice: map[int]string{1: "MANUAL"}},
			"LINKED-MANUAL",
		},
		{
			"P3 legacy single value",
			[]ROIResult{plainResult(1, 1, true)},
			Barcodes{Legacy: "LEGACY"},
			"LINKED-LEGACY",
		},
		{
			"P4 stays N/A",
			[]ROIResult{plainResult(1, 1, true)},
			Barcodes{},
			NoBarcode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAggregator(prefixLinker(nil))
			resp := a.Aggregate(context.Background(), "s1", "demoA", tt.results, tt.barcodes, time.Second)
			require.Len(t, resp.DeviceSummaries, 1)
			assert.Equal(t, tt.want, resp.DeviceSummaries[0].Barcode)
		})
	}
}

func TestAggregateLinkFailureKeepsRawValue(t *testing.T) {
	a := NewAggregator(linkFunc(func(context.Context, string) (string, error) {
		return "", errors.New("service down")
	}))
	resp := a.Aggregate(context.Background(), "s1", "demoA", []ROIResult{
		barcodeResult(1, 1, true, true, "ABC"),
	}, Barcodes{}, time.Second)
	assert.Equal(t, "ABC", resp.DeviceSummaries[0].Barcode)
}

func TestAggregateNeverLinksNA(t *testing.T) {
	var calls []string
	a := NewAggregator(prefixLinker(&calls))
	a.Aggregate(context.Background(), "s1", "demoA", []ROIResult{
		plainResult(1, 1, true),
	}, Barcodes{}, time.Second)
	assert.Empty(t, calls)
}

func TestAggregateDedupeKeepsLastWrite(t *testing.T) {
	a := NewAggregator(prefixLinker(nil))
	resp := a.Aggregate(context.Background(), "s1", "demoA", []ROIResult{
		plainResult(1, 1, false),
		plainResult(1, 2, true),
		plainResult(1, 1, true), // duplicate submission, last wins
	}, Barcodes{}, time.Second)

	assert.Equal(t, 2, resp.Overall.TotalROIs)
	assert.Equal(t, 2, resp.Overall.PassedROIs)
	assert.True(t, resp.Overall.Passed)
	require.Len(t, resp.ROIResults, 2)
	assert.True(t, resp.ROIResults[0].Passed)
}

func TestAggregateRollupInvariants(t *testing.T) {
	a := NewAggregator(prefixLinker(nil))
	resp := a.Aggregate(context.Background(), "s1", "demoA", []ROIResult{
		plainResult(1, 1, true),
		plainResult(1, 2, false),
		plainResult(2, 3, true),
		plainResult(2, 4, true),
	}, Barcodes{}, 1500*time.Millisecond)

	total := 0
	for _, d := range resp.DeviceSummaries {
		total += d.TotalROIs
		assert.Equal(t, d.TotalROIs, d.PassedROIs+d.FailedROIs)
		assert.Equal(t, d.PassedROIs == d.TotalROIs && d.TotalROIs > 0, d.DevicePassed)
	}
	assert.Equal(t, resp.Overall.TotalROIs, total)
	assert.Equal(t, len(resp.ROIResults), total)
	assert.False(t, resp.Overall.Passed)
	assert.InDelta(t, 1.5, resp.ProcessingTime, 0.001)

	// Device ordering is deterministic.
	assert.Equal(t, 1, resp.DeviceSummaries[0].DeviceID)
	assert.Equal(t, 2, resp.DeviceSummaries[1].DeviceID)
	assert.False(t, resp.DeviceSummaries[0].DevicePassed)
	assert.True(t, resp.DeviceSummaries[1].DevicePassed)
}

func TestAggregateEmptyBatchFails(t *testing.T) {
	a := NewAggregator(prefixLinker(nil))
	resp := a.Aggregate(context.Background(), "s1", "demoA", nil, Barcodes{}, time.Second)
	assert.False(t, resp.Overall.Passed, "an inspection with zero rois must not pass")
	assert.Zero(t, resp.Overall.TotalROIs)
}
