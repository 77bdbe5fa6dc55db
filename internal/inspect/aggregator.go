// SPDX-License-Identifier: MIT

package inspect

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/visualaoi/aoid/internal/linker"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

// Aggregator rolls per-ROI results up into device summaries, picks
// each device's canonical barcode by strict priority and links it
// through the external service.
type Aggregator struct {
	linker linker.Linker
}

// NewAggregator builds the aggregator over a linker (use linker.Noop
// when linking is not configured).
func NewAggregator(l linker.Linker) *Aggregator {
	if l == nil {
		l = linker.Noop{}
	}
	return &Aggregator{linker: l}
}

// Aggregate deduplicates, buckets by device, assigns barcodes and
// computes the rollups.
func (a *Aggregator) Aggregate(ctx context.Context, sessionID, productName string, results []ROIResult, barcodes Barcodes, elapsed time.Duration) *Response {
	results = dedupe(results)
	devices := bucketByDevice(results)
	a.assignBarcodes(ctx, devices, barcodes)

	overall := OverallResult{TotalROIs: len(results)}
	for _, d := range devices {
		overall.PassedROIs += d.PassedROIs
		overall.FailedROIs += d.FailedROIs
	}
	overall.Passed = overall.TotalROIs > 0 && overall.PassedROIs == overall.TotalROIs

	return &Response{
		ROIResults:      results,
		DeviceSummaries: devices,
		Overall:         overall,
		ProcessingTime:  elapsed.Seconds(),
		SessionID:       sessionID,
		ProductName:     productName,
	}
}

// dedupe keeps the last-written result per (device_id, roi_id) and
// returns the survivors sorted deterministically.
func dedupe(results []ROIResult) []ROIResult {
	type key struct{ device, roi int }
	last := make(map[key]int, len(results))
	for i, r := range results {
		last[key{r.DeviceID, r.ROIID}] = i
	}
	out := make([]ROIResult, 0, len(last))
	for i, r := range results {
		if last[key{r.DeviceID, r.ROIID}] == i {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].ROIID < out[j].ROIID
	})
	return out
}

func bucketByDevice(results []ROIResult) []DeviceSummary {
	byDevice := make(map[int]*DeviceSummary)
	order := make([]int, 0, 4)
	for _, r := range results {
		d, ok := byDevice[r.DeviceID]
		if !ok {
			d = &DeviceSummary{DeviceID: r.DeviceID, Barcode: NoBarcode}
			byDevice[r.DeviceID] = d
			order = append(order, r.DeviceID)
		}
		d.TotalROIs++
		if r.Passed {
			d.PassedROIs++
		} else {
			d.FailedROIs++
		}
		d.Results = append(d.Results, r)
	}
	sort.Ints(order)

	out := make([]DeviceSummary, 0, len(order))
	for _, id := range order {
		d := byDevice[id]
		d.DevicePassed = d.TotalROIs > 0 && d.PassedROIs == d.TotalROIs
		out = append(out, *d)
	}
	return out
}

// barcodeSource is one rung of the priority ladder: it yields a raw
// barcode for a device, or "".
type barcodeSource struct {
	name   string
	lookup func(d *DeviceSummary) string
}

// assignBarcodes walks the ordered source list; each source only fills
// devices still at N/A. Filled values then go through the linker; link
// failures keep the raw value.
func (a *Aggregator) assignBarcodes(ctx context.Context, devices []DeviceSummary, barcodes Barcodes) {
	sources := []barcodeSource{
		{"roi_device_barcode", func(d *DeviceSummary) string {
			for i := range d.Results {
				if d.Results[i].deviceBarcode {
					if v := d.Results[i].firstBarcode(); v != "" {
						return v
					}
				}
			}
			return ""
		}},
		{"roi_any_barcode", func(d *DeviceSummary) string {
			for i := range d.Results {
				if v := d.Results[i].firstBarcode(); v != "" {
					return v
				}
			}
			return ""
		}},
		{"manual_map", func(d *DeviceSummary) string {
			return barcodes.PerDevice[d.DeviceID]
		}},
		{"manual_legacy", func(d *DeviceSummary) string {
			return barcodes.Legacy
		}},
	}

	logger := log.WithComponentFromContext(ctx, "aggregator")
	for i := range devices {
		d := &devices[i]
		for _, src := range sources {
			if d.Barcode != NoBarcode {
				break
			}
			if v := src.lookup(d); v != "" {
				d.Barcode = v
				logger.Debug().
					Int(log.FieldDevice, d.DeviceID).
					Str("source", src.name).
					Msg("device barcode selected")
			}
		}
		if d.Barcode != NoBarcode {
			d.Barcode = a.link(ctx, d.Barcode)
		}
	}
}

// link resolves one barcode; every failure mode keeps the raw value.
func (a *Aggregator) link(ctx context.Context, raw string) string {
	linked, err := a.linker.Link(ctx, raw)
	if err != nil {
		if errors.Is(err, linker.ErrDisabled) {
			metrics.IncLinkOutcome("disabled")
		} else {
			logger := log.WithComponentFromContext(ctx, "aggregator")
			logger.Warn().Err(err).
				Msg("barcode linking failed, keeping raw value")
		}
		return raw
	}
	if linked == "" {
		return raw
	}
	return linked
}
