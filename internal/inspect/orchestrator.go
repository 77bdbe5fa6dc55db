// SPDX-License-Identifier: MIT

package inspect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
	"github.com/visualaoi/aoid/internal/product"
	"github.com/visualaoi/aoid/internal/shared"
)

// ErrNoImage is returned when a request carries no usable image input.
var ErrNoImage = errors.New("no image input provided")

// GroupImage pairs one capture group with the image shot for it.
type GroupImage struct {
	Group  product.Group
	Source ImageSource
}

// ResultHook observes a finished inspection response. Hooks run after
// aggregation; failures inside a hook never affect the response.
type ResultHook func(ctx context.Context, resp *Response)

// Orchestrator maps captured image groups onto their ROI subsets and
// fans the work out over one bounded pool per request.
type Orchestrator struct {
	store   *product.Store
	folder  *shared.Folder
	proc    *Processor
	agg     *Aggregator
	workers int
	hooks   []ResultHook
	tracer  trace.Tracer
}

// NewOrchestrator wires the capture-group orchestrator. workers caps
// the per-request pool; 0 means runtime.NumCPU.
func NewOrchestrator(store *product.Store, folder *shared.Folder, proc *Processor, agg *Aggregator, workers int) *Orchestrator {
	return &Orchestrator{
		store:   store,
		folder:  folder,
		proc:    proc,
		agg:     agg,
		workers: workers,
		tracer:  otel.Tracer("aoid/inspect"),
	}
}

// AddHook registers a result observer (audit archive, stats store).
func (o *Orchestrator) AddHook(h ResultHook) { o.hooks = append(o.hooks, h) }

// workItem is one (frame, ROI) pair for the pool.
type workItem struct {
	frame image.Image
	roi   product.ROI
}

// InspectGrouped runs a grouped inspection: every group's image is
// loaded once and analyzed against the ROIs configured for the same
// (focus, exposure). A failed group aborts only its own ROIs.
func (o *Orchestrator) InspectGrouped(ctx context.Context, sessionID, productName string, groups []GroupImage, barcodes Barcodes, filter *product.Group) (*Response, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "inspect.grouped", trace.WithAttributes(
		attribute.String("product", productName),
		attribute.String("session_id", sessionID),
		attribute.Int("groups", len(groups)),
	))
	defer span.End()

	logger := log.WithComponentFromContext(ctx, "orchestrator")

	// The read lock is held for the whole run so a concurrent Save
	// cannot swap the config or gc golden folders mid-inspection.
	rois, release, err := o.store.Snapshot(ctx, productName)
	if err != nil {
		return nil, err
	}
	defer release()
	buckets := product.GroupByCapture(rois)

	var (
		items   []workItem
		errored []ROIResult
		loaded  int
		loadErr error
	)
	for _, g := range groups {
		if filter != nil && *filter != g.Group {
			continue
		}
		subset := buckets[g.Group]
		if len(subset) == 0 {
			logger.Warn().
				Str(log.FieldProduct, productName).
				Int(log.FieldFocus, g.Group.Focus).
				Int(log.FieldExposure, g.Group.Exposure).
				Msg("capture group has no configured rois, skipping")
			continue
		}

		frame, err := o.loadImage(sessionID, g.Source)
		if err != nil {
			loadErr = err
			logger.Warn().Err(err).
				Str(log.FieldProduct, productName).
				Int(log.FieldFocus, g.Group.Focus).
				Int(log.FieldExposure, g.Group.Exposure).
				Msg("group image unreadable, aborting group")
			for _, roi := range subset {
				errored = append(errored, erroredResult(roi, fmt.Sprintf("group image unreadable: %v", err)))
			}
			continue
		}
		loaded++
		for _, roi := range subset {
			items = append(items, workItem{frame: frame, roi: roi})
		}
	}

	if loaded == 0 && loadErr != nil {
		metrics.RecordInspection(productName, "error", time.Since(start).Seconds())
		return nil, loadErr
	}

	results := o.runPool(ctx, sessionID, productName, items)
	results = append(results, errored...)

	resp := o.finish(ctx, sessionID, productName, results, barcodes, start)
	logger.Info().
		Str("event", "inspection.done").
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldProduct, productName).
		Int("groups", len(groups)).
		Int("rois", resp.Overall.TotalROIs).
		Bool("passed", resp.Overall.Passed).
		Dur(log.FieldDuration, time.Since(start)).
		Msg("grouped inspection finished")
	return resp, nil
}

// Inspect analyzes one image. With a group restriction only that
// (focus, exposure) subset runs; otherwise every ROI of the product is
// checked against the single frame.
func (o *Orchestrator) Inspect(ctx context.Context, sessionID, productName string, src ImageSource, group *product.Group, barcodes Barcodes) (*Response, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "inspect.single", trace.WithAttributes(
		attribute.String("product", productName),
		attribute.String("session_id", sessionID),
	))
	defer span.End()

	rois, release, err := o.store.Snapshot(ctx, productName)
	if err != nil {
		return nil, err
	}
	defer release()
	if group != nil {
		subset := rois[:0:0]
		for _, roi := range rois {
			if roi.Focus == group.Focus && roi.Exposure == group.Exposure {
				subset = append(subset, roi)
			}
		}
		rois = subset
	}

	frame, err := o.loadImage(sessionID, src)
	if err != nil {
		metrics.RecordInspection(productName, "error", time.Since(start).Seconds())
		return nil, err
	}

	items := make([]workItem, len(rois))
	for i, roi := range rois {
		items[i] = workItem{frame: frame, roi: roi}
	}

	results := o.runPool(ctx, sessionID, productName, items)
	resp := o.finish(ctx, sessionID, productName, results, barcodes, start)
	logger := log.WithComponentFromContext(ctx, "orchestrator")
	logger.Info().
		Str("event", "inspection.done").
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldProduct, productName).
		Int("rois", resp.Overall.TotalROIs).
		Bool("passed", resp.Overall.Passed).
		Dur(log.FieldDuration, time.Since(start)).
		Msg("inspection finished")
	return resp, nil
}

// runPool processes all work items on one shared bounded pool. Workers
// never return errors; failures are captured into the results.
func (o *Orchestrator) runPool(ctx context.Context, sessionID, productName string, items []workItem) []ROIResult {
	if len(items) == 0 {
		return nil
	}

	limit := o.workers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	if limit > len(items) {
		limit = len(items)
	}

	results := make([]ROIResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			_, span := o.tracer.Start(gctx, "inspect.roi", trace.WithAttributes(
				attribute.Int("roi_index", item.roi.Index),
				attribute.String("roi_type", item.roi.Type.String()),
			))
			results[i] = o.proc.Process(gctx, sessionID, productName, item.frame, item.roi)
			span.End()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// finish aggregates, records metrics and fires the result hooks.
func (o *Orchestrator) finish(ctx context.Context, sessionID, productName string, results []ROIResult, barcodes Barcodes, start time.Time) *Response {
	resp := o.agg.Aggregate(ctx, sessionID, productName, results, barcodes, time.Since(start))

	outcome := "fail"
	if resp.Overall.Passed {
		outcome = "pass"
	}
	metrics.RecordInspection(productName, outcome, time.Since(start).Seconds())

	for _, hook := range o.hooks {
		hook(ctx, resp)
	}
	return resp
}

// loadImage resolves one of the three accepted input methods, in
// priority order.
func (o *Orchestrator) loadImage(sessionID string, src ImageSource) (image.Image, error) {
	switch {
	case src.Path != "":
		path, err := o.folder.ResolveClientPath(src.Path)
		if err != nil {
			return nil, err
		}
		return imaging.DecodeFile(path)
	case src.Filename != "":
		path, err := o.folder.InputPath(sessionID, src.Filename)
		if err != nil {
			return nil, err
		}
		return imaging.DecodeFile(path)
	case src.Base64 != "":
		return imaging.DecodeBase64(src.Base64)
	default:
		return nil, ErrNoImage
	}
}

func erroredResult(roi product.ROI, msg string) ROIResult {
	return ROIResult{
		ROIID:       roi.Index,
		DeviceID:    roi.DeviceLocation,
		ROITypeName: roi.Type.String(),
		Coordinates: [4]int{roi.Coords.X1, roi.Coords.Y1, roi.Coords.X2, roi.Coords.Y2},
		Error:       msg,
	}
}
