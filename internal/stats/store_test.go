// SPDX-License-Identifier: MIT

package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualaoi/aoid/internal/inspect"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runResponse(product string, passed bool, devices ...inspect.DeviceSummary) *inspect.Response {
	total, passedROIs := 0, 0
	for _, d := range devices {
		total += d.TotalROIs
		passedROIs += d.PassedROIs
	}
	return &inspect.Response{
		DeviceSummaries: devices,
		Overall: inspect.OverallResult{
			Passed:     passed,
			TotalROIs:  total,
			PassedROIs: passedROIs,
			FailedROIs: total - passedROIs,
		},
		ProductName: product,
	}
}

func TestRecordAndSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, runResponse("demoA", true,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 2, PassedROIs: 2},
		inspect.DeviceSummary{DeviceID: 2, TotalROIs: 1, PassedROIs: 1},
	)))
	require.NoError(t, s.Record(ctx, runResponse("demoA", false,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 2, PassedROIs: 1},
		inspect.DeviceSummary{DeviceID: 2, TotalROIs: 1, PassedROIs: 1},
	)))

	ps, err := s.Summary(ctx, "demoA")
	require.NoError(t, err)
	require.NotNil(t, ps)

	assert.Equal(t, 2, ps.Runs)
	assert.Equal(t, 1, ps.PassedRuns)
	assert.InDelta(t, 0.5, ps.PassRate, 0.001)
	assert.False(t, ps.LastRun.IsZero())

	require.Len(t, ps.Devices, 2)
	assert.Equal(t, 1, ps.Devices[0].DeviceID)
	assert.Equal(t, 4, ps.Devices[0].TotalROIs)
	assert.Equal(t, 3, ps.Devices[0].PassedROIs)
	assert.InDelta(t, 0.75, ps.Devices[0].PassRate, 0.001)
	assert.InDelta(t, 1.0, ps.Devices[1].PassRate, 0.001)
}

func TestSummaryUnknownProduct(t *testing.T) {
	s := newTestStore(t)
	ps, err := s.Summary(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestRecordIsolatesProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, runResponse("demoA", true,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 1, PassedROIs: 1})))
	require.NoError(t, s.Record(ctx, runResponse("demoB", false,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 3, PassedROIs: 0})))

	ps, err := s.Summary(ctx, "demoA")
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, 1, ps.Runs)
	assert.Equal(t, 1, ps.Devices[0].TotalROIs)
}

func TestLastRunAdvances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	require.NoError(t, s.Record(ctx, runResponse("demoA", true,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 1, PassedROIs: 1})))

	second := first.Add(time.Hour)
	s.now = func() time.Time { return second }
	require.NoError(t, s.Record(ctx, runResponse("demoA", true,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 1, PassedROIs: 1})))

	ps, err := s.Summary(ctx, "demoA")
	require.NoError(t, err)
	assert.True(t, ps.LastRun.Equal(second))
}

func TestHookSwallowsFailures(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Must not panic even though the database is closed.
	s.Hook()(context.Background(), runResponse("demoA", true,
		inspect.DeviceSummary{DeviceID: 1, TotalROIs: 1, PassedROIs: 1}))
}
