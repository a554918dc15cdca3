package summary_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
	"github.com/ColCarroll/kindle-display-server/internal/summary"
)

func TestDetrendedSeriesShape(t *testing.T) {
	activities, stats, now := januaryScenario(t)
	s := summary.Aggregate(activities, stats, now)
	require.NotNil(t, s)

	pts := s.DetrendedData
	// origin, a pre/post pair per run, and a closing point
	require.Len(t, pts, 1+2*3+1)

	assert.Equal(t, 0.0, pts[0].Day)
	assert.Equal(t, 0.0, pts[0].Detrended)

	last := pts[len(pts)-1]
	assert.InDelta(t, 3.5, last.Day, 0.01)
	assert.Less(t, math.Abs(last.Detrended), 1.0,
		"series should close near zero when totals agree")

	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i].Day, pts[i-1].Day, "days must not go backwards")
		if pts[i].Day-pts[i-1].Day < 0.01 {
			assert.Greater(t, pts[i].Detrended, pts[i-1].Detrended,
				"each run should jump the series upward")
		}
	}
}

func TestDetrendedSeriesScalesToStatsTotal(t *testing.T) {
	// feed says 10 miles, stats say 20: per-run contributions get doubled
	activities := []strava.Activity{
		run(1, "2025-01-01T12:00:00Z", 5),
		run(2, "2025-01-02T12:00:00Z", 5),
	}
	stats := &strava.Totals{Distance: 20 * metersPerMile}
	now := time.Date(2025, 1, 3, 12, 0, 0, 0, eastern(t))

	s := summary.Aggregate(activities, stats, now)
	require.NotNil(t, s)
	last := s.DetrendedData[len(s.DetrendedData)-1]
	assert.Less(t, math.Abs(last.Detrended), 1.0)
}

func TestDetrendedElevationSeries(t *testing.T) {
	a := run(1, "2025-01-01T12:00:00Z", 5)
	a.TotalElevationGain = 100
	b := run(2, "2025-01-02T12:00:00Z", 5)
	b.TotalElevationGain = 50
	stats := &strava.Totals{Distance: 10 * metersPerMile, ElevationGain: 150}
	now := time.Date(2025, 1, 3, 12, 0, 0, 0, eastern(t))

	s := summary.Aggregate([]strava.Activity{a, b}, stats, now)
	require.NotNil(t, s)
	pts := s.DetrendedElevationData
	require.Len(t, pts, 1+2*2+1)
	last := pts[len(pts)-1]
	assert.Less(t, math.Abs(last.Detrended), 1.0)
}

func TestNoSeriesWithoutRuns(t *testing.T) {
	now := time.Date(2025, 1, 4, 12, 0, 0, 0, eastern(t))
	s := summary.Aggregate(nil, &strava.Totals{Distance: 10 * metersPerMile}, now)
	require.NotNil(t, s)
	assert.Empty(t, s.DetrendedData)
	assert.Empty(t, s.DetrendedElevationData)
}

func TestPaceLines(t *testing.T) {
	activities, stats, now := januaryScenario(t)
	s := summary.Aggregate(activities, stats, now)
	require.NotNil(t, s)

	require.NotEmpty(t, s.PaceLines)
	assert.Equal(t, 2500.0, s.PaceLines[0].Target)
	avg := s.YearlyDistanceMi / s.DaysElapsed
	assert.InDelta(t, 2500.0/365-avg, s.PaceLines[0].Slope, 0.05)

	require.NotEmpty(t, s.ElevationPaceLines)
	assert.Equal(t, 100000.0, s.ElevationPaceLines[0].Target)

	for i := 1; i < len(s.PaceLines); i++ {
		assert.Greater(t, s.PaceLines[i].Target, s.PaceLines[i-1].Target)
		assert.Greater(t, s.PaceLines[i].Slope, s.PaceLines[i-1].Slope)
	}
}
