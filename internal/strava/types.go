package strava

import "time"

// startDateLayout is the second-precision UTC instant the activity feed uses.
const startDateLayout = "2006-01-02T15:04:05Z"

// Activity is the subset of the Strava v3 activity shape the dashboard
// consumes. Unknown fields are dropped on decode and never re-emitted, so
// stored records stay small.
type Activity struct {
	ID                 int64   `json:"id"`
	Type               string  `json:"type"`
	Name               string  `json:"name"`
	StartDate          string  `json:"start_date"`
	Distance           float64 `json:"distance"`
	MovingTime         int     `json:"moving_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	Map                Map     `json:"map"`
}

type Map struct {
	SummaryPolyline string `json:"summary_polyline"`
}

// IsRun reports whether the activity is a run; everything else is ignored
// by the summary pipeline.
func (a Activity) IsRun() bool {
	return a.Type == "Run"
}

// StartTime parses the activity's wall-clock start as a UTC instant.
func (a Activity) StartTime() (time.Time, error) {
	return ParseStartDate(a.StartDate)
}

// ParseStartDate parses an activity start_date string.
func ParseStartDate(s string) (time.Time, error) {
	return time.Parse(startDateLayout, s)
}

// Totals are cumulative figures from the athlete stats endpoint, in meters.
type Totals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// AthleteStats is the stats endpoint response. Only activities with
// "Everyone" visibility are included in these totals, which is why the
// summed activity feed can disagree slightly.
type AthleteStats struct {
	YTDRunTotals    Totals `json:"ytd_run_totals"`
	RecentRunTotals Totals `json:"recent_run_totals"`
	AllRunTotals    Totals `json:"all_run_totals"`
}
