// Package summary turns stored and freshly fetched Strava activities into
// the running summary the dashboard renders: weekly and yearly mileage,
// projections against round-number milestones, a Monday-to-Sunday day
// table, and detrended progress series for charting.
package summary

import (
	"fmt"
	"math"
)

const (
	metersToMiles = 0.000621371
	metersToFeet  = 3.28084
	metersPerMile = 1609.34

	// milestoneStep is the round-number bracket size for annual targets.
	milestoneStep = 500.0

	// jumpOffset separates a run's pre/post points on the day axis so the
	// jump renders as a vertical line.
	jumpOffset = 0.001
)

// Run is a single run prepared for display.
type Run struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DistanceMi  float64 `json:"distance_mi"`
	ElevationFt float64 `json:"elevation_ft"`
	Pace        string  `json:"pace"`
	StravaURL   string  `json:"strava_url"`
	Polyline    string  `json:"polyline"`
}

// Day is one slot of the Monday-to-Sunday week table. A future day with no
// run this week may carry last week's same-weekday run with IsFallback set.
type Day struct {
	Date       string `json:"date"`
	DayName    string `json:"day_name"`
	Run        *Run   `json:"run"`
	IsToday    bool   `json:"is_today"`
	IsFuture   bool   `json:"is_future"`
	IsFallback bool   `json:"is_fallback"`
}

// Point is one sample of a detrended progress series.
type Point struct {
	Day       float64 `json:"day"`
	Detrended float64 `json:"detrended"`
}

// PaceLine is a reference slope through the origin for a fixed annual
// target, on the same axes as the detrended series.
type PaceLine struct {
	Target float64 `json:"target"`
	Slope  float64 `json:"slope"`
}

// RunningSummary is the complete value object consumed by the presentation
// layer. Field names match the rendered template's keys.
type RunningSummary struct {
	WeeklyDistanceMi   float64 `json:"weekly_distance_mi"`
	YearlyDistanceMi   float64 `json:"yearly_distance_mi"`
	YearlyElevationFt  float64 `json:"yearly_elevation_ft"`
	ProjectedYearlyMi  float64 `json:"projected_yearly_mi"`
	AvgMilesPerDay     float64 `json:"avg_miles_per_day"`
	AvgElevationPerDay float64 `json:"avg_elevation_per_day"`
	DaysElapsed        float64 `json:"days_elapsed"`
	DaysRemaining      float64 `json:"days_remaining"`
	DaysInYear         int     `json:"days_in_year"`

	MilestoneLow    float64 `json:"milestone_low"`
	MilestoneHigh   float64 `json:"milestone_high"`
	MilesPerDayLow  float64 `json:"miles_per_day_low"`
	MilesPerDayHigh float64 `json:"miles_per_day_high"`
	ProgressPercent float64 `json:"progress_percent"`

	Last7Days []Day `json:"last_7_days"`

	DetrendedData          []Point    `json:"detrended_data"`
	DetrendedElevationData []Point    `json:"detrended_elevation_data"`
	PaceLines              []PaceLine `json:"pace_lines"`
	ElevationPaceLines     []PaceLine `json:"elevation_pace_lines"`
}

// Miles converts meters to miles.
func Miles(meters float64) float64 { return meters * metersToMiles }

// Feet converts meters to feet.
func Feet(meters float64) float64 { return meters * metersToFeet }

// DaysInYear returns 366 for leap years, 365 otherwise.
func DaysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

// FormatPace renders a pace as M:SS per mile, rounded to the nearest
// second. Zero distance yields "0:00" rather than dividing by zero.
func FormatPace(distanceMeters float64, movingTimeSeconds int) string {
	if distanceMeters <= 0 {
		return "0:00"
	}
	secPerMile := float64(movingTimeSeconds) / distanceMeters * metersPerMile
	total := int(math.Round(secPerMile))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
