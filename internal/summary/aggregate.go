package summary

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
)

// localRun pairs an activity with its start instant in the display zone.
type localRun struct {
	act   strava.Activity
	start time.Time
}

// Aggregate builds a RunningSummary from the year's activities and the
// athlete's year-to-date stats, both of which may independently be missing.
// Stats are the authoritative totals; when absent the totals fall back to
// summing the activities. Returns nil when there is no data at all.
//
// now must already be in the display timezone; every day boundary is taken
// from its location.
func Aggregate(activities []strava.Activity, stats *strava.Totals, now time.Time) *RunningSummary {
	if stats == nil && len(activities) == 0 {
		return nil
	}

	loc := now.Location()
	year := now.Year()
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	nextYearStart := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	daysElapsed := now.Sub(yearStart).Hours() / 24
	daysRemaining := nextYearStart.Sub(now).Hours() / 24
	daysInYear := DaysInYear(year)

	runs := localRuns(activities, loc)

	var yearlyMi, yearlyFt float64
	if stats != nil {
		yearlyMi = stats.Distance * metersToMiles
		yearlyFt = stats.ElevationGain * metersToFeet
	} else {
		for _, r := range runs {
			yearlyMi += r.act.Distance * metersToMiles
			yearlyFt += r.act.TotalElevationGain * metersToFeet
		}
	}

	var weeklyMi float64
	weekAgo := now.AddDate(0, 0, -7)
	for _, r := range runs {
		if !r.start.Before(weekAgo) {
			weeklyMi += r.act.Distance * metersToMiles
		}
	}

	var avgMiles, avgFeet float64
	if daysElapsed > 0 {
		avgMiles = yearlyMi / daysElapsed
		avgFeet = yearlyFt / daysElapsed
	}
	projected := avgMiles * float64(daysInYear)

	milestoneLow, milestoneHigh := milestones(yearlyMi, projected)

	var perDayLow, perDayHigh float64
	if daysRemaining > 0 {
		perDayLow = math.Max(0, (milestoneLow-yearlyMi)/daysRemaining)
		perDayHigh = (milestoneHigh - yearlyMi) / daysRemaining
	}

	var progress float64
	if projected > 0 {
		progress = (projected - milestoneLow) / milestoneStep * 100
	}

	return &RunningSummary{
		WeeklyDistanceMi:   round1(weeklyMi),
		YearlyDistanceMi:   round1(yearlyMi),
		YearlyElevationFt:  math.Round(yearlyFt),
		ProjectedYearlyMi:  math.Round(projected),
		AvgMilesPerDay:     round2(avgMiles),
		AvgElevationPerDay: math.Round(avgFeet),
		DaysElapsed:        round1(daysElapsed),
		DaysRemaining:      round1(daysRemaining),
		DaysInYear:         daysInYear,

		MilestoneLow:    milestoneLow,
		MilestoneHigh:   milestoneHigh,
		MilesPerDayLow:  round2(perDayLow),
		MilesPerDayHigh: round2(perDayHigh),
		ProgressPercent: round1(progress),

		Last7Days: weekTable(runs, now),

		DetrendedData:          detrendDistance(runs, yearStart, yearlyMi, avgMiles, daysElapsed),
		DetrendedElevationData: detrendElevation(runs, yearStart, yearlyFt, avgFeet, daysElapsed),
		PaceLines:              paceLines(distanceTargets, avgMiles, daysInYear),
		ElevationPaceLines:     paceLines(elevationTargets, avgFeet, daysInYear),
	}
}

// milestones brackets the projected yearly total between adjacent multiples
// of the milestone step. A zero yearly total pins the bracket to the first
// step so the dashboard always shows a target.
func milestones(yearlyMi, projected float64) (low, high float64) {
	if yearlyMi == 0 {
		return 0, milestoneStep
	}
	low = math.Floor(projected/milestoneStep) * milestoneStep
	return low, low + milestoneStep
}

// localRuns keeps run activities with parseable start dates, converts their
// starts to loc, and orders them chronologically.
func localRuns(activities []strava.Activity, loc *time.Location) []localRun {
	runs := make([]localRun, 0, len(activities))
	for _, a := range activities {
		if !a.IsRun() {
			continue
		}
		t, err := a.StartTime()
		if err != nil {
			continue
		}
		runs = append(runs, localRun{act: a, start: t.In(loc)})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].start.Before(runs[j].start) })
	return runs
}

// weekTable lays out Monday through Sunday of the current week. Days with a
// run this week show it; future days borrow last week's same-weekday run as
// a fallback so the week ahead still hints at the usual routine.
func weekTable(runs []localRun, now time.Time) []Day {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	monday := today.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))

	// Best (longest) run per date, covering this week and the prior one.
	best := make(map[string]strava.Activity)
	windowStart := monday.AddDate(0, 0, -7)
	windowEnd := monday.AddDate(0, 0, 7)
	for _, r := range runs {
		if r.start.Before(windowStart) || !r.start.Before(windowEnd) {
			continue
		}
		key := r.start.Format("2006-01-02")
		if cur, ok := best[key]; !ok || r.act.Distance > cur.Distance {
			best[key] = r.act
		}
	}

	days := make([]Day, 0, 7)
	for i := 0; i < 7; i++ {
		date := monday.AddDate(0, 0, i)
		key := date.Format("2006-01-02")
		day := Day{
			Date:     key,
			DayName:  date.Format("Mon"),
			IsToday:  date.Equal(today),
			IsFuture: date.After(today),
		}
		if a, ok := best[key]; ok {
			day.Run = displayRun(a)
		} else if day.IsFuture {
			if a, ok := best[date.AddDate(0, 0, -7).Format("2006-01-02")]; ok {
				day.Run = displayRun(a)
				day.IsFallback = true
			}
		}
		days = append(days, day)
	}
	return days
}

func displayRun(a strava.Activity) *Run {
	name := a.Name
	if name == "" {
		name = "Run"
	}
	return &Run{
		ID:          a.ID,
		Name:        name,
		DistanceMi:  round1(a.Distance * metersToMiles),
		ElevationFt: math.Round(a.TotalElevationGain * metersToFeet),
		Pace:        FormatPace(a.Distance, a.MovingTime),
		StravaURL:   fmt.Sprintf("https://www.strava.com/activities/%d", a.ID),
		Polyline:    a.Map.SummaryPolyline,
	}
}
