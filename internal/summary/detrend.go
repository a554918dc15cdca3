package summary

import "time"

// Annual targets for the chart's reference pace lines.
var (
	distanceTargets  = []float64{2500, 2750, 3000, 3250, 3500, 3750, 4000}
	elevationTargets = []float64{100000, 150000, 200000, 250000, 300000}
)

// detrendDistance builds the distance sawtooth: cumulative miles minus the
// average daily pace, so a flat line means holding exactly the year's
// average. Run distances are scaled so the series closes on the yearly
// total even when the stats endpoint and the activity feed disagree.
func detrendDistance(runs []localRun, yearStart time.Time, yearlyMi, avgPerDay, daysElapsed float64) []Point {
	events := make([]event, 0, len(runs))
	for _, r := range runs {
		events = append(events, event{
			day:   r.start.Sub(yearStart).Hours() / 24,
			value: r.act.Distance * metersToMiles,
		})
	}
	return buildSeries(events, yearlyMi, avgPerDay, daysElapsed)
}

// detrendElevation is the elevation-gain counterpart of detrendDistance.
func detrendElevation(runs []localRun, yearStart time.Time, yearlyFt, avgPerDay, daysElapsed float64) []Point {
	events := make([]event, 0, len(runs))
	for _, r := range runs {
		events = append(events, event{
			day:   r.start.Sub(yearStart).Hours() / 24,
			value: r.act.TotalElevationGain * metersToFeet,
		})
	}
	return buildSeries(events, yearlyFt, avgPerDay, daysElapsed)
}

// event is one run's contribution on the fractional-day axis. Events must
// arrive in chronological order.
type event struct {
	day   float64
	value float64
}

// buildSeries anchors the series at the origin, emits a pre/post point pair
// per event so each run renders as a vertical jump, and closes at the
// current instant. The closing point detrends back to zero by construction
// when total and avgPerDay agree.
func buildSeries(events []event, total, avgPerDay, daysElapsed float64) []Point {
	if len(events) == 0 || avgPerDay <= 0 {
		return nil
	}

	scale := 1.0
	var sum float64
	for _, e := range events {
		sum += e.value
	}
	if sum > 0 && total > 0 {
		scale = total / sum
	}

	points := make([]Point, 0, 2*len(events)+2)
	points = append(points, Point{Day: 0, Detrended: 0})
	var cumulative float64
	for _, e := range events {
		points = append(points, Point{Day: e.day, Detrended: cumulative - avgPerDay*e.day})
		cumulative += e.value * scale
		after := e.day + jumpOffset
		points = append(points, Point{Day: after, Detrended: cumulative - avgPerDay*after})
	}
	points = append(points, Point{Day: daysElapsed, Detrended: cumulative - avgPerDay*daysElapsed})
	return points
}

// paceLines yields a reference slope per target: the constant daily rate a
// target requires, relative to the current average. On the detrended axes
// each renders as a straight line through the origin.
func paceLines(targets []float64, avgPerDay float64, daysInYear int) []PaceLine {
	if avgPerDay <= 0 {
		return nil
	}
	lines := make([]PaceLine, 0, len(targets))
	for _, target := range targets {
		lines = append(lines, PaceLine{
			Target: target,
			Slope:  target/float64(daysInYear) - avgPerDay,
		})
	}
	return lines
}
