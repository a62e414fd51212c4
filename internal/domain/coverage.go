package domain

import (
	"fmt"
	"time"
)

// WaterYear returns the water year of t: October through December belong to
// the following calendar year's water year.
func WaterYear(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year() + 1
	}
	return t.Year()
}

// CountWaterYears returns the number of distinct water years in obs.
func CountWaterYears(obs []Observation) int {
	years := make(map[int]struct{})
	for _, o := range obs {
		years[WaterYear(o.Date)] = struct{}{}
	}
	return len(years)
}

// CoverageFilter withholds historical statistics from locations whose
// baseline spans too few water years. Incomplete-period percentiles are worse
// than none.
type CoverageFilter struct {
	MinWaterYears int
}

// Admit reports whether the location's baseline meets the minimum coverage.
func (f CoverageFilter) Admit(b *Baseline, locationID string) bool {
	return f.AdmitObservations(b.Observations(locationID))
}

// AdmitObservations applies the coverage test to an explicit observation set.
func (f CoverageFilter) AdmitObservations(obs []Observation) bool {
	if len(obs) == 0 {
		return false
	}
	return CountWaterYears(obs) >= f.MinWaterYears
}

// StatsPeriodLabel renders a baseline window as "WY1991-WY2020".
func StatsPeriodLabel(window DateRange) string {
	return fmt.Sprintf("WY%d-WY%d", WaterYear(window.Start), WaterYear(window.End))
}
