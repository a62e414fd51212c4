package table

import (
	"fmt"
	"math"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

const ratioTolerance = 1e-6

// Validation collects integrity problems found in a written report.
type Validation struct {
	Rows     int
	Problems []string
}

func (v *Validation) errorf(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

// Passed reports whether no problems were found.
func (v *Validation) Passed() bool { return len(v.Problems) == 0 }

// Validate checks a daily report against the roster it was built from: one
// row per roster location, consistent statistics and ratios, and no data date
// after the query date. Backfill rows (tagged with domain.BackfillComment)
// are exempt from the one-row-per-location rule.
func Validate(rows []domain.OutputRow, roster []domain.LocationRecord) *Validation {
	v := &Validation{Rows: len(rows)}

	inRoster := make(map[string]domain.LocationRecord, len(roster))
	for _, loc := range roster {
		inRoster[loc.ID] = loc
	}

	seen := make(map[string]int, len(rows))
	for i, r := range rows {
		line := i + 2
		if _, ok := inRoster[r.SiteID]; !ok {
			v.errorf("line %d: site %q is not in the roster", line, r.SiteID)
		}
		if r.Comment != domain.BackfillComment {
			if prev, dup := seen[r.SiteID]; dup {
				v.errorf("line %d: site %q already reported on line %d", line, r.SiteID, prev)
			}
			seen[r.SiteID] = line
		}
		validateRow(v, line, r)
	}

	for _, loc := range roster {
		if _, ok := seen[loc.ID]; !ok {
			v.errorf("roster location %q has no report row", loc.ID)
		}
	}
	return v
}

func validateRow(v *Validation, line int, r domain.OutputRow) {
	if r.Value != nil {
		if !domain.IsNormalizedUnit(r.Unit) {
			v.errorf("line %d: unit %q outside vocabulary", line, r.Unit)
		}
		if r.DataDate == nil {
			v.errorf("line %d: value without data_date", line)
		} else if r.DataDate.After(r.DateQueried) {
			v.errorf("line %d: data_date %s after date_queried %s", line, domain.DateKey(*r.DataDate), domain.DateKey(r.DateQueried))
		}
	}

	stats := []*float64{r.Max, r.P90, r.P75, r.P50, r.P25, r.P10, r.Min, r.Mean}
	present := 0
	for _, s := range stats {
		if s != nil {
			present++
		}
	}
	switch {
	case present != 0 && present != len(stats):
		v.errorf("line %d: %d of %d statistic fields present", line, present, len(stats))
	case present == len(stats):
		if *r.Min > *r.P10 || *r.P10 > *r.P25 || *r.P25 > *r.P50 || *r.P50 > *r.P75 || *r.P75 > *r.P90 || *r.P90 > *r.Max {
			v.errorf("line %d: statistics are not ordered min <= p10 <= ... <= max", line)
		}
	}

	checkRatio(v, line, "value_to_median", r.ValueToMedian, r.Value, r.P50)
	checkRatio(v, line, "value_to_mean", r.ValueToMean, r.Value, r.Mean)
	checkRatio(v, line, "fraction_full", r.FractionFull, r.Value, r.Capacity)
}

func checkRatio(v *Validation, line int, name string, got, num, den *float64) {
	want := domain.Ratio(num, den)
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		v.errorf("line %d: %s presence does not match its inputs", line, name)
	case math.Abs(*got-*want) > ratioTolerance*math.Max(1, math.Abs(*want)):
		v.errorf("line %d: %s is %g, want %g", line, name, *got, *want)
	}
}
