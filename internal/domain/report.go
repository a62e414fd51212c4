package domain

import (
	"math"
	"time"
)

// BackfillComment tags report rows produced by historical backfill so
// consumers can tell them apart from daily rows.
const BackfillComment = "backfilled historical observation"

// OutputRow is one line of the daily (or backfill) report. Pointer fields are
// nil when the value is missing.
type OutputRow struct {
	SiteID        string     `json:"site_id"`
	SiteName      string     `json:"site_name"`
	Source        SourceType `json:"source_type"`
	DataType      DataType   `json:"data_type"`
	State         string     `json:"state,omitempty"`
	Region        string     `json:"region,omitempty"`
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	Unit          string     `json:"data_units"`
	Value         *float64   `json:"data_value"`
	DataDate      *time.Time `json:"data_date"`
	DateQueried   time.Time  `json:"date_queried"`
	Max           *float64   `json:"doy_max"`
	P90           *float64   `json:"doy_p90"`
	P75           *float64   `json:"doy_p75"`
	P50           *float64   `json:"doy_p50"`
	P25           *float64   `json:"doy_p25"`
	P10           *float64   `json:"doy_p10"`
	Min           *float64   `json:"doy_min"`
	Mean          *float64   `json:"doy_mean"`
	ValueToMedian *float64   `json:"value_to_median"`
	ValueToMean   *float64   `json:"value_to_mean"`
	StatsPeriod   string     `json:"stats_period"`
	Capacity      *float64   `json:"capacity"`
	FractionFull  *float64   `json:"fraction_full"`
	DataURL       string     `json:"data_url,omitempty"`
	Comment       string     `json:"comment,omitempty"`
}

// HasStatistics reports whether the row carries historical statistics.
func (r OutputRow) HasStatistics() bool {
	return r.P50 != nil
}

// Assembler joins current values, roster metadata and day-of-year statistics
// into report rows.
type Assembler struct {
	StatsPeriod string
}

// Assemble builds one row. current and stat may be nil; the row is produced
// regardless so the report always has one row per roster location. Passing a
// nil stat is how coverage-excluded locations lose their historical fields.
func (a Assembler) Assemble(loc LocationRecord, current *Observation, stat *DailyStatistic, queried time.Time) OutputRow {
	row := OutputRow{
		SiteID:      loc.ID,
		SiteName:    loc.Name,
		Source:      loc.Source,
		DataType:    loc.DataType,
		State:       loc.State,
		Region:      loc.Region,
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		Unit:        UnitAcreFeet,
		DateQueried: CivilDate(queried),
		Capacity:    finiteOrNil(loc.Capacity),
	}

	var value *float64
	if current != nil && isFinite(current.Value) {
		v := current.Value
		d := CivilDate(current.Date)
		value = &v
		row.Value = value
		row.DataDate = &d
		row.DataURL = current.SourceURL
		if current.Unit != "" {
			row.Unit = current.Unit
		}
	}

	if stat != nil {
		row.Max = floatPtr(stat.Max)
		row.P90 = floatPtr(stat.P90)
		row.P75 = floatPtr(stat.P75)
		row.P50 = floatPtr(stat.P50)
		row.P25 = floatPtr(stat.P25)
		row.P10 = floatPtr(stat.P10)
		row.Min = floatPtr(stat.Min)
		row.Mean = floatPtr(stat.Mean)
		row.StatsPeriod = a.StatsPeriod
		row.ValueToMedian = Ratio(value, row.P50)
		row.ValueToMean = Ratio(value, row.Mean)
		if value == nil && stat.Unit != "" {
			row.Unit = stat.Unit
		}
	}

	row.FractionFull = Ratio(value, row.Capacity)
	return row
}

// StatisticDate picks the calendar date whose statistics a row is compared
// against: the data date when a value was found, else the query date.
func StatisticDate(current *Observation, queried time.Time) time.Time {
	if current != nil {
		return CivilDate(current.Date)
	}
	return CivilDate(queried)
}

// Ratio returns num/den, or nil when either is missing or the result would be
// infinite or NaN.
func Ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	r := *num / *den
	if !isFinite(r) {
		return nil
	}
	return &r
}

func floatPtr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func finiteOrNil(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return floatPtr(*v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Report is one complete daily report.
type Report struct {
	DateQueried time.Time   `json:"date_queried"`
	Rows        []OutputRow `json:"rows"`
}
