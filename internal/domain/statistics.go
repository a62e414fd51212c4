package domain

import (
	"math"
	"sort"
	"time"
)

// DailyStatistic summarizes every historical value observed on one calendar
// (month, day) for one location.
type DailyStatistic struct {
	LocationID string  `json:"location_id"`
	Month      int     `json:"month"`
	Day        int     `json:"day"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	P10        float64 `json:"p10"`
	P25        float64 `json:"p25"`
	P50        float64 `json:"p50"`
	P75        float64 `json:"p75"`
	P90        float64 `json:"p90"`
	Mean       float64 `json:"mean"`
	Count      int     `json:"count"`
	Unit       string  `json:"unit"`
}

// MaxDailyStatistics is the number of distinct (month, day) groups, Feb 29 included.
const MaxDailyStatistics = 366

type monthDay struct {
	month int
	day   int
}

// ComputeDailyStatistics groups a location's observations by calendar
// (month, day) and summarizes each group. Rows come back ordered by month,
// then day. Observations for other locations and non-finite values are
// ignored. The unit is taken from the first observation; adapters guarantee
// it is uniform per location.
func ComputeDailyStatistics(locationID string, obs []Observation) []DailyStatistic {
	groups := make(map[monthDay][]float64)
	unit := ""
	for _, o := range obs {
		if o.LocationID != locationID || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		if unit == "" {
			unit = o.Unit
		}
		key := monthDay{month: int(o.Date.Month()), day: o.Date.Day()}
		groups[key] = append(groups[key], o.Value)
	}

	keys := make([]monthDay, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].month != keys[j].month {
			return keys[i].month < keys[j].month
		}
		return keys[i].day < keys[j].day
	})

	out := make([]DailyStatistic, 0, len(keys))
	for _, k := range keys {
		values := groups[k]
		sort.Float64s(values)
		out = append(out, DailyStatistic{
			LocationID: locationID,
			Month:      k.month,
			Day:        k.day,
			Min:        values[0],
			Max:        values[len(values)-1],
			P10:        Percentile(values, 0.10),
			P25:        Percentile(values, 0.25),
			P50:        Percentile(values, 0.50),
			P75:        Percentile(values, 0.75),
			P90:        Percentile(values, 0.90),
			Mean:       mean(values),
			Count:      len(values),
			Unit:       unit,
		})
	}
	return out
}

// Percentile returns the p-th quantile (0 <= p <= 1) of sorted values using
// Hyndman-Fan type 7: h = (n-1)p, result = x[floor(h)] + (h-floor(h)) *
// (x[floor(h)+1] - x[floor(h)]). Returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	if lo+1 >= n || frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StatisticsTable holds the DailyStatistic rows of every location.
type StatisticsTable map[string][]DailyStatistic

// Replace swaps one location's rows. An empty slice removes the location.
func (t StatisticsTable) Replace(locationID string, rows []DailyStatistic) {
	if len(rows) == 0 {
		delete(t, locationID)
		return
	}
	t[locationID] = rows
}

// Lookup returns the row for the location on date's (month, day).
func (t StatisticsTable) Lookup(locationID string, date time.Time) (DailyStatistic, bool) {
	rows := t[locationID]
	month, day := int(date.Month()), date.Day()
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].Month > month || (rows[i].Month == month && rows[i].Day >= day)
	})
	if i < len(rows) && rows[i].Month == month && rows[i].Day == day {
		return rows[i], true
	}
	return DailyStatistic{}, false
}

// Locations returns the IDs with at least one row, sorted.
func (t StatisticsTable) Locations() []string {
	ids := make([]string, 0, len(t))
	for id, rows := range t {
		if len(rows) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
