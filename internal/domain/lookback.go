package domain

import "time"

// ResolveCurrent walks backward one day at a time from target through
// target-windowDays and returns the first date with an observation. The
// returned Observation's Date is the date actually used, which may be earlier
// than target. ok is false when the window is empty.
func ResolveCurrent(series []Observation, target time.Time, windowDays int) (Observation, bool) {
	byDate := make(map[string]Observation, len(series))
	for _, o := range series {
		key := DateKey(CivilDate(o.Date))
		if _, exists := byDate[key]; !exists {
			byDate[key] = o
		}
	}

	window := Lookback(target, windowDays)
	for d := window.End; !d.Before(window.Start); d = d.AddDate(0, 0, -1) {
		if o, ok := byDate[DateKey(d)]; ok {
			o.Date = d
			return o, true
		}
	}
	return Observation{}, false
}

// ResolveLatest selects the location's observation with the greatest date in
// [target-windowDays, target] from a merged table.
func ResolveLatest(table []Observation, locationID string, target time.Time, windowDays int) (Observation, bool) {
	window := Lookback(target, windowDays)
	var best Observation
	found := false
	for _, o := range table {
		if o.LocationID != locationID || !window.Contains(o.Date) {
			continue
		}
		if !found || o.Date.After(best.Date) {
			best = o
			found = true
		}
	}
	if found {
		best.Date = CivilDate(best.Date)
	}
	return best, found
}

// ResolveLatestAll applies ResolveLatest to every location in the table
// independently. Locations with nothing in the window are absent from the map.
func ResolveLatestAll(table []Observation, target time.Time, windowDays int) map[string]Observation {
	window := Lookback(target, windowDays)
	out := make(map[string]Observation)
	for _, o := range table {
		if !window.Contains(o.Date) {
			continue
		}
		if cur, ok := out[o.LocationID]; !ok || o.Date.After(cur.Date) {
			o.Date = CivilDate(o.Date)
			out[o.LocationID] = o
		}
	}
	return out
}
