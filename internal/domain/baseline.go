package domain

import (
	"math"
	"sort"
)

// Baseline is the in-memory observation store for the historical window.
// It holds at most one Observation per (location, date); the first one merged
// wins, so re-ingesting the same fetch is a no-op.
type Baseline struct {
	window     DateRange
	byLocation map[string]map[string]Observation
}

// NewBaseline creates an empty store that only accepts dates inside window.
func NewBaseline(window DateRange) *Baseline {
	return &Baseline{
		window:     window,
		byLocation: make(map[string]map[string]Observation),
	}
}

// Window returns the accepted date range.
func (b *Baseline) Window() DateRange {
	return b.window
}

// Merge appends observations, skipping any whose (location, date) is already
// present, whose date is outside the window, or whose value is not finite.
// It returns the number of observations added.
func (b *Baseline) Merge(obs []Observation) int {
	added := 0
	for _, o := range obs {
		if !b.accepts(o) {
			continue
		}
		o.Date = CivilDate(o.Date)
		days, ok := b.byLocation[o.LocationID]
		if !ok {
			days = make(map[string]Observation)
			b.byLocation[o.LocationID] = days
		}
		key := DateKey(o.Date)
		if _, exists := days[key]; exists {
			continue
		}
		days[key] = o
		added++
	}
	return added
}

// ReplaceLocation discards the location's current slice and merges obs in its
// place. Observations for other locations are ignored. Returns the number kept.
func (b *Baseline) ReplaceLocation(locationID string, obs []Observation) int {
	delete(b.byLocation, locationID)
	filtered := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.LocationID == locationID {
			filtered = append(filtered, o)
		}
	}
	return b.Merge(filtered)
}

// Has reports whether the location has at least one observation.
func (b *Baseline) Has(locationID string) bool {
	return len(b.byLocation[locationID]) > 0
}

// Locations returns the location IDs present, sorted.
func (b *Baseline) Locations() []string {
	ids := make([]string, 0, len(b.byLocation))
	for id, days := range b.byLocation {
		if len(days) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Observations returns one location's observations in date order.
func (b *Baseline) Observations(locationID string) []Observation {
	days := b.byLocation[locationID]
	out := make([]Observation, 0, len(days))
	for _, o := range days {
		out = append(out, o)
	}
	sortObservations(out)
	return out
}

// All returns every observation ordered by location, then date.
func (b *Baseline) All() []Observation {
	out := make([]Observation, 0, b.Len())
	for _, id := range b.Locations() {
		out = append(out, b.Observations(id)...)
	}
	return out
}

// Len returns the total number of observations.
func (b *Baseline) Len() int {
	n := 0
	for _, days := range b.byLocation {
		n += len(days)
	}
	return n
}

func (b *Baseline) accepts(o Observation) bool {
	if o.LocationID == "" {
		return false
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return false
	}
	return b.window.Contains(o.Date)
}

func sortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].LocationID != obs[j].LocationID {
			return obs[i].LocationID < obs[j].LocationID
		}
		return obs[i].Date.Before(obs[j].Date)
	})
}

// DedupeObservations keeps the first observation per (location, date) and
// returns the survivors ordered by location, then date.
func DedupeObservations(obs []Observation) []Observation {
	seen := make(map[string]struct{}, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		o.Date = CivilDate(o.Date)
		key := o.LocationID + "|" + DateKey(o.Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	sortObservations(out)
	return out
}
