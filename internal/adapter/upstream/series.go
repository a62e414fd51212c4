package upstream

import (
	"sort"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// FirstPerDay drops observations outside r, orders the rest by date and keeps
// the first reading of each calendar day.
func FirstPerDay(obs []domain.Observation, r domain.DateRange) []domain.Observation {
	in := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if r.Contains(o.Date) {
			in = append(in, o)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return domain.CivilDate(in[i].Date).Before(domain.CivilDate(in[j].Date))
	})
	return domain.DedupeObservations(in)
}

// LastPerDay is FirstPerDay with the opposite tie-break: the latest reading
// of each calendar day wins. Readings are compared by full timestamp.
func LastPerDay(obs []domain.Observation, r domain.DateRange) []domain.Observation {
	in := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if r.Contains(o.Date) {
			in = append(in, o)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Date.After(in[j].Date)
	})
	return domain.DedupeObservations(in)
}
