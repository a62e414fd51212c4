package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// IngestResult reports what a manual ingest replaced.
type IngestResult struct {
	Locations []string
	// Kept is the number of observations inside the baseline window.
	Kept int
}

// Ingest replaces each mentioned location's baseline slice with obs and
// recomputes its statistics. Elevation readings (unit ft) for elevation
// locations are converted first. Every id must be in the roster and every
// value must end up in af; otherwise nothing is written.
func (p *Pipeline) Ingest(ctx context.Context, roster []domain.LocationRecord, obs []domain.Observation) (res IngestResult, err error) {
	rec := domain.NewRunRecord(domain.RunIngest, domain.Today())
	finish := p.beginRun(domain.RunIngest, &rec)
	defer func() { finish(ctx, domain.RunSucceeded, err) }()

	byLocation := make(map[string][]domain.Observation)
	for _, o := range obs {
		byLocation[o.LocationID] = append(byLocation[o.LocationID], o)
	}
	for id := range byLocation {
		res.Locations = append(res.Locations, id)
	}
	sort.Strings(res.Locations)

	index := locationIndex(roster)
	for _, id := range res.Locations {
		loc, ok := index[id]
		if !ok {
			return res, fmt.Errorf("%w: ingest location %s is not in the roster", domain.ErrConfiguration, id)
		}
		if loc.DataType == domain.DataElevation {
			for i, o := range byLocation[id] {
				if o.Unit != domain.UnitFeet {
					continue
				}
				storage, err := p.fetch.converter.Convert(id, o.Value)
				if err != nil {
					return res, err
				}
				byLocation[id][i].Value = storage
				byLocation[id][i].Unit = domain.UnitAcreFeet
			}
		}
		if err := checkStorageUnit(id, byLocation[id]); err != nil {
			return res, err
		}
	}

	b, stats, err := p.loadState(ctx)
	if err != nil {
		return res, err
	}
	for _, id := range res.Locations {
		kept := b.ReplaceLocation(id, byLocation[id])
		if kept < len(byLocation[id]) {
			p.logger.Warn("ingest dropped observations outside the baseline window",
				"location_id", id, "dropped", len(byLocation[id])-kept, "window", b.Window().String())
		}
		stats.Replace(id, domain.ComputeDailyStatistics(id, b.Observations(id)))
		res.Kept += kept
	}
	rec.Locations = len(res.Locations)

	if err = p.store.SaveState(ctx, b, stats); err != nil {
		return res, err
	}
	p.logger.Info("manual observations ingested", "locations", len(res.Locations), "observations", res.Kept)
	return res, nil
}

// checkStorageUnit requires every observation to be storage in af, the unit
// of daily values.
func checkStorageUnit(id string, obs []domain.Observation) error {
	for _, o := range obs {
		if o.Unit != domain.UnitAcreFeet {
			return fmt.Errorf("%w: location %s has unit %q on %s, want %q",
				domain.ErrConfiguration, id, o.Unit, o.Date.Format(time.DateOnly), domain.UnitAcreFeet)
		}
	}
	return nil
}
