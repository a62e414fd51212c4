package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// fetcher runs one location's adapter and, for elevation locations, the
// curve conversion.
type fetcher struct {
	sources   SourceResolver
	converter *domain.ElevationConverter
	logger    *slog.Logger
}

func (f *fetcher) fetch(ctx context.Context, loc domain.LocationRecord, r domain.DateRange) (domain.Series, error) {
	if loc.DataType == domain.DataElevation && !f.converter.HasCurve(loc.ID) {
		return domain.Series{}, fmt.Errorf("%w: %s", domain.ErrMissingCurve, loc.ID)
	}
	adapter, err := f.sources.For(loc)
	if err != nil {
		return domain.Series{}, err
	}
	series, err := adapter.Fetch(ctx, loc, r)
	if err != nil {
		return series, err
	}
	if loc.DataType == domain.DataElevation {
		converted, err := f.converter.ConvertSeries(loc.ID, series.Observations)
		if err != nil {
			return domain.Series{}, err
		}
		series.Observations = converted
	}
	return series, nil
}

// logFailure logs a per-location failure at a level matching its kind:
// configuration problems are loud, upstream trouble is a warning.
func logFailure(logger *slog.Logger, msg string, loc domain.LocationRecord, err error) {
	attrs := []any{"location_id", loc.ID, "source", loc.Source, "error", err}
	if errors.Is(err, domain.ErrConfiguration) {
		logger.Error(msg, attrs...)
		return
	}
	logger.Warn(msg, attrs...)
}

// locationIndex maps location IDs to their roster records.
func locationIndex(roster []domain.LocationRecord) map[string]domain.LocationRecord {
	idx := make(map[string]domain.LocationRecord, len(roster))
	for _, loc := range roster {
		idx[loc.ID] = loc
	}
	return idx
}
