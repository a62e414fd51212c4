package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

func TestIngest_ReplacesLocationSlice(t *testing.T) {
	h := newHarness(t)
	h.seed(t,
		observation("A", domain.Date(2001, time.March, 3), 999, domain.UnitAcreFeet),
		observation("Z", domain.Date(2001, time.March, 3), 5, domain.UnitAcreFeet))

	roster := []domain.LocationRecord{
		location("A", domain.SourceRISE, domain.DataStorage),
		location("E", domain.SourceUSGS, domain.DataElevation),
	}
	converter, err := domain.NewElevationConverter([]domain.ElevationCurve{{
		LocationID: "E",
		Points:     []domain.CurvePoint{{Elevation: 100, Storage: 1000}, {Elevation: 200, Storage: 3000}},
	}})
	require.NoError(t, err)

	manual := []domain.Observation{
		observation("A", domain.Date(2001, time.January, 1), 100, domain.UnitAcreFeet),
		observation("A", domain.Date(2002, time.January, 1), 200, domain.UnitAcreFeet),
		observation("A", domain.Date(2021, time.January, 1), 300, domain.UnitAcreFeet),
		observation("E", domain.Date(2001, time.January, 1), 150, domain.UnitFeet),
	}
	res, err := h.pipeline(converter, nil).Ingest(context.Background(), roster, manual)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "E"}, res.Locations)
	assert.Equal(t, 3, res.Kept, "2021 falls outside the baseline window")

	b, err := h.store.LoadBaseline(context.Background(), baselineWindow)
	require.NoError(t, err)
	require.Len(t, b.Observations("A"), 2, "previous slice replaced")
	assert.Len(t, b.Observations("Z"), 1, "other locations untouched")
	e := b.Observations("E")
	require.Len(t, e, 1)
	assert.InDelta(t, 2000, e[0].Value, 1e-9)
	assert.Equal(t, domain.UnitAcreFeet, e[0].Unit)

	stats, err := h.store.LoadStatistics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats["A"], 1)
	assert.InDelta(t, 150, stats["A"][0].Mean, 1e-9)
	assert.Equal(t, 2, stats["A"][0].Count)
	_, hasMarch := stats.Lookup("A", domain.Date(2001, time.March, 3))
	assert.False(t, hasMarch)
}

func TestIngest_MissingCurveAborts(t *testing.T) {
	h := newHarness(t)
	roster := []domain.LocationRecord{location("E", domain.SourceUSGS, domain.DataElevation)}
	_, err := h.pipeline(nil, nil).Ingest(context.Background(), roster, []domain.Observation{
		observation("E", domain.Date(2001, time.January, 1), 150, domain.UnitFeet),
	})
	require.ErrorIs(t, err, domain.ErrMissingCurve)
}

func TestIngest_MixedUnitsRejected(t *testing.T) {
	h := newHarness(t)
	roster := []domain.LocationRecord{location("A", domain.SourceRISE, domain.DataStorage)}
	_, err := h.pipeline(nil, nil).Ingest(context.Background(), roster, []domain.Observation{
		observation("A", domain.Date(2001, time.January, 1), 100, domain.UnitAcreFeet),
		observation("A", domain.Date(2001, time.January, 2), 150, domain.UnitFeet),
	})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIngest_FeetForStorageLocationRejected(t *testing.T) {
	h := newHarness(t)
	h.seed(t, observation("A", domain.Date(2001, time.March, 3), 999, domain.UnitAcreFeet))
	roster := []domain.LocationRecord{location("A", domain.SourceRISE, domain.DataStorage)}

	_, err := h.pipeline(nil, nil).Ingest(context.Background(), roster, []domain.Observation{
		observation("A", domain.Date(2001, time.January, 1), 850, domain.UnitFeet),
		observation("A", domain.Date(2002, time.January, 1), 860, domain.UnitFeet),
	})
	require.ErrorIs(t, err, domain.ErrConfiguration)

	b, err := h.store.LoadBaseline(context.Background(), baselineWindow)
	require.NoError(t, err)
	require.Len(t, b.Observations("A"), 1, "baseline left untouched")
	stats, err := h.store.LoadStatistics(context.Background())
	require.NoError(t, err)
	for _, row := range stats["A"] {
		assert.Equal(t, domain.UnitAcreFeet, row.Unit)
	}
}

func TestIngest_UnknownLocationRejected(t *testing.T) {
	h := newHarness(t)
	roster := []domain.LocationRecord{location("A", domain.SourceRISE, domain.DataStorage)}

	_, err := h.pipeline(nil, nil).Ingest(context.Background(), roster, []domain.Observation{
		observation("A", domain.Date(2001, time.January, 1), 100, domain.UnitAcreFeet),
		observation("GHOST", domain.Date(2001, time.January, 1), 100, domain.UnitAcreFeet),
	})
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "GHOST")

	b, err := h.store.LoadBaseline(context.Background(), baselineWindow)
	require.NoError(t, err)
	assert.False(t, b.Has("GHOST"))
	assert.False(t, b.Has("A"), "nothing is written when any location is rejected")
}
