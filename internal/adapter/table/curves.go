package table

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// LoadCurves reads elevation-storage curves from path.
func LoadCurves(path string) ([]domain.ElevationCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open curves: %w", err)
	}
	defer f.Close()
	return ReadCurves(f)
}

// ReadCurves parses "location_id, elevation, storage" rows, grouping points
// per location in first-seen order. Ordering and uniqueness are enforced by
// domain.NewElevationConverter.
func ReadCurves(r io.Reader) ([]domain.ElevationCurve, error) {
	rows, err := readRecords(r, "location_id", "elevation", "storage")
	if err != nil {
		return nil, fmt.Errorf("%w: curves: %w", domain.ErrConfiguration, err)
	}

	index := make(map[string]int)
	var curves []domain.ElevationCurve
	for _, row := range rows {
		id := row.get("location_id")
		if id == "" {
			return nil, fmt.Errorf("%w: curves line %d: empty location_id", domain.ErrConfiguration, row.line)
		}
		elev, err := row.optionalFloat("elevation")
		if err != nil {
			return nil, err
		}
		storage, err := row.optionalFloat("storage")
		if err != nil {
			return nil, err
		}
		if elev == nil || storage == nil {
			return nil, fmt.Errorf("%w: curves line %d: elevation and storage are required", domain.ErrConfiguration, row.line)
		}

		i, ok := index[id]
		if !ok {
			i = len(curves)
			index[id] = i
			curves = append(curves, domain.ElevationCurve{LocationID: id})
		}
		curves[i].Points = append(curves[i].Points, domain.CurvePoint{Elevation: *elev, Storage: *storage})
	}
	return curves, nil
}
