package table

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// LoadObservations reads a manual observation file from path.
func LoadObservations(path string, dataTypes map[string]domain.DataType) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()
	return ReadObservations(f, path, dataTypes)
}

// ReadObservations parses "location_id, date, value, unit" rows. Units are
// normalized against the location's data type (storage when unknown); blank
// values are skipped. sourceRef is recorded as each observation's SourceURL.
func ReadObservations(r io.Reader, sourceRef string, dataTypes map[string]domain.DataType) ([]domain.Observation, error) {
	rows, err := readRecords(r, "location_id", "date", "value")
	if err != nil {
		return nil, fmt.Errorf("%w: observations: %w", domain.ErrConfiguration, err)
	}

	obs := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		id := row.get("location_id")
		if id == "" {
			return nil, fmt.Errorf("%w: observations line %d: empty location_id", domain.ErrConfiguration, row.line)
		}
		date, err := domain.ParseDate(row.get("date"))
		if err != nil {
			return nil, fmt.Errorf("%w: observations line %d: %w", domain.ErrConfiguration, row.line, err)
		}
		value, err := row.optionalFloat("value")
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		dt := dataTypes[id]
		if dt == "" {
			dt = domain.DataStorage
		}
		unit, err := domain.NormalizeUnit(row.get("unit"), dt)
		if err != nil {
			return nil, fmt.Errorf("observations line %d: %w", row.line, err)
		}
		obs = append(obs, domain.Observation{
			LocationID: id,
			Date:       date,
			Value:      *value,
			Unit:       unit,
			SourceURL:  sourceRef,
		})
	}
	return obs, nil
}
