// Package table reads and writes the CSV files the service exchanges with
// operators: the location roster, elevation curves, manual observations and
// the report itself.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// LoadRoster reads the location roster from path.
func LoadRoster(path string) ([]domain.LocationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return ReadRoster(f)
}

// ReadRoster parses roster CSV. Columns are addressed by header name; only
// location_id is required. Unknown source types are kept as "unknown".
func ReadRoster(r io.Reader) ([]domain.LocationRecord, error) {
	rows, err := readRecords(r, "location_id")
	if err != nil {
		return nil, fmt.Errorf("%w: roster: %w", domain.ErrConfiguration, err)
	}

	seen := make(map[string]struct{}, len(rows))
	locs := make([]domain.LocationRecord, 0, len(rows))
	for _, row := range rows {
		id := row.get("location_id")
		if id == "" {
			return nil, fmt.Errorf("%w: roster line %d: empty location_id", domain.ErrConfiguration, row.line)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: roster line %d: duplicate location_id %q", domain.ErrConfiguration, row.line, id)
		}
		seen[id] = struct{}{}

		dataType, err := domain.ParseDataType(row.get("data_type"))
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", row.line, err)
		}
		loc := domain.LocationRecord{
			ID:       id,
			Name:     row.get("display_name"),
			Source:   domain.ParseSourceType(row.get("source_type")),
			DataType: dataType,
			State:    row.get("state"),
			Region:   row.get("region"),
		}
		if loc.Capacity, err = row.optionalFloat("capacity"); err != nil {
			return nil, err
		}
		if loc.ActiveCapacity, err = row.optionalFloat("active_capacity"); err != nil {
			return nil, err
		}
		if loc.Lat, err = row.float("lat"); err != nil {
			return nil, err
		}
		if loc.Lon, err = row.float("lon"); err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// record is one CSV row addressed by lowercase header name.
type record struct {
	line   int
	fields map[string]string
}

func (r record) get(col string) string {
	return strings.TrimSpace(r.fields[col])
}

func (r record) float(col string) (float64, error) {
	v, err := r.optionalFloat(col)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (r record) optionalFloat(col string) (*float64, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %s %q is not a number", domain.ErrConfiguration, r.line, col, s)
	}
	return &v, nil
}

// readRecords reads a headered CSV and checks that the required columns exist.
func readRecords(r io.Reader, required ...string) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		present[cols[i]] = true
	}
	for _, req := range required {
		if !present[req] {
			return nil, fmt.Errorf("missing column %q", req)
		}
	}

	var out []record
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		rec := record{line: line, fields: make(map[string]string, len(cols))}
		for i, col := range cols {
			if i < len(fields) {
				rec.fields[col] = fields[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
