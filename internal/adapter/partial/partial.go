// Package partial stores backfill fetch results produced by independent
// workers so a single coordinator can merge them later. Files are JSON
// compressed with snappy.
package partial

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// FormatVersion is bumped when the file layout changes incompatibly.
const FormatVersion = 1

// Partial is the fetch output of one backfill worker. It carries no store
// state; applying it is the coordinator's job.
type Partial struct {
	Version      int                  `json:"version"`
	CreatedAt    time.Time            `json:"created_at"`
	Window       domain.DateRange     `json:"window"`
	Fetched      []string             `json:"fetched"`
	Failed       []string             `json:"failed,omitempty"`
	Skipped      []string             `json:"skipped,omitempty"`
	Observations []domain.Observation `json:"observations"`
}

// Encode serializes p.
func Encode(p Partial) ([]byte, error) {
	p.Version = FormatVersion
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal partial: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Partial, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return Partial{}, fmt.Errorf("decompress partial: %w", err)
	}
	var p Partial
	if err := json.Unmarshal(raw, &p); err != nil {
		return Partial{}, fmt.Errorf("unmarshal partial: %w", err)
	}
	if p.Version != FormatVersion {
		return Partial{}, fmt.Errorf("partial format version %d, want %d", p.Version, FormatVersion)
	}
	return p, nil
}

// WriteFile encodes p to path.
func WriteFile(path string, p Partial) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create partial directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write partial %s: %w", path, err)
	}
	return nil
}

// ReadFiles decodes every path in order.
func ReadFiles(paths ...string) ([]Partial, error) {
	out := make([]Partial, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read partial: %w", err)
		}
		p, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, p)
	}
	return out, nil
}
