package domain

import (
	"fmt"
	"strings"
)

// SourceType identifies the upstream API that serves a location.
type SourceType string

const (
	SourceRISE    SourceType = "rise"
	SourceUSACE   SourceType = "usace"
	SourceUSGS    SourceType = "usgs"
	SourceCDEC    SourceType = "cdec"
	SourceUnknown SourceType = "unknown"
)

// ParseSourceType maps a roster value to a SourceType. Unrecognized values
// become SourceUnknown so the location still appears in reports.
func ParseSourceType(value string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(value))) {
	case SourceRISE:
		return SourceRISE
	case SourceUSACE:
		return SourceUSACE
	case SourceUSGS:
		return SourceUSGS
	case SourceCDEC:
		return SourceCDEC
	default:
		return SourceUnknown
	}
}

// DataType says whether a location reports storage directly or reports
// elevation that must be converted through a curve.
type DataType string

const (
	DataStorage   DataType = "storage"
	DataElevation DataType = "elevation"
)

// ParseDataType maps a roster value to a DataType. Blank means storage.
func ParseDataType(value string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(DataStorage):
		return DataStorage, nil
	case string(DataElevation):
		return DataElevation, nil
	default:
		return "", fmt.Errorf("%w: data type %q", ErrConfiguration, value)
	}
}

// LocationRecord is one row of the externally maintained location roster.
// It is read-only to this service.
type LocationRecord struct {
	ID             string     `json:"location_id"`
	Name           string     `json:"display_name"`
	Source         SourceType `json:"source_type"`
	DataType       DataType   `json:"data_type"`
	Capacity       *float64   `json:"capacity,omitempty"`
	ActiveCapacity *float64   `json:"active_capacity,omitempty"`
	Lat            float64    `json:"lat"`
	Lon            float64    `json:"lon"`
	State          string     `json:"state,omitempty"`
	Region         string     `json:"region,omitempty"`
}
