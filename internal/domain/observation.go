package domain

import (
	"context"
	"time"
)

// Observation is one normalized value for one location on one civil date.
type Observation struct {
	LocationID string    `json:"location_id"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`

	// SourceURL is the upstream request that produced the value. Provenance
	// only; it does not participate in (LocationID, Date) identity.
	SourceURL string `json:"source_url,omitempty"`
}

// Series is the normalized result of one adapter fetch.
type Series struct {
	LocationID   string
	Observations []Observation

	// Requests lists the upstream URLs issued, one per logical request.
	Requests []string
}

// SourceAdapter fetches and normalizes one location's observations over a
// date range from one upstream API. An empty Series with a nil error means the
// upstream answered but had no usable rows.
type SourceAdapter interface {
	Source() SourceType
	Fetch(ctx context.Context, loc LocationRecord, r DateRange) (Series, error)
}
