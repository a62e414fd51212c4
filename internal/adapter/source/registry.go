// Package source maps each domain.SourceType to the adapter that serves it.
package source

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/cdec"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/rise"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/usace"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/usgs"
	"github.com/couchcryptid/reservoir-data-etl/internal/config"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

// Registry dispatches locations to source adapters.
type Registry struct {
	adapters map[domain.SourceType]domain.SourceAdapter
}

// NewRegistry registers the given adapters. A later adapter for the same
// source replaces an earlier one.
func NewRegistry(adapters ...domain.SourceAdapter) *Registry {
	r := &Registry{adapters: make(map[domain.SourceType]domain.SourceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

// NewFromConfig builds the four production adapters, each with its own
// throttled upstream client.
func NewFromConfig(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Registry {
	client := func(src domain.SourceType, userAgent string) *upstream.Client {
		return upstream.NewClient(upstream.Options{
			Source:    src,
			Timeout:   cfg.HTTPTimeout,
			UserAgent: userAgent,
			Delay:     cfg.RequestDelay,
			Policy: upstream.Policy{
				MaxAttempts: cfg.RetryMaxAttempts,
				Step:        cfg.RetryBackoffStep,
			},
		}, metrics, logger)
	}

	s := cfg.Sources
	return NewRegistry(
		rise.NewClient(s.RISE.BaseURL, client(domain.SourceRISE, ""), logger),
		usace.NewClient(s.USACE.BaseURL, s.USACE.ChunkYears, client(domain.SourceUSACE, ""), logger),
		usgs.NewClient(usgs.Config{
			BaseURL:                 s.USGS.BaseURL,
			StorageParameterCode:    s.USGS.StorageParameterCode,
			ElevationParameterCodes: s.USGS.ElevationParameterCodes,
			PageLimit:               s.USGS.PageLimit,
		}, client(domain.SourceUSGS, ""), logger),
		cdec.NewClient(cdec.Config{
			BaseURL:       s.CDEC.BaseURL,
			StorageSensor: s.CDEC.Sensor,
		}, client(domain.SourceCDEC, s.CDEC.UserAgent), logger),
	)
}

// Lookup returns the adapter for t, or domain.ErrUnknownSource.
func (r *Registry) Lookup(t domain.SourceType) (domain.SourceAdapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, t)
	}
	return a, nil
}

// For returns the adapter serving loc.
func (r *Registry) For(loc domain.LocationRecord) (domain.SourceAdapter, error) {
	a, err := r.Lookup(loc.Source)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc.ID, err)
	}
	return a, nil
}
