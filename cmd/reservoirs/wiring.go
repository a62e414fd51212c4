package main

import (
	"fmt"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/source"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/pipeline"
)

// service bundles a pipeline with the resources it owns.
type service struct {
	pipeline  *pipeline.Pipeline
	store     *sqlite.Store
	publisher *kafka.Publisher
}

// openService opens the store and builds the pipeline. The report publisher
// is attached only when withPublisher is set and Kafka is enabled.
func openService(withPublisher bool) (*service, error) {
	converter, err := loadConverter()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &service{store: store}
	var publisher pipeline.ReportPublisher
	if withPublisher && cfg.KafkaEnabled {
		s.publisher = kafka.NewPublisher(cfg, logger)
		publisher = s.publisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaReportTopic)
	}

	registry := source.NewFromConfig(cfg, metrics, logger)
	s.pipeline = pipeline.New(store, registry, converter, publisher, pipeline.OptionsFromConfig(cfg), logger, metrics)
	return s, nil
}

func (s *service) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}
}

// loadRoster reads the roster; it is re-read on every run.
func loadRoster() ([]domain.LocationRecord, error) {
	roster, err := table.LoadRoster(cfg.RosterPath)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("%w: roster %s has no locations", domain.ErrConfiguration, cfg.RosterPath)
	}
	return roster, nil
}

// loadConverter reads the curve table when one is configured.
func loadConverter() (*domain.ElevationConverter, error) {
	if cfg.CurvesPath == "" {
		return domain.NewElevationConverter(nil)
	}
	curves, err := table.LoadCurves(cfg.CurvesPath)
	if err != nil {
		return nil, err
	}
	return domain.NewElevationConverter(curves)
}
