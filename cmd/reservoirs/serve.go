package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

var serveRunNow bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily report on a schedule and serve the HTTP API",
	Long: `Run the daily report every day at SCHEDULE_AT (UTC) and serve:

  GET /healthz                              liveness
  GET /readyz                               ready once a daily run has succeeded
  GET /metrics                              Prometheus metrics
  GET /api/v1/reports/latest                most recent daily report
  GET /api/v1/locations/{id}/statistics     day-of-year statistics
  GET /api/v1/runs?limit=N                  run history

Stops on SIGINT or SIGTERM, draining HTTP connections within SHUTDOWN_TIMEOUT.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(true)
		if err != nil {
			return err
		}
		defer svc.Close()

		srv := httpadapter.NewServer(cfg.HTTPAddr, svc.pipeline, svc.pipeline, svc.store, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()

		// Runs never overlap; a trigger during a run is dropped.
		var running sync.Mutex
		daily := func() {
			if !running.TryLock() {
				logger.Warn("daily run already in progress, trigger skipped")
				return
			}
			defer running.Unlock()
			roster, err := loadRoster()
			if err != nil {
				logger.Error("scheduled run skipped", "error", err)
				return
			}
			if _, err := svc.pipeline.RunDaily(ctx, roster, domain.Today()); err != nil {
				logger.Error("scheduled run failed", "error", err)
			}
		}

		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.SingletonModeAll()
		if _, err := scheduler.Every(1).Day().At(cfg.ScheduleAt).Do(daily); err != nil {
			return fmt.Errorf("schedule daily run: %w", err)
		}
		scheduler.StartAsync()
		logger.Info("scheduler started", "at", cfg.ScheduleAt)
		if serveRunNow {
			go daily()
		}

		<-ctx.Done()
		logger.Info("shutting down")
		scheduler.Stop()
		running.Lock()
		defer running.Unlock()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "also run the daily report once at startup")
}
