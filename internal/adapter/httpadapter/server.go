package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

const defaultRunLimit = 20

// ReportSource returns the most recent daily report. ok is false before the
// first report exists.
type ReportSource interface {
	LatestReport(ctx context.Context) (report domain.Report, ok bool, err error)
}

// StatisticsSource reads persisted day-of-year statistics and run history.
type StatisticsSource interface {
	LocationStatistics(ctx context.Context, locationID string) ([]domain.DailyStatistic, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Server exposes health, readiness, metrics, and the read-only report API.
type Server struct {
	httpServer *http.Server
	reports    ReportSource
	stats      StatisticsSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportSource, stats StatisticsSource, logger *slog.Logger) *Server {
	r := mux.NewRouter().UseEncodedPath()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		stats:   stats,
		logger:  logger,
	}

	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reports/latest", s.handleLatestReport).Methods(http.MethodGet)
	// USACE ids contain a slash; accept it raw or escaped as %2F.
	api.HandleFunc("/locations/{id:.+}/statistics", s.handleLocationStatistics).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report, ok, err := s.reports.LatestReport(r.Context())
	if err != nil {
		s.internalError(w, "load latest report", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no report has been produced yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type statisticsResponse struct {
	LocationID string                  `json:"location_id"`
	Statistics []domain.DailyStatistic `json:"statistics"`
}

func (s *Server) handleLocationStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed location id")
		return
	}
	rows, err := s.stats.LocationStatistics(r.Context(), id)
	if err != nil {
		s.internalError(w, "load statistics", err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no statistics for location "+id)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{LocationID: id, Statistics: rows})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.stats.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	s.logger.Error(action, "error", err)
	writeError(w, http.StatusInternalServerError, action+" failed")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
