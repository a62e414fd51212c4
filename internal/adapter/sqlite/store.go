// Package sqlite persists the baseline, statistics, daily observation log and
// run history in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens the database, applies
// pragmas and creates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadBaseline reads every stored observation into a Baseline for window.
func (s *Store) LoadBaseline(ctx context.Context, window domain.DateRange) (*domain.Baseline, error) {
	obs, err := s.queryObservations(ctx, `
		SELECT location_id, obs_date, value, unit, source_url
		FROM baseline_observations ORDER BY location_id, obs_date`)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	b := domain.NewBaseline(window)
	b.Merge(obs)
	return b, nil
}

const selectStatistics = `
	SELECT location_id, month, day, min, max, p10, p25, p50, p75, p90, mean, count, unit
	FROM daily_statistics`

// LoadStatistics reads the full statistics table.
func (s *Store) LoadStatistics(ctx context.Context) (domain.StatisticsTable, error) {
	rows, err := s.queryStatistics(ctx, selectStatistics+` ORDER BY location_id, month, day`)
	if err != nil {
		return nil, err
	}
	table := make(domain.StatisticsTable)
	for _, st := range rows {
		table[st.LocationID] = append(table[st.LocationID], st)
	}
	return table, nil
}

// LocationStatistics reads one location's rows.
func (s *Store) LocationStatistics(ctx context.Context, locationID string) ([]domain.DailyStatistic, error) {
	return s.queryStatistics(ctx, selectStatistics+` WHERE location_id = ? ORDER BY month, day`, locationID)
}

func (s *Store) queryStatistics(ctx context.Context, query string, args ...any) ([]domain.DailyStatistic, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyStatistic
	for rows.Next() {
		var st domain.DailyStatistic
		if err := rows.Scan(&st.LocationID, &st.Month, &st.Day, &st.Min, &st.Max,
			&st.P10, &st.P25, &st.P50, &st.P75, &st.P90, &st.Mean, &st.Count, &st.Unit); err != nil {
			return nil, fmt.Errorf("scan statistic: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return out, nil
}

// SaveState replaces the baseline and statistics tables in one transaction.
func (s *Store) SaveState(ctx context.Context, b *domain.Baseline, stats domain.StatisticsTable) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := rewriteBaseline(ctx, tx, b); err != nil {
			return err
		}
		return rewriteStatistics(ctx, tx, stats)
	})
}

func rewriteBaseline(ctx context.Context, tx *sql.Tx, b *domain.Baseline) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM baseline_observations`); err != nil {
		return fmt.Errorf("clear baseline: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO baseline_observations (location_id, obs_date, value, unit, source_url)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare baseline insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range b.All() {
		if _, err := stmt.ExecContext(ctx, o.LocationID, domain.DateKey(o.Date), o.Value, o.Unit, o.SourceURL); err != nil {
			return fmt.Errorf("insert baseline %s %s: %w", o.LocationID, domain.DateKey(o.Date), err)
		}
	}
	return nil
}

func rewriteStatistics(ctx context.Context, tx *sql.Tx, stats domain.StatisticsTable) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_statistics`); err != nil {
		return fmt.Errorf("clear statistics: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_statistics (location_id, month, day, min, max, p10, p25, p50, p75, p90, mean, count, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statistics insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range stats.Locations() {
		for _, st := range stats[id] {
			if _, err := stmt.ExecContext(ctx, st.LocationID, st.Month, st.Day, st.Min, st.Max,
				st.P10, st.P25, st.P50, st.P75, st.P90, st.Mean, st.Count, st.Unit); err != nil {
				return fmt.Errorf("insert statistic %s %d-%d: %w", st.LocationID, st.Month, st.Day, err)
			}
		}
	}
	return nil
}

// AppendDaily adds resolved current values to the daily log. Existing
// (location, date) rows are left untouched. Returns the number inserted.
func (s *Store) AppendDaily(ctx context.Context, obs []domain.Observation) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO daily_observations (location_id, obs_date, value, unit, source_url)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare daily insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range obs {
			res, err := stmt.ExecContext(ctx, o.LocationID, domain.DateKey(domain.CivilDate(o.Date)), o.Value, o.Unit, o.SourceURL)
			if err != nil {
				return fmt.Errorf("insert daily %s: %w", o.LocationID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	return inserted, err
}

// LoadDaily returns logged current values with dates in r.
func (s *Store) LoadDaily(ctx context.Context, r domain.DateRange) ([]domain.Observation, error) {
	obs, err := s.queryObservations(ctx, `
		SELECT location_id, obs_date, value, unit, source_url
		FROM daily_observations WHERE obs_date >= ? AND obs_date <= ?
		ORDER BY location_id, obs_date`, domain.DateKey(r.Start), domain.DateKey(r.End))
	if err != nil {
		return nil, fmt.Errorf("load daily observations: %w", err)
	}
	return obs, nil
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		var (
			o    domain.Observation
			date string
		)
		if err := rows.Scan(&o.LocationID, &date, &o.Value, &o.Unit, &o.SourceURL); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if o.Date, err = domain.ParseDate(date); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// RecordRun inserts or updates a run record.
func (s *Store) RecordRun(ctx context.Context, r domain.RunRecord) error {
	var finished any
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.UTC().Format(timestampLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, target_date, started_at, finished_at, status, locations, with_current, with_statistics, backfilled, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			locations = excluded.locations,
			with_current = excluded.with_current,
			with_statistics = excluded.with_statistics,
			backfilled = excluded.backfilled,
			error = excluded.error`,
		r.ID.String(), string(r.Kind), domain.DateKey(r.TargetDate), r.StartedAt.UTC().Format(timestampLayout), finished,
		string(r.Status), r.Locations, r.WithCurrent, r.WithStatistics, r.Backfilled, r.Error)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, target_date, started_at, finished_at, status, locations, with_current, with_statistics, backfilled, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccessfulRun returns the newest non-failed run of kind.
func (s *Store) LastSuccessfulRun(ctx context.Context, kind domain.RunKind) (domain.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, target_date, started_at, finished_at, status, locations, with_current, with_statistics, backfilled, error
		FROM runs WHERE kind = ? AND status IN (?, ?)
		ORDER BY started_at DESC LIMIT 1`, string(kind), string(domain.RunSucceeded), string(domain.RunDegraded))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, false, nil
	}
	if err != nil {
		return domain.RunRecord{}, false, err
	}
	return r, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.RunRecord, error) {
	var (
		r                                 domain.RunRecord
		id, kind, target, status, started string
		finished                          sql.NullString
	)
	if err := row.Scan(&id, &kind, &target, &started, &finished, &status,
		&r.Locations, &r.WithCurrent, &r.WithStatistics, &r.Backfilled, &r.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return r, fmt.Errorf("parse run id: %w", err)
	}
	r.Kind = domain.RunKind(kind)
	r.Status = domain.RunStatus(status)
	if r.TargetDate, err = domain.ParseDate(target); err != nil {
		return r, err
	}
	if r.StartedAt, err = time.Parse(timestampLayout, started); err != nil {
		return r, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(timestampLayout, finished.String); err != nil {
			return r, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	return r, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
