package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// LatestReport holds the most recent daily report. Before the first run in
// this process it falls back to the newest report file in the output
// directory.
type LatestReport struct {
	dir string

	mu     sync.RWMutex
	report domain.Report
	ok     bool
}

// NewLatestReport creates a holder reading fallbacks from dir.
func NewLatestReport(dir string) *LatestReport {
	return &LatestReport{dir: dir}
}

// Set replaces the held report.
func (l *LatestReport) Set(r domain.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.report = r
	l.ok = true
}

// LatestReport returns the held report, or loads the newest file on disk.
func (l *LatestReport) LatestReport(_ context.Context) (domain.Report, bool, error) {
	l.mu.RLock()
	r, ok := l.report, l.ok
	l.mu.RUnlock()
	if ok {
		return r, true, nil
	}

	path, date, found, err := newestReportFile(l.dir)
	if err != nil || !found {
		return domain.Report{}, false, err
	}
	rows, err := table.LoadReport(path)
	if err != nil {
		return domain.Report{}, false, err
	}
	r = domain.Report{DateQueried: date, Rows: rows}
	l.Set(r)
	return r, true, nil
}

// newestReportFile finds the daily report with the latest date in dir.
// Backfill and archive tables share the prefix and are excluded by requiring
// the remainder of the name to be a bare date.
func newestReportFile(dir string) (string, time.Time, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("list reports: %w", err)
	}

	var (
		best     string
		bestDate time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ReportPrefix+"_") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		date, err := domain.ParseDate(strings.TrimSuffix(strings.TrimPrefix(name, ReportPrefix+"_"), ".csv"))
		if err != nil {
			continue
		}
		if best == "" || date.After(bestDate) {
			best, bestDate = name, date
		}
	}
	if best == "" {
		return "", time.Time{}, false, nil
	}
	return filepath.Join(dir, best), bestDate, true, nil
}
