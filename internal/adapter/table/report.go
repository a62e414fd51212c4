package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// ReportColumns is the fixed report header, in order.
var ReportColumns = []string{
	"site_id", "site_name", "source_type", "data_type", "state", "region", "lat", "lon",
	"data_units", "data_value", "data_date", "date_queried",
	"doy_max", "doy_p90", "doy_p75", "doy_p50", "doy_p25", "doy_p10", "doy_min", "doy_mean",
	"value_to_median", "value_to_mean", "stats_period", "capacity", "fraction_full",
	"data_url", "comment",
}

// ReportFileName is the conventional name for the report of one query date.
func ReportFileName(prefix string, queried time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, domain.DateKey(queried))
}

// WriteReportFile writes rows to path via a temporary file and rename, so a
// reader never sees a partial report.
func WriteReportFile(path string, rows []domain.OutputRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.csv")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteReport(tmp, rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// WriteReport writes the header and one line per row. Missing values are
// empty strings.
func WriteReport(w io.Writer, rows []domain.OutputRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportColumns); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(reportRecord(r)); err != nil {
			return fmt.Errorf("write report row %s: %w", r.SiteID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

func reportRecord(r domain.OutputRow) []string {
	return []string{
		r.SiteID, r.SiteName, string(r.Source), string(r.DataType), r.State, r.Region,
		formatFloat(r.Lat), formatFloat(r.Lon),
		r.Unit, formatOptional(r.Value), formatOptionalDate(r.DataDate), domain.DateKey(r.DateQueried),
		formatOptional(r.Max), formatOptional(r.P90), formatOptional(r.P75), formatOptional(r.P50),
		formatOptional(r.P25), formatOptional(r.P10), formatOptional(r.Min), formatOptional(r.Mean),
		formatOptional(r.ValueToMedian), formatOptional(r.ValueToMean), r.StatsPeriod,
		formatOptional(r.Capacity), formatOptional(r.FractionFull),
		r.DataURL, r.Comment,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return domain.DateKey(*t)
}

// LoadReport reads a report file.
func LoadReport(path string) ([]domain.OutputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return ReadReport(f)
}

// ReadReport parses a report written by WriteReport.
func ReadReport(r io.Reader) ([]domain.OutputRow, error) {
	recs, err := readRecords(r, ReportColumns...)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	rows := make([]domain.OutputRow, 0, len(recs))
	for _, rec := range recs {
		row, err := parseReportRecord(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseReportRecord(rec record) (domain.OutputRow, error) {
	row := domain.OutputRow{
		SiteID:      rec.get("site_id"),
		SiteName:    rec.get("site_name"),
		Source:      domain.ParseSourceType(rec.get("source_type")),
		DataType:    domain.DataType(rec.get("data_type")),
		State:       rec.get("state"),
		Region:      rec.get("region"),
		Unit:        rec.get("data_units"),
		StatsPeriod: rec.get("stats_period"),
		DataURL:     rec.get("data_url"),
		Comment:     rec.get("comment"),
	}

	var err error
	if row.Lat, err = rec.float("lat"); err != nil {
		return row, err
	}
	if row.Lon, err = rec.float("lon"); err != nil {
		return row, err
	}

	optional := []struct {
		col string
		dst **float64
	}{
		{"data_value", &row.Value},
		{"doy_max", &row.Max},
		{"doy_p90", &row.P90},
		{"doy_p75", &row.P75},
		{"doy_p50", &row.P50},
		{"doy_p25", &row.P25},
		{"doy_p10", &row.P10},
		{"doy_min", &row.Min},
		{"doy_mean", &row.Mean},
		{"value_to_median", &row.ValueToMedian},
		{"value_to_mean", &row.ValueToMean},
		{"capacity", &row.Capacity},
		{"fraction_full", &row.FractionFull},
	}
	for _, o := range optional {
		if *o.dst, err = rec.optionalFloat(o.col); err != nil {
			return row, err
		}
	}

	if s := rec.get("data_date"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			return row, fmt.Errorf("report line %d: %w", rec.line, err)
		}
		row.DataDate = &d
	}
	if row.DateQueried, err = domain.ParseDate(rec.get("date_queried")); err != nil {
		return row, fmt.Errorf("report line %d: %w", rec.line, err)
	}
	return row, nil
}
