package upstream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"20060102 1504",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp accepts the date and datetime forms the upstream APIs emit.
// The offset, when present, is preserved so callers can take the calendar
// date as written.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized timestamp %q", domain.ErrMalformedResponse, s)
}

// ParseValue parses a numeric cell. ok is false for the missing-value markers
// (blank, null, NaN, ---) and for anything that is not a finite number.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "nan", "---", "n/a":
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// HeaderIndex maps each wanted column to its position in header, matching
// case-insensitively and ignoring surrounding whitespace. The first name in
// each alias group that is present wins. Missing groups are an error.
func HeaderIndex(header []string, groups map[string][]string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}

	out := make(map[string]int, len(groups))
	for name, aliases := range groups {
		found := false
		for _, alias := range aliases {
			if i, ok := pos[strings.ToLower(alias)]; ok {
				out[name] = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: missing column %q in header %v", domain.ErrMalformedResponse, name, header)
		}
	}
	return out, nil
}
