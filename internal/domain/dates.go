package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for civil dates.
const DateLayout = "2006-01-02"

// Date builds a civil date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate drops the clock portion of t, keeping the calendar date as
// written in t's own offset.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// DateKey formats a civil date for use as a map key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, ignoring clock time.
func (r DateRange) Contains(t time.Time) bool {
	d := CivilDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of civil dates in the range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return DateKey(r.Start) + "/" + DateKey(r.End)
}

// Lookback returns [target-windowDays, target].
func Lookback(target time.Time, windowDays int) DateRange {
	if windowDays < 0 {
		windowDays = 0
	}
	t := CivilDate(target)
	return DateRange{Start: t.AddDate(0, 0, -windowDays), End: t}
}

// Chunks splits the range into consecutive pieces of at most the given number
// of years. A non-positive size returns the range unchanged.
func (r DateRange) Chunks(years int) []DateRange {
	if years <= 0 || r.End.Before(r.Start) {
		return []DateRange{r}
	}
	var chunks []DateRange
	for start := r.Start; !start.After(r.End); {
		end := start.AddDate(years, 0, -1)
		if end.After(r.End) {
			end = r.End
		}
		chunks = append(chunks, DateRange{Start: start, End: end})
		start = end.AddDate(0, 0, 1)
	}
	return chunks
}
