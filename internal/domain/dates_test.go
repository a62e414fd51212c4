package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange_Chunks(t *testing.T) {
	r := DateRange{Start: Date(1990, time.October, 1), End: Date(1993, time.March, 15)}

	chunks := r.Chunks(1)
	require.Len(t, chunks, 3)
	assert.Equal(t, DateRange{Start: Date(1990, time.October, 1), End: Date(1991, time.September, 30)}, chunks[0])
	assert.Equal(t, DateRange{Start: Date(1991, time.October, 1), End: Date(1992, time.September, 30)}, chunks[1])
	assert.Equal(t, DateRange{Start: Date(1992, time.October, 1), End: Date(1993, time.March, 15)}, chunks[2])

	assert.Equal(t, []DateRange{r}, r.Chunks(0))
}

func TestDateRange_DaysAndContains(t *testing.T) {
	r := DateRange{Start: Date(2024, time.February, 27), End: Date(2024, time.March, 1)}
	assert.Equal(t, 4, r.Days())
	assert.True(t, r.Contains(time.Date(2024, time.March, 1, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(Date(2024, time.March, 2)))
	assert.Equal(t, "2024-02-27/2024-03-01", r.String())
	assert.Equal(t, 0, DateRange{Start: r.End, End: r.Start}.Days())
}

func TestLookback(t *testing.T) {
	r := Lookback(Date(2025, time.January, 3), 7)
	assert.Equal(t, Date(2024, time.December, 27), r.Start)
	assert.Equal(t, 8, r.Days())
	assert.Equal(t, 1, Lookback(Date(2025, 1, 3), -2).Days())
}

func TestCivilDateKeepsWrittenCalendarDay(t *testing.T) {
	pst := time.FixedZone("PST", -8*3600)
	got := CivilDate(time.Date(2024, time.January, 1, 23, 30, 0, 0, pst))
	assert.Equal(t, Date(2024, time.January, 1), got)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2020-09-30")
	require.NoError(t, err)
	assert.Equal(t, Date(2020, time.September, 30), d)

	_, err = ParseDate("09/30/2020")
	assert.Error(t, err)
}

func TestToday_UsesClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.January, 15, 23, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, Date(2025, time.January, 15), Today())
}
