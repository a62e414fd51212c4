package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaterYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{Date(1990, time.October, 1), 1991},
		{Date(1990, time.September, 30), 1990},
		{Date(2020, time.September, 30), 2020},
		{Date(2020, time.December, 31), 2021},
		{Date(2021, time.January, 1), 2021},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WaterYear(tt.date), DateKey(tt.date))
	}
}

func fullWindow() DateRange {
	return DateRange{Start: Date(1990, time.October, 1), End: Date(2020, time.September, 30)}
}

func TestCoverageFilter_GapFreeBaselineHasThirtyWaterYears(t *testing.T) {
	window := fullWindow()
	b := NewBaseline(window)
	var obs []Observation
	for d := window.Start; !d.After(window.End); d = d.AddDate(0, 0, 1) {
		obs = append(obs, obsOn(testSite, d, 1))
	}
	b.Merge(obs)

	assert.Equal(t, 30, CountWaterYears(b.Observations(testSite)))
	assert.True(t, CoverageFilter{MinWaterYears: 20}.Admit(b, testSite))
	assert.True(t, CoverageFilter{MinWaterYears: 30}.Admit(b, testSite))
	assert.False(t, CoverageFilter{MinWaterYears: 31}.Admit(b, testSite))
}

func TestCoverageFilter_Threshold(t *testing.T) {
	b := NewBaseline(fullWindow())
	for wy := 2006; wy <= 2020; wy++ {
		b.Merge([]Observation{obsOn(testSite, Date(wy, time.March, 1), 1)})
	}
	filter := CoverageFilter{MinWaterYears: 20}

	assert.Equal(t, 15, CountWaterYears(b.Observations(testSite)))
	assert.False(t, filter.Admit(b, testSite))
	assert.True(t, CoverageFilter{MinWaterYears: 15}.Admit(b, testSite))
	assert.False(t, filter.Admit(b, "absent"))
}

func TestCoverageFilter_OctoberCountsTowardNextWaterYear(t *testing.T) {
	obs := []Observation{
		obsOn(testSite, Date(2000, time.September, 30), 1),
		obsOn(testSite, Date(2000, time.October, 1), 1),
	}
	assert.Equal(t, 2, CountWaterYears(obs))
}

func TestStatsPeriodLabel(t *testing.T) {
	assert.Equal(t, "WY1991-WY2020", StatsPeriodLabel(fullWindow()))
}
