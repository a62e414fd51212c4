package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		raw      string
		dataType DataType
		want     string
	}{
		{"acre-ft", DataStorage, UnitAcreFeet},
		{"Acre-Ft", DataStorage, UnitAcreFeet},
		{"ac-ft", DataStorage, UnitAcreFeet},
		{"AF", DataStorage, UnitAcreFeet},
		{" acre feet ", DataStorage, UnitAcreFeet},
		{"ft", DataElevation, UnitFeet},
		{"FEET", DataElevation, UnitFeet},
		{"", DataStorage, UnitAcreFeet},
		{"", DataElevation, UnitFeet},
	}
	for _, tt := range tests {
		got, err := NormalizeUnit(tt.raw, tt.dataType)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.True(t, IsNormalizedUnit(got))
	}
}

func TestNormalizeUnit_Unrecognized(t *testing.T) {
	_, err := NormalizeUnit("cfs", DataStorage)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsNormalizedUnit("Acre-Ft"))
}

func TestParseSourceAndDataType(t *testing.T) {
	assert.Equal(t, SourceRISE, ParseSourceType(" RISE "))
	assert.Equal(t, SourceUSACE, ParseSourceType("usace"))
	assert.Equal(t, SourceUSGS, ParseSourceType("USGS"))
	assert.Equal(t, SourceCDEC, ParseSourceType("cdec"))
	assert.Equal(t, SourceUnknown, ParseSourceType("nws"))

	dt, err := ParseDataType("")
	require.NoError(t, err)
	assert.Equal(t, DataStorage, dt)

	dt, err = ParseDataType("Elevation")
	require.NoError(t, err)
	assert.Equal(t, DataElevation, dt)

	_, err = ParseDataType("flow")
	assert.ErrorIs(t, err, ErrConfiguration)
}
