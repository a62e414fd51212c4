// Package domain models reservoir storage observations and the historical
// statistics that daily condition reports compare them against.
//
// # Data Sources
//
// Storage observations come from four government time-series APIs, each with
// its own wire format and identifier scheme:
//
//	RISE   Bureau of Reclamation, EDR-style items endpoint, CSV rows of
//	       datetime,value,unit. The datetime range end bound is exclusive.
//	USACE  Corps of Engineers CWMS, identifier "provider/timeseries_name",
//	       text body of "#" metadata lines followed by datetime,value lines.
//	       Sub-daily readings.
//	USGS   Daily-values OGC collection keyed by site number and parameter code.
//	CDEC   California Data Exchange Center CSV servlet keyed by a 3-letter
//	       station code and sensor number.
//
// Adapters normalize all four into [Observation] values carrying one value per
// location per civil date, in a unit from a small controlled vocabulary
// ([UnitAcreFeet], [UnitFeet]). Units are normalized at the adapter boundary;
// nothing downstream inspects raw upstream unit strings.
//
// # Calendar Conventions
//
// Dates are civil dates represented as [time.Time] at UTC midnight. A water
// year runs from October 1 through September 30 and is labeled by the calendar
// year in which it ends: 1990-10-01 falls in water year 1991. The baseline
// window covers water years 1991 through 2020.
//
// Day-of-year statistics group observations by (month, day), not by ordinal
// day of year, so every January 1 lands in the same group regardless of leap
// years and February 29 forms its own group populated only by leap years.
//
// # Percentiles
//
// Percentiles use Hyndman-Fan type 7: linear interpolation between order
// statistics with h = (n-1)p. This is the default of R's quantile() and
// NumPy's "linear" method. See [Percentile].
//
// # Missing Values
//
// A missing value is never an error. Resolvers return ok=false, ratios are nil
// when either operand is missing or the denominator is zero, and report rows
// render missing fields as empty strings so the row count always equals the
// roster size.
package domain
