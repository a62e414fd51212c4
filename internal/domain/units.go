package domain

import (
	"fmt"
	"strings"
)

// Controlled unit vocabulary.
const (
	UnitAcreFeet = "af"
	UnitFeet     = "ft"
)

var unitAliases = map[string]string{
	"af":        UnitAcreFeet,
	"acft":      UnitAcreFeet,
	"ac-ft":     UnitAcreFeet,
	"acre-ft":   UnitAcreFeet,
	"acre-feet": UnitAcreFeet,
	"acre feet": UnitAcreFeet,
	"acre ft":   UnitAcreFeet,
	"ft":        UnitFeet,
	"ft.":       UnitFeet,
	"feet":      UnitFeet,
}

// NormalizeUnit maps a raw upstream unit string onto the controlled
// vocabulary. Blank units default by data type. Unrecognized units are a
// malformed response: guessing would mix units inside one location's history.
func NormalizeUnit(raw string, dataType DataType) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		if dataType == DataElevation {
			return UnitFeet, nil
		}
		return UnitAcreFeet, nil
	}
	if norm, ok := unitAliases[u]; ok {
		return norm, nil
	}
	return "", fmt.Errorf("%w: unrecognized unit %q", ErrMalformedResponse, raw)
}

// IsNormalizedUnit reports whether u belongs to the controlled vocabulary.
func IsNormalizedUnit(u string) bool {
	return u == UnitAcreFeet || u == UnitFeet
}
