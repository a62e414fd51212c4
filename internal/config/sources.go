package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// applySourcesFile overlays non-zero fields from a YAML document onto s.
//
//	usgs:
//	  elevation_parameter_codes: ["62615", "00062"]
//	cdec:
//	  sensor: 15
func applySourcesFile(s *Sources, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var override Sources
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&s.RISE.BaseURL, override.RISE.BaseURL)
	setString(&s.USACE.BaseURL, override.USACE.BaseURL)
	setInt(&s.USACE.ChunkYears, override.USACE.ChunkYears)
	setString(&s.USGS.BaseURL, override.USGS.BaseURL)
	setString(&s.USGS.StorageParameterCode, override.USGS.StorageParameterCode)
	if len(override.USGS.ElevationParameterCodes) > 0 {
		s.USGS.ElevationParameterCodes = override.USGS.ElevationParameterCodes
	}
	setInt(&s.USGS.PageLimit, override.USGS.PageLimit)
	setString(&s.CDEC.BaseURL, override.CDEC.BaseURL)
	setString(&s.CDEC.UserAgent, override.CDEC.UserAgent)
	setInt(&s.CDEC.Sensor, override.CDEC.Sensor)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
