package domain

import (
	"fmt"
	"sort"
)

// CurvePoint is one (elevation, storage) control point.
type CurvePoint struct {
	Elevation float64 `json:"elevation"`
	Storage   float64 `json:"storage"`
}

// ElevationCurve maps elevation to storage for one location.
type ElevationCurve struct {
	LocationID string
	Points     []CurvePoint
}

// ElevationConverter converts elevation readings to storage by piecewise
// linear interpolation over each location's curve.
type ElevationConverter struct {
	curves map[string][]CurvePoint
}

// NewElevationConverter validates and indexes curves. Points are sorted by
// elevation; duplicate elevations are a configuration error.
func NewElevationConverter(curves []ElevationCurve) (*ElevationConverter, error) {
	c := &ElevationConverter{curves: make(map[string][]CurvePoint, len(curves))}
	for _, curve := range curves {
		if len(curve.Points) == 0 {
			continue
		}
		points := append(c.curves[curve.LocationID], curve.Points...)
		sort.SliceStable(points, func(i, j int) bool { return points[i].Elevation < points[j].Elevation })
		for i := 1; i < len(points); i++ {
			if points[i].Elevation <= points[i-1].Elevation {
				return nil, fmt.Errorf("%w: curve for %s repeats elevation %g",
					ErrConfiguration, curve.LocationID, points[i].Elevation)
			}
		}
		c.curves[curve.LocationID] = points
	}
	return c, nil
}

// HasCurve reports whether a curve exists for the location.
func (c *ElevationConverter) HasCurve(locationID string) bool {
	if c == nil {
		return false
	}
	return len(c.curves[locationID]) > 0
}

// Convert returns the storage for an elevation. Elevations outside the curve
// clamp to the boundary storage; nothing is extrapolated.
func (c *ElevationConverter) Convert(locationID string, elevation float64) (float64, error) {
	if !c.HasCurve(locationID) {
		return 0, fmt.Errorf("%w: %s", ErrMissingCurve, locationID)
	}
	points := c.curves[locationID]

	first, last := points[0], points[len(points)-1]
	if elevation <= first.Elevation {
		return first.Storage, nil
	}
	if elevation >= last.Elevation {
		return last.Storage, nil
	}

	// First point strictly above elevation; i >= 1 given the clamps above.
	i := sort.Search(len(points), func(i int) bool { return points[i].Elevation > elevation })
	lo, hi := points[i-1], points[i]
	frac := (elevation - lo.Elevation) / (hi.Elevation - lo.Elevation)
	return lo.Storage + frac*(hi.Storage-lo.Storage), nil
}

// ConvertSeries converts every observation to storage and relabels the unit.
func (c *ElevationConverter) ConvertSeries(locationID string, obs []Observation) ([]Observation, error) {
	if !c.HasCurve(locationID) {
		return nil, fmt.Errorf("%w: %s", ErrMissingCurve, locationID)
	}
	out := make([]Observation, len(obs))
	for i, o := range obs {
		storage, err := c.Convert(locationID, o.Value)
		if err != nil {
			return nil, err
		}
		o.Value = storage
		o.Unit = UnitAcreFeet
		out[i] = o
	}
	return out, nil
}
