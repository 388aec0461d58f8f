// Package geo resolves a coordinate into an administrative region by
// point-in-polygon lookup against a GeoJSON boundary collection.
package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a resolved administrative region.
type Region struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	NameLatin string `json:"name_latin,omitempty"`
}

type boundary struct {
	bound  orb.Bound
	geom   orb.Geometry
	region Region
}

// Locator answers point-in-region queries. It is read-only after New and
// safe for concurrent use.
type Locator struct {
	boundaries []boundary
}

// searchDirections are the eight compass offsets tried by LocateNear.
var searchDirections = [8][2]float64{
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

// DefaultSearchRadii is the widening schedule for LocateNear, in degrees.
// Small steps first so a point just offshore or on a boundary snaps to its
// true neighbor before the coarse steps can reach a farther region.
var DefaultSearchRadii = []float64{0.01, 0.05, 0.1, 0.15, 0.2, 0.25, 0.5, 1, 2, 3, 5}

// New loads the region boundaries. Unlike the soft-failing reference
// datasets, a missing or malformed boundary file is an error the caller
// should treat as fatal: every record would otherwise silently come out
// unresolved and corrupt downstream statistics.
func New(geojsonPath string) (*Locator, error) {
	data, err := os.ReadFile(geojsonPath)
	if err != nil {
		return nil, fmt.Errorf("read region boundaries: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode region boundaries: %w", err)
	}

	return NewFromFeatures(fc)
}

// NewFromFeatures builds a Locator from an already-decoded collection.
func NewFromFeatures(fc *geojson.FeatureCollection) (*Locator, error) {
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("region boundary collection is empty")
	}

	l := &Locator{boundaries: make([]boundary, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("region feature %d has no geometry", i)
		}
		l.boundaries = append(l.boundaries, boundary{
			bound: f.Geometry.Bound(),
			geom:  f.Geometry,
			region: Region{
				ID:        int64(f.Properties.MustInt("cartodb_id", 0)),
				Name:      f.Properties.MustString("name", ""),
				NameLatin: f.Properties.MustString("name_latin", ""),
			},
		})
	}
	return l, nil
}

// Locate returns the region containing the point, or ok=false when the
// point falls outside every boundary.
func (l *Locator) Locate(lat, lon float64) (Region, bool) {
	p := orb.Point{lon, lat}
	for _, b := range l.boundaries {
		if !b.bound.Contains(p) {
			continue
		}
		if geometryContains(b.geom, p) {
			return b.region, true
		}
	}
	return Region{}, false
}

// LocateNear is Locate with a widening radial fallback: when the exact
// point misses (coastline coordinate, boundary rounding, typo in the last
// minute digit) it probes eight compass directions at each radius of the
// schedule and returns the first hit.
func (l *Locator) LocateNear(lat, lon float64, radii []float64) (Region, bool) {
	if r, ok := l.Locate(lat, lon); ok {
		return r, true
	}
	if radii == nil {
		radii = DefaultSearchRadii
	}
	for _, delta := range radii {
		for _, dir := range searchDirections {
			if r, ok := l.Locate(lat+dir[0]*delta, lon+dir[1]*delta); ok {
				return r, true
			}
		}
	}
	return Region{}, false
}

// Count reports the number of loaded boundaries, for startup logging.
func (l *Locator) Count() int { return len(l.boundaries) }

// Regions enumerates every region in the boundary dataset, in feature
// order. Used to mirror the dataset into the regions reference table.
func (l *Locator) Regions() []Region {
	regions := make([]Region, len(l.boundaries))
	for i, b := range l.boundaries {
		regions[i] = b.region
	}
	return regions
}

func geometryContains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	default:
		return false
	}
}
