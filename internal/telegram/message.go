// Package telegram provides the data model for SHR/DEP/ARR flight-plan
// telegrams and the records extracted from them.
package telegram

import "time"

// Triplet is one spreadsheet row: the three message bodies for a single
// flight plan, plus the originating ATM center label. SHR is the flight
// plan itself and is required; DEP and ARR are the departure and arrival
// reports and are frequently missing.
type Triplet struct {
	Center string `json:"center"`
	SHR    string `json:"shr"`
	DEP    string `json:"dep,omitempty"`
	ARR    string `json:"arr,omitempty"`
}

// Point is a position in signed decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ZoneType discriminates the airspace geometry variants found in SHR text.
type ZoneType string

const (
	ZoneCircle  ZoneType = "circle"
	ZonePolygon ZoneType = "polygon"
	ZoneNamed   ZoneType = "named"
	ZoneUnknown ZoneType = "unknown"
)

// Subzone is one element of a named zone's definition from the reference
// dataset. Either Center/RadiusNM or Vertices is populated depending on Type.
type Subzone struct {
	Type     ZoneType `json:"type"`
	Center   *Point   `json:"center,omitempty"`
	RadiusNM float64  `json:"radius_nm,omitempty"`
	Vertices []Point  `json:"vertices,omitempty"`
}

// Zone is the restricted-airspace geometry declared for the flight.
// Exactly one variant's fields are set, selected by Type.
type Zone struct {
	Type     ZoneType  `json:"type"`
	Center   *Point    `json:"center,omitempty"`
	RadiusNM float64   `json:"radius_nm,omitempty"`
	Vertices []Point   `json:"vertices,omitempty"`
	Name     string    `json:"name,omitempty"`
	Subzones []Subzone `json:"subzones,omitempty"`
}

// UnknownZone is the zero result when no recognizer matched.
func UnknownZone() Zone { return Zone{Type: ZoneUnknown} }

// RepresentativePoint returns a single coordinate standing in for the zone:
// the circle center, the polygon's first vertex, or the first resolvable
// point of a named zone's subzones.
func (z Zone) RepresentativePoint() (Point, bool) {
	switch z.Type {
	case ZoneCircle:
		if z.Center != nil {
			return *z.Center, true
		}
	case ZonePolygon:
		if len(z.Vertices) > 0 {
			return z.Vertices[0], true
		}
	case ZoneNamed:
		for _, sz := range z.Subzones {
			if sz.Center != nil {
				return *sz.Center, true
			}
			if len(sz.Vertices) > 0 {
				return sz.Vertices[0], true
			}
		}
	}
	return Point{}, false
}

// UnresolvedRegionName is stored when the locator finds no region even
// after the radial fallback. Geocoding failure is never fatal.
const UnresolvedRegionName = "unresolved"

// Endpoint is the departure or arrival half of a flight record.
// Nil Lat/Lon means the coordinate could not be resolved by any step of
// the fallback chain.
type Endpoint struct {
	Date          string   `json:"date,omitempty"` // YYYY-MM-DD
	TimeHHMM      string   `json:"time_hhmm,omitempty"`
	Lat           *float64 `json:"lat"`
	Lon           *float64 `json:"lon"`
	AerodromeCode string   `json:"aerodrome_code,omitempty"`
	AerodromeName string   `json:"aerodrome_name,omitempty"`
}

// HasPosition reports whether both coordinates are present.
func (e Endpoint) HasPosition() bool { return e.Lat != nil && e.Lon != nil }

// FlightRecord is the normalized output of parsing one telegram triplet.
// It is built once by the parser and never mutated afterwards.
type FlightRecord struct {
	ID           string `json:"id"` // row UUID, distinct from SID
	SID          string `json:"sid"`
	FlightID     string `json:"flight_id,omitempty"`
	Registration string `json:"registration,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`
	Operator     string `json:"operator,omitempty"`
	CenterName   string `json:"center_name,omitempty"`

	Dep Endpoint `json:"dep"`
	Arr Endpoint `json:"arr"`

	StartTS     *time.Time `json:"start_ts"`
	EndTS       *time.Time `json:"end_ts"`
	DurationMin *int       `json:"duration_min"`

	MinAltM *int     `json:"min_altitude_m,omitempty"`
	MaxAltM *int     `json:"max_altitude_m,omitempty"`
	Phones  []string `json:"phone_numbers,omitempty"`

	Zone Zone `json:"zone"`

	RegionID   *int64 `json:"region_id"`
	RegionName string `json:"region_name"`

	RawSHR string `json:"raw_shr,omitempty"`
	RawDEP string `json:"raw_dep,omitempty"`
	RawARR string `json:"raw_arr,omitempty"`
}
