// Package refdata loads the static reference datasets consulted during
// telegram parsing: the aerodrome code directory and the named-zone
// definitions. Both are read once at startup into an immutable Directory
// that is passed into every parser call.
package refdata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"telegram_parser/internal/telegram"
)

// Aerodrome is one entry of the aerodrome code directory.
type Aerodrome struct {
	Code string
	Name string
	Lat  float64
	Lon  float64
}

// Directory holds the reference datasets. It is read-only after Load.
type Directory struct {
	aerodromes map[string]Aerodrome
	namedZones map[string][]telegram.Subzone
}

// aerodromeFile mirrors the aerodrome dataset layout:
// {"UUWW": {"title": "Внуково", "coords": [55.6, 37.27]}, ...}
type aerodromeFile map[string]struct {
	Title  string    `json:"title"`
	Coords []float64 `json:"coords"`
}

// zoneFile mirrors the zone-definitions dataset: a list of designators,
// each with its constituent circle/polygon subzones.
type zoneFile []struct {
	Designator string `json:"rvmname"`
	Zones      []struct {
		Type        string      `json:"type"`
		Center      []float64   `json:"center,omitempty"`
		RadiusNM    float64     `json:"radius_nm,omitempty"`
		Coordinates [][]float64 `json:"coordinates,omitempty"`
	} `json:"zones"`
}

// Load reads both datasets. A missing or unreadable file degrades to an
// empty lookup with a warning: the parser still works, every lookup just
// misses. This is deliberately softer than the region dataset, whose
// absence is fatal (see internal/geo).
func Load(aerodromePath, zonePath string, logger *slog.Logger) *Directory {
	d := &Directory{
		aerodromes: make(map[string]Aerodrome),
		namedZones: make(map[string][]telegram.Subzone),
	}

	if err := d.loadAerodromes(aerodromePath); err != nil {
		logger.Warn("aerodrome directory unavailable, lookups will miss",
			"path", aerodromePath, "error", err)
	}
	if err := d.loadZones(zonePath); err != nil {
		logger.Warn("zone definitions unavailable, named zones stay bare",
			"path", zonePath, "error", err)
	}

	return d
}

// NewDirectory builds a Directory from literal data, for tests.
func NewDirectory(aerodromes []Aerodrome, zones map[string][]telegram.Subzone) *Directory {
	d := &Directory{
		aerodromes: make(map[string]Aerodrome, len(aerodromes)),
		namedZones: make(map[string][]telegram.Subzone, len(zones)),
	}
	for _, a := range aerodromes {
		d.aerodromes[strings.ToUpper(a.Code)] = a
	}
	for name, sz := range zones {
		d.namedZones[strings.ToUpper(name)] = sz
	}
	return d
}

func (d *Directory) loadAerodromes(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file aerodromeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode aerodromes: %w", err)
	}

	for code, entry := range file {
		if len(entry.Coords) != 2 {
			continue
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		d.aerodromes[code] = Aerodrome{
			Code: code,
			Name: entry.Title,
			Lat:  entry.Coords[0],
			Lon:  entry.Coords[1],
		}
	}
	return nil
}

func (d *Directory) loadZones(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file zoneFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode zones: %w", err)
	}

	for _, entry := range file {
		name := strings.ToUpper(strings.TrimSpace(entry.Designator))
		if name == "" {
			continue
		}

		var subzones []telegram.Subzone
		for _, z := range entry.Zones {
			switch z.Type {
			case "circle":
				if len(z.Center) != 2 {
					continue
				}
				subzones = append(subzones, telegram.Subzone{
					Type:     telegram.ZoneCircle,
					Center:   &telegram.Point{Lat: z.Center[0], Lon: z.Center[1]},
					RadiusNM: z.RadiusNM,
				})
			case "polygon":
				var vertices []telegram.Point
				for _, c := range z.Coordinates {
					if len(c) == 2 {
						vertices = append(vertices, telegram.Point{Lat: c[0], Lon: c[1]})
					}
				}
				if len(vertices) > 0 {
					subzones = append(subzones, telegram.Subzone{
						Type:     telegram.ZonePolygon,
						Vertices: vertices,
					})
				}
			}
		}
		d.namedZones[name] = subzones
	}
	return nil
}

// Aerodrome resolves an aerodrome code. The ZZZZ filler code means "no
// aerodrome, see the coordinate field" and never resolves.
func (d *Directory) Aerodrome(code string) (Aerodrome, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "ZZZZ" {
		return Aerodrome{}, false
	}
	a, ok := d.aerodromes[code]
	return a, ok
}

// NamedZone resolves a zone designator to its subzone list. The boolean
// distinguishes an unknown designator from a known one with no geometry.
func (d *Directory) NamedZone(designator string) ([]telegram.Subzone, bool) {
	sz, ok := d.namedZones[strings.ToUpper(strings.TrimSpace(designator))]
	return sz, ok
}

// AerodromeCount reports directory size, for startup logging.
func (d *Directory) AerodromeCount() int { return len(d.aerodromes) }

// NamedZoneCount reports zone-definition count, for startup logging.
func (d *Directory) NamedZoneCount() int { return len(d.namedZones) }
