// Package zone reconstructs the flight's declared airspace geometry from
// the free-text SHR body. Messages describe zones in at least three
// competing conventions: an exact circle (radius + center), a vertex list,
// or a bare designator cross-referenced against the zone-definitions
// dataset.
package zone

import (
	"strconv"
	"strings"

	"telegram_parser/internal/patterns"
	"telegram_parser/internal/refdata"
	"telegram_parser/internal/telegram"
)

// zoneFormats are tried in declaration order. The order matters: the exact
// circle syntax must be checked before the permissive polygon scan, which
// would otherwise greedily consume the circle's center coordinate, and the
// polygon scan before the designator match, which a vertex list would
// never reach anyway but a circle without its slashes might.
var zoneFormats = []patterns.Format{
	{
		Name:    "circle",
		Pattern: `/ZONA (ZONA )?(?P<radius>{RADIUS})\s?(?P<center>{COORD})/`,
		Fields:  []string{"radius", "center"},
	},
	{
		// Vertex digit groups are looser than the strict codec on
		// purpose: a malformed 5-digit latitude still belongs to the
		// vertex run and must be consumed (then skipped on decode)
		// rather than split the run in two.
		Name:    "polygon",
		Pattern: `(?i)ZONA\s+(?P<vertices>(?:\d{4,6}[NS]\d{5,7}[EW]\s*)+)`,
		Fields:  []string{"vertices"},
	},
	{
		Name:    "named",
		Pattern: `(?i)/ZONA\s+(?P<code>{ZONECODE})\s*/`,
		Fields:  []string{"code"},
	},
}

// vertexFormats back the repeated-token scan over a captured vertex run.
// Kept separate from zoneFormats so the bare coordinate never competes
// with the whole-zone recognizers in first-match dispatch.
var vertexFormats = []patterns.Format{
	{
		Name:    "vertex",
		Pattern: `(?P<vertex>\d{4,6}[NS]\d{5,7}[EW])`,
		Fields:  []string{"vertex"},
	},
}

// Extractor recognizes zone declarations in SHR text.
type Extractor struct {
	compiler *patterns.Compiler
	vertices *patterns.Compiler
	refdata  *refdata.Directory
}

// NewExtractor builds an Extractor backed by the given reference data.
func NewExtractor(dir *refdata.Directory) *Extractor {
	return &Extractor{
		compiler: patterns.NewCompiler(zoneFormats, nil).MustCompile(),
		vertices: patterns.NewCompiler(vertexFormats, nil).MustCompile(),
		refdata:  dir,
	}
}

// Extract parses the first zone declaration found in the SHR text. It never
// fails: text with no recognizable declaration yields the unknown zone.
func (e *Extractor) Extract(shrText string) telegram.Zone {
	if strings.TrimSpace(shrText) == "" {
		return telegram.UnknownZone()
	}

	text := patterns.NormalizeDirections(shrText)

	m := e.compiler.Parse(text)
	if m == nil {
		return telegram.UnknownZone()
	}

	switch m.FormatName {
	case "circle":
		return e.circleZone(m)
	case "polygon":
		return e.polygonZone(m)
	case "named":
		return e.namedZone(m)
	}
	return telegram.UnknownZone()
}

func (e *Extractor) circleZone(m *patterns.Match) telegram.Zone {
	lat, lon, ok := patterns.ParseLatLon(m.GetCapture("center", ""))
	if !ok {
		return telegram.UnknownZone()
	}

	radius := strings.TrimPrefix(m.GetCapture("radius", ""), "R")
	radius = strings.ReplaceAll(radius, ",", ".")
	r, err := strconv.ParseFloat(radius, 64)
	if err != nil {
		return telegram.UnknownZone()
	}

	return telegram.Zone{
		Type:     telegram.ZoneCircle,
		Center:   &telegram.Point{Lat: lat, Lon: lon},
		RadiusNM: r,
	}
}

func (e *Extractor) polygonZone(m *patterns.Match) telegram.Zone {
	var vertices []telegram.Point
	for _, caps := range e.vertices.FindAllMatches(m.GetCapture("vertices", ""), "vertex") {
		lat, lon, ok := patterns.ParseLatLon(caps["vertex"])
		if !ok {
			continue // malformed vertex, keep the rest
		}
		vertices = append(vertices, telegram.Point{Lat: lat, Lon: lon})
	}

	if len(vertices) == 0 {
		return telegram.UnknownZone()
	}
	return telegram.Zone{
		Type:     telegram.ZonePolygon,
		Vertices: vertices,
	}
}

func (e *Extractor) namedZone(m *patterns.Match) telegram.Zone {
	name := strings.TrimSpace(m.GetCapture("code", ""))
	if name == "" {
		return telegram.UnknownZone()
	}

	z := telegram.Zone{
		Type: telegram.ZoneNamed,
		Name: name,
	}
	if subzones, ok := e.refdata.NamedZone(name); ok {
		z.Subzones = subzones
	}
	return z
}
