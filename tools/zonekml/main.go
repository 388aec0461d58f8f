// Package main provides a tool to export flight zones and endpoints to KML
// format. KML files can be viewed in Google Earth, Google Maps, and other
// mapping applications.
//
// Input is either a JSON records file produced by `telegram_parser import
// -output`, or a local SQLite store produced with `-sqlite`.
package main

import (
	"encoding/json"
	"encoding/xml"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"telegram_parser/internal/storage"
	"telegram_parser/internal/telegram"
)

// KML structures for XML marshalling, following the KML 2.2 specification:
// https://developers.google.com/kml/documentation/kmlreference

type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

type Document struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []Style     `xml:"Style,omitempty"`
	Placemarks  []Placemark `xml:"Placemark"`
}

type Style struct {
	ID        string     `xml:"id,attr"`
	LineStyle *LineStyle `xml:"LineStyle,omitempty"`
	PolyStyle *PolyStyle `xml:"PolyStyle,omitempty"`
}

type LineStyle struct {
	Color string  `xml:"color"`
	Width float64 `xml:"width"`
}

type PolyStyle struct {
	Color string `xml:"color"`
	Fill  int    `xml:"fill"`
}

type Placemark struct {
	Name         string        `xml:"name"`
	Description  string        `xml:"description,omitempty"`
	StyleURL     string        `xml:"styleUrl,omitempty"`
	Point        *Point        `xml:"Point,omitempty"`
	Polygon      *Polygon      `xml:"Polygon,omitempty"`
	ExtendedData *ExtendedData `xml:"ExtendedData,omitempty"`
}

type Point struct {
	Coordinates string `xml:"coordinates"` // lon,lat,altitude
}

type Polygon struct {
	OuterBoundary OuterBoundary `xml:"outerBoundaryIs"`
}

type OuterBoundary struct {
	LinearRing LinearRing `xml:"LinearRing"`
}

type LinearRing struct {
	Coordinates string `xml:"coordinates"`
}

type ExtendedData struct {
	Data []Data `xml:"Data"`
}

type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

func main() {
	records := flag.String("records", "", "JSON records file from 'telegram_parser import -output'")
	sqlitePath := flag.String("sqlite", "", "Local SQLite store")
	output := flag.String("output", "", "Output KML file (default: stdout)")
	endpoints := flag.Bool("endpoints", true, "Include departure/arrival placemarks")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	recs, err := loadRecords(*records, *sqlitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading records: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "No flight records found")
		os.Exit(0)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d flights to KML\n", len(recs))
	}

	kml := generateKML(recs, *endpoints)

	xmlData, err := xml.MarshalIndent(kml, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating KML: %v\n", err)
		os.Exit(1)
	}
	xmlOutput := xml.Header + string(xmlData)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(xmlOutput), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
		}
	} else {
		fmt.Println(xmlOutput)
	}
}

func loadRecords(recordsPath, sqlitePath string) ([]*telegram.FlightRecord, error) {
	switch {
	case recordsPath != "":
		data, err := os.ReadFile(recordsPath)
		if err != nil {
			return nil, err
		}
		var recs []*telegram.FlightRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", recordsPath, err)
		}
		return recs, nil

	case sqlitePath != "":
		db, err := storage.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.ListFlights()

	default:
		return nil, fmt.Errorf("one of -records or -sqlite is required")
	}
}

func generateKML(recs []*telegram.FlightRecord, endpoints bool) KML {
	var placemarks []Placemark
	for _, rec := range recs {
		placemarks = append(placemarks, zonePlacemarks(rec)...)
		if endpoints {
			placemarks = append(placemarks, endpointPlacemarks(rec)...)
		}
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name:        "Flight zones",
			Description: fmt.Sprintf("Airspace zones and endpoints from %d parsed flight plans.", len(recs)),
			Styles: []Style{
				{
					ID:        "zoneStyle",
					LineStyle: &LineStyle{Color: "ff0000ff", Width: 2},
					PolyStyle: &PolyStyle{Color: "400000ff", Fill: 1},
				},
			},
			Placemarks: placemarks,
		},
	}
}

func zonePlacemarks(rec *telegram.FlightRecord) []Placemark {
	z := rec.Zone
	desc := flightDescription(rec)

	switch z.Type {
	case telegram.ZoneCircle:
		if z.Center == nil {
			return nil
		}
		return []Placemark{{
			Name:        rec.SID + " zone",
			Description: desc,
			StyleURL:    "#zoneStyle",
			Polygon:     circleRing(*z.Center, z.RadiusNM),
			ExtendedData: &ExtendedData{Data: []Data{
				{Name: "zone_type", Value: string(z.Type)},
				{Name: "radius_nm", Value: fmt.Sprintf("%.2f", z.RadiusNM)},
			}},
		}}

	case telegram.ZonePolygon:
		if len(z.Vertices) < 3 {
			return nil
		}
		return []Placemark{{
			Name:        rec.SID + " zone",
			Description: desc,
			StyleURL:    "#zoneStyle",
			Polygon:     polygonRing(z.Vertices),
			ExtendedData: &ExtendedData{Data: []Data{
				{Name: "zone_type", Value: string(z.Type)},
			}},
		}}

	case telegram.ZoneNamed:
		var out []Placemark
		for i, sz := range z.Subzones {
			pm := Placemark{
				Name:        fmt.Sprintf("%s zone %s/%d", rec.SID, z.Name, i+1),
				Description: desc,
				StyleURL:    "#zoneStyle",
				ExtendedData: &ExtendedData{Data: []Data{
					{Name: "zone_type", Value: string(z.Type)},
					{Name: "zone_name", Value: z.Name},
				}},
			}
			switch {
			case sz.Center != nil && sz.RadiusNM > 0:
				pm.Polygon = circleRing(*sz.Center, sz.RadiusNM)
			case sz.Center != nil:
				pm.Point = &Point{Coordinates: coord(*sz.Center)}
			case len(sz.Vertices) >= 3:
				pm.Polygon = polygonRing(sz.Vertices)
			default:
				continue
			}
			out = append(out, pm)
		}
		return out
	}
	return nil
}

func endpointPlacemarks(rec *telegram.FlightRecord) []Placemark {
	var out []Placemark
	for _, ep := range []struct {
		label string
		e     telegram.Endpoint
	}{
		{"departure", rec.Dep},
		{"arrival", rec.Arr},
	} {
		if !ep.e.HasPosition() {
			continue
		}
		out = append(out, Placemark{
			Name:        rec.SID + " " + ep.label,
			Description: flightDescription(rec),
			Point: &Point{Coordinates: coord(telegram.Point{
				Lat: *ep.e.Lat, Lon: *ep.e.Lon,
			})},
			ExtendedData: &ExtendedData{Data: []Data{
				{Name: "aerodrome", Value: ep.e.AerodromeCode},
				{Name: "time", Value: ep.e.TimeHHMM},
			}},
		})
	}
	return out
}

func flightDescription(rec *telegram.FlightRecord) string {
	parts := []string{"SID: " + rec.SID}
	if rec.AircraftType != "" {
		parts = append(parts, "Type: "+rec.AircraftType)
	}
	if rec.Operator != "" {
		parts = append(parts, "Operator: "+rec.Operator)
	}
	parts = append(parts, "Region: "+rec.RegionName)
	return strings.Join(parts, "\n")
}

func coord(p telegram.Point) string {
	return fmt.Sprintf("%.6f,%.6f,0", p.Lon, p.Lat)
}

// circleRing approximates the circle with a 36-point ring. One nautical
// mile is one minute of latitude; longitude minutes shrink with cos(lat).
func circleRing(center telegram.Point, radiusNM float64) *Polygon {
	if radiusNM <= 0 {
		radiusNM = 0.1
	}
	radLat := radiusNM / 60.0
	radLon := radLat / math.Cos(center.Lat*math.Pi/180)

	var sb strings.Builder
	const steps = 36
	for i := 0; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		lat := center.Lat + radLat*math.Sin(a)
		lon := center.Lon + radLon*math.Cos(a)
		fmt.Fprintf(&sb, "%.6f,%.6f,0 ", lon, lat)
	}
	return &Polygon{OuterBoundary: OuterBoundary{LinearRing: LinearRing{
		Coordinates: strings.TrimSpace(sb.String()),
	}}}
}

func polygonRing(vertices []telegram.Point) *Polygon {
	var sb strings.Builder
	for _, v := range vertices {
		sb.WriteString(coord(v))
		sb.WriteByte(' ')
	}
	// Close the ring.
	sb.WriteString(coord(vertices[0]))
	return &Polygon{OuterBoundary: OuterBoundary{LinearRing: LinearRing{
		Coordinates: sb.String(),
	}}}
}
