// Package flightplan turns one SHR/DEP/ARR telegram triplet into a
// normalized flight record: field extraction, timestamp combination,
// coordinate resolution and region geolocation.
package flightplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"telegram_parser/internal/geo"
	"telegram_parser/internal/patterns"
	"telegram_parser/internal/refdata"
	"telegram_parser/internal/telegram"
	"telegram_parser/internal/zone"
)

var (
	// ErrMissingSHR marks a row with no flight-plan message at all.
	ErrMissingSHR = errors.New("missing SHR message text")

	// ErrUnidentified marks a row whose messages yield neither a SID nor
	// a registration. Such a record cannot be keyed or deduplicated.
	ErrUnidentified = errors.New("no identifying field (sid or registration)")
)

// Parser builds flight records from telegram triplets. It holds only
// read-only reference data and is safe for concurrent use.
type Parser struct {
	refdata *refdata.Directory
	zones   *zone.Extractor
	locator *geo.Locator
	radii   []float64
}

// New builds a Parser. The locator may be nil, in which case every record
// comes out with the unresolved region sentinel; reference data must be
// present (possibly empty after a soft load failure).
func New(dir *refdata.Directory, locator *geo.Locator) *Parser {
	return &Parser{
		refdata: dir,
		zones:   zone.NewExtractor(dir),
		locator: locator,
		radii:   geo.DefaultSearchRadii,
	}
}

// SetSearchRadii overrides the radial-fallback schedule. The default is
// empirically tuned, not derived; callers with denser boundary data may
// want a shorter reach.
func (p *Parser) SetSearchRadii(radii []float64) { p.radii = radii }

// Parse builds one flight record from a telegram triplet. Field-level
// extraction failures null the field and keep going; only a missing SHR
// body or a completely unidentifiable row is an error.
func (p *Parser) Parse(centerName, shrText, depText, arrText string) (*telegram.FlightRecord, error) {
	shrText = telegram.CleanCellText(shrText)
	depText = telegram.CleanCellText(depText)
	arrText = telegram.CleanCellText(arrText)

	if shrText == "" {
		return nil, ErrMissingSHR
	}

	shr := telegram.ParseBlock(shrText)
	dep := telegram.ParseBlock(depText)
	arr := telegram.ParseBlock(arrText)

	rec := &telegram.FlightRecord{
		ID:         uuid.NewString(),
		CenterName: centerName,
		RawSHR:     shrText,
		RawDEP:     depText,
		RawARR:     arrText,
	}

	rec.SID = firstValue(dep.Get("SID"), arr.Get("SID"), shr.Get("SID"), patterns.ExtractSID(shrText))
	rec.Registration = firstValue(patterns.ExtractRegistration(shrText), dep.Get("REG"), arr.Get("REG"))
	if rec.SID == "" && rec.Registration == "" {
		return nil, ErrUnidentified
	}

	rec.AircraftType = firstValue(patterns.ExtractAircraftType(shrText), dep.Get("TYP"), arr.Get("TYP"))
	rec.Operator = firstValue(patterns.ExtractOperator(shrText), shr.Get("OPR"))
	rec.FlightID = patterns.ExtractFlightID(shrText)
	rec.Phones = patterns.ExtractPhones(shrText)

	if minM, maxM, ok := patterns.ExtractAltitudeRange(shrText); ok {
		rec.MinAltM, rec.MaxAltM = &minM, &maxM
	}

	p.resolveTimes(rec, dep, arr)

	rec.Zone = p.zones.Extract(shrText)

	p.resolveEndpoint(&rec.Dep, dep.Get("ADEP"), dep.Get("ADEPZ"),
		patterns.ExtractDepCoord(shrText), shrText, rec.Zone)
	p.resolveEndpoint(&rec.Arr, arr.Get("ADARR"), arr.Get("ADARRZ"),
		patterns.ExtractDestCoord(shrText), shrText, rec.Zone)

	p.resolveRegion(rec)

	return rec, nil
}

// resolveTimes combines the DEP block's ADD/ATD and the ARR block's
// ADA/ATA into start and end timestamps. An end before the start means the
// flight crossed midnight, so a day is added; that is a correction, not an
// error.
func (p *Parser) resolveTimes(rec *telegram.FlightRecord, dep, arr telegram.ParsedBlock) {
	depDate, depDateOK := patterns.ParseDateYYMMDD(dep.Get("ADD"))
	arrDate, arrDateOK := patterns.ParseDateYYMMDD(arr.Get("ADA"))
	depHH, depMM, depTimeOK := patterns.ParseTimeHHMM(dep.Get("ATD"))
	arrHH, arrMM, arrTimeOK := patterns.ParseTimeHHMM(arr.Get("ATA"))

	if depDateOK {
		rec.Dep.Date = depDate.Format("2006-01-02")
	}
	if arrDateOK {
		rec.Arr.Date = arrDate.Format("2006-01-02")
	}
	if depTimeOK {
		rec.Dep.TimeHHMM = hhmm(depHH, depMM)
	}
	if arrTimeOK {
		rec.Arr.TimeHHMM = hhmm(arrHH, arrMM)
	}

	if depDateOK && depTimeOK {
		ts := time.Date(depDate.Year(), depDate.Month(), depDate.Day(), depHH, depMM, 0, 0, time.UTC)
		rec.StartTS = &ts
	}
	if arrDateOK && arrTimeOK {
		ts := time.Date(arrDate.Year(), arrDate.Month(), arrDate.Day(), arrHH, arrMM, 0, 0, time.UTC)
		if rec.StartTS != nil && ts.Before(*rec.StartTS) {
			ts = ts.Add(24 * time.Hour)
		}
		rec.EndTS = &ts
	}

	if rec.StartTS != nil && rec.EndTS != nil {
		d := int(rec.EndTS.Sub(*rec.StartTS).Minutes())
		rec.DurationMin = &d
	}
}

// resolveEndpoint runs the coordinate fallback chain for one endpoint:
// aerodrome directory, then the block's own coordinate field, then the
// SHR DEP//DEST/ token, then the free-text takeoff-and-landing coordinate,
// then the zone's representative point. Each step runs only when the
// previous produced nothing; messages omit different subsets of fields
// depending on era and originating center.
func (p *Parser) resolveEndpoint(ep *telegram.Endpoint, aeroCode, blockCoord, shrCoord, shrText string, z telegram.Zone) {
	if a, ok := p.refdata.Aerodrome(aeroCode); ok {
		ep.AerodromeCode = a.Code
		ep.AerodromeName = a.Name
		setPos(ep, a.Lat, a.Lon)
		return
	}

	if lat, lon, ok := patterns.FindLatLon(blockCoord); ok {
		setPos(ep, lat, lon)
		return
	}

	if lat, lon, ok := patterns.ParseLatLon(shrCoord); ok {
		setPos(ep, lat, lon)
		return
	}

	if lat, lon, ok := patterns.ParseLatLon(patterns.ExtractTakeoffLandingCoord(shrText)); ok {
		setPos(ep, lat, lon)
		return
	}

	if pt, ok := z.RepresentativePoint(); ok {
		setPos(ep, pt.Lat, pt.Lon)
	}
}

// resolveRegion geolocates the record: departure point, then arrival,
// then every coordinate the zone offers, then the radial neighborhood
// search anchored at whichever endpoint exists. A record that misses all
// of them keeps the unresolved sentinel; geocoding failure is never fatal.
func (p *Parser) resolveRegion(rec *telegram.FlightRecord) {
	rec.RegionName = telegram.UnresolvedRegionName
	if p.locator == nil {
		return
	}

	if rec.Dep.HasPosition() {
		if r, ok := p.locator.Locate(*rec.Dep.Lat, *rec.Dep.Lon); ok {
			setRegion(rec, r)
			return
		}
	}
	if rec.Arr.HasPosition() {
		if r, ok := p.locator.Locate(*rec.Arr.Lat, *rec.Arr.Lon); ok {
			setRegion(rec, r)
			return
		}
	}

	for _, pt := range zoneProbePoints(rec.Zone) {
		if r, ok := p.locator.Locate(pt.Lat, pt.Lon); ok {
			setRegion(rec, r)
			return
		}
	}

	anchor := rec.Dep
	if !anchor.HasPosition() {
		anchor = rec.Arr
	}
	if anchor.HasPosition() {
		if r, ok := p.locator.LocateNear(*anchor.Lat, *anchor.Lon, p.radii); ok {
			setRegion(rec, r)
		}
	}
}

// zoneProbePoints lists every coordinate a zone can contribute to region
// lookup: all polygon vertices (the first may sit in a gap the second is
// not in), the circle center, and each named subzone's center or first
// vertex.
func zoneProbePoints(z telegram.Zone) []telegram.Point {
	switch z.Type {
	case telegram.ZonePolygon:
		return z.Vertices
	case telegram.ZoneCircle:
		if z.Center != nil {
			return []telegram.Point{*z.Center}
		}
	case telegram.ZoneNamed:
		var pts []telegram.Point
		for _, sz := range z.Subzones {
			if sz.Center != nil {
				pts = append(pts, *sz.Center)
			} else if len(sz.Vertices) > 0 {
				pts = append(pts, sz.Vertices[0])
			}
		}
		return pts
	}
	return nil
}

func setPos(ep *telegram.Endpoint, lat, lon float64) {
	ep.Lat, ep.Lon = &lat, &lon
}

func setRegion(rec *telegram.FlightRecord, r geo.Region) {
	id := r.ID
	rec.RegionID = &id
	rec.RegionName = r.Name
}

func firstValue(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func hhmm(hh, mm int) string { return fmt.Sprintf("%02d%02d", hh, mm) }
