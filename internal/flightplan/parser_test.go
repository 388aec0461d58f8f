package flightplan

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb/geojson"

	"telegram_parser/internal/geo"
	"telegram_parser/internal/refdata"
	"telegram_parser/internal/telegram"
)

// One square test region covering lat 50..60, lon 30..40 so the fixture
// coordinate 5509N03737E (55.15, 37.62) lands inside it.
const testRegionsJSON = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"cartodb_id": 42, "name": "Тестовая область", "name_latin": "Test Oblast"},
		"geometry": {"type": "Polygon", "coordinates": [
			[[30, 50], [40, 50], [40, 60], [30, 60], [30, 50]]
		]}
	}]
}`

const testSHR = `(SHR-ZZZZZ
-ZZZZ0600
-M0000/M0050 /ZONA R0,5 5509N03737E/
-ZZZZ1250
-DEP/5509N03737E DEST/5509N03737E DOF/250201
OPR/ИВАНОВ ИВАН REG/RF12345 TYP/BLA
RMK/СВЯЗЬ С ОПЕРАТОРОМ +79123456789 SID/7772251137)`

const testDEP = `(DEP-ZZZZZ
-ZZZZ0600
-ZZZZ
-ADD 250201
-ATD 0600
-ADEP ZZZZ
-ADEPZ 5509N03737E
-PAP 0
-SID 7772251137)`

const testARR = `(ARR-ZZZZZ
-ZZZZ
-ADA 250201
-ATA 1250
-ADARR ZZZZ
-ADARRZ 5510N03740E
-SID 7772251137)`

func testParser(t *testing.T) *Parser {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection([]byte(testRegionsJSON))
	if err != nil {
		t.Fatal(err)
	}
	locator, err := geo.NewFromFeatures(fc)
	if err != nil {
		t.Fatal(err)
	}

	dir := refdata.NewDirectory([]refdata.Aerodrome{
		{Code: "UUWW", Name: "Внуково", Lat: 55.599167, Lon: 37.2675},
	}, nil)
	return New(dir, locator)
}

func TestParseFullTriplet(t *testing.T) {
	p := testParser(t)

	rec, err := p.Parse("Московский", testSHR, testDEP, testARR)
	if err != nil {
		t.Fatal(err)
	}

	if rec.ID == "" {
		t.Error("record must be assigned an id")
	}
	if rec.SID != "7772251137" {
		t.Errorf("SID = %q", rec.SID)
	}
	if rec.Registration != "RF12345" {
		t.Errorf("Registration = %q", rec.Registration)
	}
	if rec.AircraftType != "BLA" {
		t.Errorf("AircraftType = %q", rec.AircraftType)
	}
	if rec.Operator != "ИВАНОВ ИВАН" {
		t.Errorf("Operator = %q", rec.Operator)
	}
	if rec.CenterName != "Московский" {
		t.Errorf("CenterName = %q", rec.CenterName)
	}
	if rec.FlightID != "" {
		t.Errorf("FlightID = %q, want empty for the ZZZZZ filler", rec.FlightID)
	}

	if rec.MinAltM == nil || rec.MaxAltM == nil || *rec.MinAltM != 0 || *rec.MaxAltM != 50 {
		t.Errorf("altitude = %v..%v, want 0..50", rec.MinAltM, rec.MaxAltM)
	}

	if len(rec.Phones) != 1 || rec.Phones[0] != "79123456789" {
		t.Errorf("Phones = %v", rec.Phones)
	}

	if rec.Zone.Type != telegram.ZoneCircle || rec.Zone.RadiusNM != 0.5 {
		t.Errorf("Zone = %+v, want circle R0.5", rec.Zone)
	}

	if !rec.Dep.HasPosition() || math.Abs(*rec.Dep.Lat-55.15) > 1e-4 {
		t.Errorf("Dep position = %v,%v", rec.Dep.Lat, rec.Dep.Lon)
	}
	if !rec.Arr.HasPosition() || math.Abs(*rec.Arr.Lat-55.166667) > 1e-4 {
		t.Errorf("Arr position = %v,%v", rec.Arr.Lat, rec.Arr.Lon)
	}

	if rec.Dep.Date != "2025-02-01" || rec.Dep.TimeHHMM != "0600" {
		t.Errorf("Dep date/time = %q %q", rec.Dep.Date, rec.Dep.TimeHHMM)
	}
	if rec.StartTS == nil || rec.EndTS == nil {
		t.Fatal("timestamps missing")
	}
	if rec.DurationMin == nil || *rec.DurationMin != 410 {
		t.Errorf("DurationMin = %v, want 410", rec.DurationMin)
	}

	if rec.RegionID == nil || *rec.RegionID != 42 || rec.RegionName != "Тестовая область" {
		t.Errorf("region = %v %q", rec.RegionID, rec.RegionName)
	}
}

func TestParseMidnightRollover(t *testing.T) {
	p := testParser(t)

	dep := "(DEP-ZZZZZ\n-ADD 250201\n-ATD 2330\n-ADEP ZZZZ\n-SID 123)"
	arr := "(ARR-ZZZZZ\n-ADA 250201\n-ATA 0015\n-ADARR ZZZZ\n-SID 123)"

	rec, err := p.Parse("", testSHR, dep, arr)
	if err != nil {
		t.Fatal(err)
	}

	if rec.DurationMin == nil || *rec.DurationMin != 45 {
		t.Fatalf("DurationMin = %v, want 45", rec.DurationMin)
	}
	if !rec.EndTS.After(*rec.StartTS) {
		t.Error("end must be rolled past midnight")
	}
	if rec.EndTS.Day() != 2 {
		t.Errorf("EndTS day = %d, want rolled to the 2nd", rec.EndTS.Day())
	}
}

func TestParseAerodromeCodeWins(t *testing.T) {
	p := testParser(t)

	// A real aerodrome code beats the block's own coordinate field.
	dep := "(DEP-ZZZZZ\n-ADEP UUWW\n-ADEPZ 5509N03737E\n-SID 123)"

	rec, err := p.Parse("", testSHR, dep, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Dep.AerodromeCode != "UUWW" || rec.Dep.AerodromeName != "Внуково" {
		t.Errorf("Dep aerodrome = %q %q", rec.Dep.AerodromeCode, rec.Dep.AerodromeName)
	}
	if !rec.Dep.HasPosition() || *rec.Dep.Lat != 55.599167 {
		t.Errorf("Dep position = %v, want the directory coordinate", rec.Dep.Lat)
	}
}

func TestParseZoneCoordinateFallback(t *testing.T) {
	p := testParser(t)

	// No DEP/ARR blocks and no DEP//DEST/ tokens: both endpoints and the
	// region come from the circle zone's center.
	shr := "(SHR-ZZZZZ\n-ZZZZ0600\n-M0000/M0050 /ZONA R0,5 5509N03737E/\nOPR/ПЕТРОВ REG/RF777 TYP/BLA SID/555)"

	rec, err := p.Parse("", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Dep.HasPosition() || math.Abs(*rec.Dep.Lat-55.15) > 1e-4 {
		t.Errorf("Dep = %v,%v, want zone center", rec.Dep.Lat, rec.Dep.Lon)
	}
	if !rec.Arr.HasPosition() {
		t.Error("Arr must fall back to zone center too")
	}
	if rec.RegionID == nil || *rec.RegionID != 42 {
		t.Errorf("RegionID = %v, want 42 via zone center", rec.RegionID)
	}
}

func TestParseTakeoffLandingFallback(t *testing.T) {
	p := testParser(t)

	shr := "(SHR-ZZZZZ\n-ZZZZ0600\nВЗЛЕТ И ПОСАДКА 5509N03737E\nOPR/СИДОРОВ REG/RF888 SID/556)"

	rec, err := p.Parse("", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Dep.HasPosition() || math.Abs(*rec.Dep.Lat-55.15) > 1e-4 {
		t.Errorf("Dep = %v,%v, want takeoff-landing coordinate", rec.Dep.Lat, rec.Dep.Lon)
	}
	if !rec.Arr.HasPosition() {
		t.Error("Arr must share the takeoff-landing coordinate")
	}
}

func TestParseRadialFallback(t *testing.T) {
	p := testParser(t)

	// 29.7E is 0.3 degrees outside the square; only the widening search
	// can attach the region.
	shr := "(SHR-ZZZZZ\n-ZZZZ0600\n-DEP/5500N02942E DEST/5500N02942E\nOPR/ОРЛОВ REG/RF999 SID/557)"

	rec, err := p.Parse("", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RegionID == nil || *rec.RegionID != 42 {
		t.Errorf("RegionID = %v, want 42 via radial fallback", rec.RegionID)
	}
}

func TestParseUnresolvedRegion(t *testing.T) {
	p := testParser(t)

	// Far outside the region and beyond the widest radius.
	shr := "(SHR-ZZZZZ\n-ZZZZ0600\n-DEP/1000N01000E DEST/1000N01000E\nOPR/КОТОВ REG/RF111 SID/558)"

	rec, err := p.Parse("", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RegionID != nil || rec.RegionName != telegram.UnresolvedRegionName {
		t.Errorf("region = %v %q, want unresolved sentinel", rec.RegionID, rec.RegionName)
	}
}

func TestParseNilLocator(t *testing.T) {
	p := New(refdata.NewDirectory(nil, nil), nil)

	rec, err := p.Parse("", testSHR, testDEP, testARR)
	if err != nil {
		t.Fatal(err)
	}
	if rec.RegionName != telegram.UnresolvedRegionName {
		t.Errorf("RegionName = %q without a locator", rec.RegionName)
	}
}

func TestParseRowFailures(t *testing.T) {
	p := testParser(t)

	if _, err := p.Parse("", "", testDEP, testARR); !errors.Is(err, ErrMissingSHR) {
		t.Errorf("missing SHR: err = %v", err)
	}

	// SHR present but yields neither SID nor registration.
	if _, err := p.Parse("", "(SHR-ZZZZZ\n-ZZZZ0600\nНЕ РАЗБОРЧИВО)", "", ""); !errors.Is(err, ErrUnidentified) {
		t.Errorf("unidentified: err = %v", err)
	}
}

func TestParse2025Format(t *testing.T) {
	p := testParser(t)

	shr := `(SHR-00725
-ZZZZ0600
-M0000/M0005 /ZONA R0,5 5509N03737E/
-ZZZZ0700
-DEP/5509N03737E DEST/5509N03737E DOF/250124 OPR/ГУ М4С РОССИИ ПО
СТАВРОПОЛЬСКОМУ КРАЮ REG/00724,REG00725 STS/SAR TYP/BLA RMK/WR655
ОПЕРАТОР ЛЯХОВСКАЯ +79283000251 ЛЯПИН +79620149012 SID/7772251137)`

	rec, err := p.Parse("Ростовский", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FlightID != "00725" {
		t.Errorf("FlightID = %q, want 00725", rec.FlightID)
	}
	if rec.Registration != "00724,REG00725" {
		t.Errorf("Registration = %q", rec.Registration)
	}
	if rec.MinAltM == nil || *rec.MinAltM != 0 || rec.MaxAltM == nil || *rec.MaxAltM != 5 {
		t.Errorf("altitude = %v..%v, want 0..5", rec.MinAltM, rec.MaxAltM)
	}
	if len(rec.Phones) != 2 {
		t.Errorf("Phones = %v, want two", rec.Phones)
	}
}

func TestParseCellArtifacts(t *testing.T) {
	p := testParser(t)

	// Excel export artifacts must be cleaned before block parsing.
	shr := "(SHR-ZZZZZ_x000D_-ZZZZ0600_x000D_OPR/ИВАНОВ REG/RF222 SID/559)"
	rec, err := p.Parse("", shr, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SID != "559" || rec.Registration != "RF222" {
		t.Errorf("SID=%q REG=%q", rec.SID, rec.Registration)
	}
}
