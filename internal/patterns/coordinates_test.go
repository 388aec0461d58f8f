package patterns

import (
	"math"
	"testing"
)

func TestParseLatLon(t *testing.T) {
	tests := []struct {
		token    string
		lat, lon float64
	}{
		{"5509N03737E", 55.15, 37.616667},
		{"683605N0800635E", 68.601389, 80.109722},
		{"6836N08007E", 68.6, 80.116667},
		{"4408N04308E", 44.133333, 43.133333},
		{"440846N0430829E", 44.146111, 43.141389},
		// Southern/western hemispheres flip the sign.
		{"5509S03737W", -55.15, -37.616667},
		// Cyrillic hemisphere letters are normalized before matching.
		{"5509С03737В", 55.15, 37.616667},
		{"5509с03737в", 55.15, 37.616667},
	}

	for _, tt := range tests {
		lat, lon, ok := ParseLatLon(tt.token)
		if !ok {
			t.Errorf("ParseLatLon(%q) not ok", tt.token)
			continue
		}
		if math.Abs(lat-tt.lat) > 1e-5 || math.Abs(lon-tt.lon) > 1e-5 {
			t.Errorf("ParseLatLon(%q) = (%v, %v), want (%v, %v)", tt.token, lat, lon, tt.lat, tt.lon)
		}
	}
}

func TestParseLatLonRejects(t *testing.T) {
	bad := []string{
		"",
		"5509N",             // longitude missing
		"55090N03737E",      // 5-digit latitude group
		"5509N037370E",      // 6-digit longitude group
		"ABCDN03737E",       // non-digits
		"5509X03737E",       // bad hemisphere letter
		"9909N03737E",       // latitude out of range
		"5509N18107E",       // longitude out of range
		"5509N03737E extra", // trailing junk on a bare token
	}

	for _, token := range bad {
		if _, _, ok := ParseLatLon(token); ok {
			t.Errorf("ParseLatLon(%q) ok, want reject", token)
		}
	}
}

func TestFindLatLon(t *testing.T) {
	lat, lon, ok := FindLatLon("-ADEPZ 440846N0430829E trailing")
	if !ok {
		t.Fatal("FindLatLon not ok")
	}
	if math.Abs(lat-44.146111) > 1e-5 || math.Abs(lon-43.141389) > 1e-5 {
		t.Errorf("FindLatLon = (%v, %v)", lat, lon)
	}

	if _, _, ok := FindLatLon("no coordinates here"); ok {
		t.Error("FindLatLon matched text without a token")
	}
}

func TestFormatLatLonRoundTrip(t *testing.T) {
	tokens := []string{
		"5509N03737E",
		"683605N0800635E",
		"440846N0430829E",
		"5509S03737W",
		"0000N00000E",
	}

	for _, token := range tokens {
		lat, lon, ok := ParseLatLon(token)
		if !ok {
			t.Fatalf("ParseLatLon(%q) not ok", token)
		}
		lat2, lon2, ok := ParseLatLon(FormatLatLon(lat, lon))
		if !ok {
			t.Fatalf("re-parse of FormatLatLon(%v, %v) failed", lat, lon)
		}
		if math.Abs(lat-lat2) > 1e-4 || math.Abs(lon-lon2) > 1e-4 {
			t.Errorf("round trip %q: (%v, %v) != (%v, %v)", token, lat, lon, lat2, lon2)
		}
	}
}
