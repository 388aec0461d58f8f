package zone

import (
	"math"
	"testing"

	"telegram_parser/internal/refdata"
	"telegram_parser/internal/telegram"
)

func testExtractor() *Extractor {
	dir := refdata.NewDirectory(nil, map[string][]telegram.Subzone{
		"UHP15": {
			{Type: telegram.ZoneCircle, Center: &telegram.Point{Lat: 59.95, Lon: 30.3}, RadiusNM: 2},
		},
	})
	return NewExtractor(dir)
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func TestExtractCircle(t *testing.T) {
	e := testExtractor()

	z := e.Extract("(SHR-ZZZZZ\n-ZZZZ0900\n-M0016/M0026 /ZONA R0,7 5509N03737E/\n-ZZZZ0900)")
	if z.Type != telegram.ZoneCircle {
		t.Fatalf("Type = %s, want circle", z.Type)
	}
	if z.RadiusNM != 0.7 {
		t.Errorf("RadiusNM = %v, want 0.7", z.RadiusNM)
	}
	if z.Center == nil || !almostEqual(z.Center.Lat, 55.15) || !almostEqual(z.Center.Lon, 37.616667) {
		t.Errorf("Center = %+v, want (55.15, 37.6167)", z.Center)
	}
}

func TestExtractCircleDoubledKeyword(t *testing.T) {
	e := testExtractor()

	// Some centers file "/ZONA ZONA R..." with the keyword repeated.
	z := e.Extract("-M0000/M0050 /ZONA ZONA R1,5 683605N0800635E/")
	if z.Type != telegram.ZoneCircle || z.RadiusNM != 1.5 {
		t.Fatalf("got %+v, want circle R1.5", z)
	}
}

func TestExtractCircleBeatsPolygonScan(t *testing.T) {
	e := testExtractor()

	// The circle's own center must not be consumed as a one-vertex polygon.
	z := e.Extract("/ZONA R0,5 5509N03737E/")
	if z.Type != telegram.ZoneCircle {
		t.Fatalf("Type = %s, want circle", z.Type)
	}
}

func TestExtractPolygon(t *testing.T) {
	e := testExtractor()

	z := e.Extract("-M0000/M0100 /ZONA 5509N03737E 5510N03738E 5511N03736E/")
	if z.Type != telegram.ZonePolygon {
		t.Fatalf("Type = %s, want polygon", z.Type)
	}
	if len(z.Vertices) != 3 {
		t.Fatalf("got %d vertices, want 3", len(z.Vertices))
	}
	if !almostEqual(z.Vertices[1].Lat, 55.166667) {
		t.Errorf("vertex 1 lat = %v", z.Vertices[1].Lat)
	}
}

func TestExtractPolygonSkipsBadVertex(t *testing.T) {
	e := testExtractor()

	// The middle token has a 5-digit latitude group; it is consumed by
	// the vertex run but rejected by the strict decoder.
	z := e.Extract("ZONA 5509N03737E 55091N03738E 5511N03736E")
	if z.Type != telegram.ZonePolygon {
		t.Fatalf("Type = %s, want polygon", z.Type)
	}
	if len(z.Vertices) != 2 {
		t.Fatalf("got %d vertices, want 2 (bad one skipped)", len(z.Vertices))
	}
}

func TestExtractNamedKnown(t *testing.T) {
	e := testExtractor()

	z := e.Extract("-M0000/M0020 /ZONA UHP15/ -ZZZZ0600")
	if z.Type != telegram.ZoneNamed {
		t.Fatalf("Type = %s, want named", z.Type)
	}
	if z.Name != "UHP15" {
		t.Errorf("Name = %q", z.Name)
	}
	if len(z.Subzones) != 1 || z.Subzones[0].Center == nil {
		t.Fatalf("Subzones = %+v, want the dataset circle embedded", z.Subzones)
	}

	p, ok := z.RepresentativePoint()
	if !ok || p.Lat != 59.95 {
		t.Errorf("RepresentativePoint = %+v ok=%v", p, ok)
	}
}

func TestExtractNamedUnknownDesignator(t *testing.T) {
	e := testExtractor()

	z := e.Extract("/ZONA MR 22A/")
	if z.Type != telegram.ZoneNamed || z.Name != "MR 22A" {
		t.Fatalf("got %+v, want bare named MR 22A", z)
	}
	if z.Subzones != nil {
		t.Errorf("unknown designator must have no subzones, got %+v", z.Subzones)
	}
	if _, ok := z.RepresentativePoint(); ok {
		t.Error("bare named zone has no representative point")
	}
}

func TestExtractCyrillicHemispheres(t *testing.T) {
	e := testExtractor()

	z := e.Extract("/ZONA R0,7 5509С03737В/")
	if z.Type != telegram.ZoneCircle {
		t.Fatalf("Type = %s, want circle", z.Type)
	}
	if z.Center == nil || !almostEqual(z.Center.Lat, 55.15) {
		t.Errorf("Center = %+v", z.Center)
	}
}

func TestExtractUnknown(t *testing.T) {
	e := testExtractor()

	for _, text := range []string{
		"",
		"   ",
		"(SHR-ZZZZZ -ZZZZ0900 OPR/IVANOV SID/123)",
	} {
		if z := e.Extract(text); z.Type != telegram.ZoneUnknown {
			t.Errorf("Extract(%q).Type = %s, want unknown", text, z.Type)
		}
	}
}
