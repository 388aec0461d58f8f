// Package patterns provides shared regex patterns and helper functions for
// flight-plan telegram parsing. This file contains coordinate conversion
// utilities for the compact DDMM[SS]/DDDMM[SS] notation.

package patterns

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// cyrillicDirs maps the Cyrillic hemisphere letters used by some centers
// (С/Ю/В/З, either case) to their Latin equivalents.
var cyrillicDirs = strings.NewReplacer(
	"С", "N", "с", "N",
	"Ю", "S", "ю", "S",
	"В", "E", "в", "E",
	"З", "W", "з", "W",
)

var (
	// latLonRe matches a full coordinate token: 4 or 6 latitude digits,
	// hemisphere, 5 or 7 longitude digits, hemisphere. 4/5 digits carry
	// degree+minute precision, 6/7 add seconds.
	latLonRe = regexp.MustCompile(`^(\d{4}|\d{6})([NS])(\d{5}|\d{7})([EW])$`)

	// coordSearchRe finds a coordinate token anywhere in free text,
	// accepting Cyrillic hemisphere letters before normalization.
	coordSearchRe = regexp.MustCompile(`(\d{4}|\d{6})([NSСЮсю])(\d{5}|\d{7})([EWВЗвз])`)
)

// NormalizeDirections replaces Cyrillic hemisphere letters with their
// Latin equivalents so the strict Latin-only patterns can run over text
// from centers that file in Cyrillic.
func NormalizeDirections(text string) string {
	return cyrillicDirs.Replace(text)
}

// ParseLatLon decodes a compact coordinate token into signed decimal
// degrees rounded to 6 places. Cyrillic hemisphere letters are accepted.
// It returns ok=false for any structural mismatch or out-of-range result;
// it never guesses or clamps.
func ParseLatLon(token string) (lat, lon float64, ok bool) {
	s := cyrillicDirs.Replace(strings.ToUpper(strings.TrimSpace(token)))

	m := latLonRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	latStr, ns, lonStr, ew := m[1], m[2], m[3], m[4]

	lat = dmsValue(latStr, 2)
	if ns == "S" {
		lat = -lat
	}
	lon = dmsValue(lonStr, 3)
	if ew == "W" {
		lon = -lon
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}

	return round6(lat), round6(lon), true
}

// dmsValue converts a digit group into decimal degrees. degDigits is the
// number of leading degree digits (2 for latitude, 3 for longitude); the
// next two digits are minutes and the optional last two are seconds.
func dmsValue(s string, degDigits int) float64 {
	deg, _ := strconv.Atoi(s[:degDigits])
	min, _ := strconv.Atoi(s[degDigits : degDigits+2])
	sec := 0
	if len(s) == degDigits+4 {
		sec, _ = strconv.Atoi(s[degDigits+2:])
	}
	return float64(deg) + float64(min)/60 + float64(sec)/3600
}

// FindLatLon scans free text for the first decodable coordinate token.
// Fields like ADEPZ often carry the coordinate with surrounding noise.
func FindLatLon(text string) (lat, lon float64, ok bool) {
	for _, m := range coordSearchRe.FindAllString(text, -1) {
		if lat, lon, ok = ParseLatLon(m); ok {
			return lat, lon, true
		}
	}
	return 0, 0, false
}

// FormatLatLon encodes a position back into the full-precision token form
// (DDMMSSN DDDMMSSE), the inverse of ParseLatLon. Used when a zone-derived
// position must be expressed in the telegram's own notation.
func FormatLatLon(lat, lon float64) string {
	latD, latM, latS := splitDMS(math.Abs(lat))
	lonD, lonM, lonS := splitDMS(math.Abs(lon))

	ns := "N"
	if lat < 0 {
		ns = "S"
	}
	ew := "E"
	if lon < 0 {
		ew = "W"
	}

	return fmt.Sprintf("%02d%02d%02d%s%03d%02d%02d%s", latD, latM, latS, ns, lonD, lonM, lonS, ew)
}

// splitDMS breaks an absolute decimal-degree value into degree, minute and
// second components, carrying rounding so 59.9999' never emits 60.
func splitDMS(v float64) (deg, min, sec int) {
	totalSec := int(math.Round(v * 3600))
	deg = totalSec / 3600
	min = (totalSec % 3600) / 60
	sec = totalSec % 60
	return deg, min, sec
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
