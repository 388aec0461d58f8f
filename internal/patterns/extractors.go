// Package patterns provides extraction functions for flight-plan telegram
// parsing. Extractors operate on the raw message text because several
// fields (operator names, phone numbers) span or ignore block boundaries.
package patterns

import (
	"regexp"
	"strings"
	"time"
)

// Core field patterns. The corpus mixes two message eras and many
// originating centers, so each pattern is as permissive as the field
// allows without format-sniffing branches.
var (
	regPattern = regexp.MustCompile(`REG/([A-Z0-9\-,]+)`)
	typPattern = regexp.MustCompile(`TYP/\d*([A-Z0-9]+)`)
	sidPattern = regexp.MustCompile(`SID/(\d+)`)
	dofPattern = regexp.MustCompile(`DOF/(\d{6})`)

	// shrHeaderPattern captures the flight id from the "(SHR-XXXXX" header
	// line. The 2025 format carries a real id there; older messages use
	// the ZZZZZ filler, which is not an identifier.
	shrHeaderPattern = regexp.MustCompile(`\(?SHR-([A-Z0-9]+)`)

	// shrTimePattern matches the "-ZZZZHHMM" time marker lines of an SHR
	// body. The first occurrence is the planned departure time.
	shrTimePattern = regexp.MustCompile(`-ZZZZ(\d{4})`)

	// altRangePattern matches the altitude range "M0000/M0050" in meters.
	altRangePattern = regexp.MustCompile(`M(\d{4})/M(\d{4})`)

	// operatorPattern captures OPR/ free text up to the next recognized
	// field marker or end of message. Operator names are multi-line
	// punctuation-laden free text, so newlines are flattened first.
	operatorPattern = regexp.MustCompile(`OPR/(.+?)(?:\s+(?:REG|TYP|RMK|SID)/|$)`)

	// takeoffLandingPattern finds the "takeoff and landing at" free-text
	// coordinate some centers write instead of DEP/DEST tokens.
	takeoffLandingPattern = regexp.MustCompile(`ВЗЛЕТ И ПОСАДКА\s+((?:\d{4}|\d{6})[NS](?:\d{5}|\d{7})[EW])`)

	depCoordPattern  = regexp.MustCompile(`DEP/((?:\d{4}|\d{6})[NS](?:\d{5}|\d{7})[EW])`)
	destCoordPattern = regexp.MustCompile(`DEST/((?:\d{4}|\d{6})[NS](?:\d{5}|\d{7})[EW])`)

	// phoneCandidatePattern captures loosely formatted phone digit runs:
	// optional +, then digits with embedded spaces, parens and dashes.
	phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s()\-]{8,}\d`)

	// Trailing artifacts stripped from a greedy operator match: a swallowed
	// technical code token, then a bare digit run glued to the last word.
	trailingCodeRe   = regexp.MustCompile(`\s+[A-Z0-9]{10,}$`)
	trailingDigitsRe = regexp.MustCompile(`\d+$`)
)

// ExtractRegistration returns the registration field, or "".
func ExtractRegistration(text string) string {
	if m := regPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractAircraftType returns the aircraft type code, skipping the
// optional leading count digit (TYP/2BLA means two BLA airframes).
func ExtractAircraftType(text string) string {
	if m := typPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractSID returns the system identifier, or "".
func ExtractSID(text string) string {
	if m := sidPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractFlightID returns the flight id from the SHR header when it is a
// real identifier rather than the ZZZZZ filler.
func ExtractFlightID(text string) string {
	if m := shrHeaderPattern.FindStringSubmatch(text); m != nil && m[1] != "ZZZZZ" {
		return m[1]
	}
	return ""
}

// ExtractOperator returns the operator name from OPR/ free text, or "".
// Line breaks inside the name (surnames wrap mid-word in the source
// spreadsheets) are flattened to spaces before matching. Trailing digit
// runs are transcription artifacts and are stripped; this is a heuristic
// and will also truncate a legitimately numeric name tail.
func ExtractOperator(text string) string {
	flat := strings.Join(strings.Fields(strings.ReplaceAll(text, "\n", " ")), " ")

	m := operatorPattern.FindStringSubmatch(flat)
	if m == nil {
		return ""
	}

	op := strings.TrimSpace(m[1])
	op = trailingCodeRe.ReplaceAllString(op, "")
	op = strings.TrimSpace(trailingDigitsRe.ReplaceAllString(op, ""))
	return op
}

// ExtractDate parses a DOF/YYMMDD date, assuming year 2000+YY. Invalid
// calendar dates are rejected, not corrected.
func ExtractDate(text string) (time.Time, bool) {
	m := dofPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return ParseDateYYMMDD(m[1])
}

// ParseDateYYMMDD parses a bare YYMMDD digit group into a UTC date.
func ParseDateYYMMDD(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 6 || !allDigits(s) {
		return time.Time{}, false
	}
	yy := atoi2(s[0:2])
	mm := atoi2(s[2:4])
	dd := atoi2(s[4:6])

	t := time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; a changed month or day
	// means the calendar date did not exist.
	if int(t.Month()) != mm || t.Day() != dd {
		return time.Time{}, false
	}
	return t, true
}

// ParseTimeHHMM parses an HHMM digit group, rejecting hour > 23 or
// minute > 59.
func ParseTimeHHMM(s string) (hh, mm int, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 || !allDigits(s) {
		return 0, 0, false
	}
	hh = atoi2(s[0:2])
	mm = atoi2(s[2:4])
	if hh > 23 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}

// ExtractSHRTime returns the planned departure HHMM from the first
// "-ZZZZHHMM" marker line of an SHR body.
func ExtractSHRTime(text string) (hh, mm int, ok bool) {
	m := shrTimePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	return ParseTimeHHMM(m[1])
}

// ExtractAltitudeRange returns the declared min/max altitude in meters
// from the "M0000/M0050" range, present only in the 2025 format.
func ExtractAltitudeRange(text string) (minM, maxM int, ok bool) {
	m := altRangePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	return atoi4(m[1]), atoi4(m[2]), true
}

// ExtractDepCoord returns the DEP/ coordinate token from SHR text, or "".
func ExtractDepCoord(text string) string {
	if m := depCoordPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractDestCoord returns the DEST/ coordinate token from SHR text, or "".
func ExtractDestCoord(text string) string {
	if m := destCoordPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractTakeoffLandingCoord returns the free-text "takeoff and landing"
// coordinate token, or "".
func ExtractTakeoffLandingCoord(text string) string {
	if m := takeoffLandingPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractPhones finds phone digit runs in free text and returns the
// distinct normalized numbers, in order of first appearance. A bare
// 10-digit run without a + prefix is skipped: it is indistinguishable
// from a SID and the corpus always writes short-form numbers with a
// prefix or separators.
func ExtractPhones(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, cand := range phoneCandidatePattern.FindAllString(text, -1) {
		if !strings.Contains(cand, "+") && len(digitsOf(cand)) == 10 {
			continue
		}
		num, ok := NormalizePhone(cand)
		if !ok || seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, num)
	}
	return out
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func atoi2(s string) int { return int(s[0]-'0')*10 + int(s[1]-'0') }

func atoi4(s string) int {
	n := 0
	for i := 0; i < 4; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
