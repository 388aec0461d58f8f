// Package patterns provides shared regex patterns and helper functions for
// flight-plan telegram parsing. This file contains grok-style base patterns
// for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern
// composition. These are referenced in format patterns using {PATTERN_NAME}
// syntax.
var BasePatterns = map[string]string{
	// Compact aeronautical coordinate token: DDMM[SS]N/S + DDDMM[SS]E/W.
	// e.g., 5509N03737E, 683605N0800635E
	"COORD": `(?:\d{4}|\d{6})[NS](?:\d{5}|\d{7})[EW]`,

	// Zone radius in nautical miles with a comma decimal separator.
	// e.g., R0,5  R12  R1,25
	"RADIUS": `R\d+,?\d*`,

	// Named-zone designator: letters, a digit group, optional letter suffix.
	// e.g., UHP15, MR 22A
	"ZONECODE": `[A-Z]+\s*\d+[A-Z]*`,

	// Time and date digit groups.
	"TIME4": `\d{4}`, // HHMM
	"DATE6": `\d{6}`, // YYMMDD

	// Altitude bound in meters, zero-padded: M0000 .. M9999.
	"ALT_M": `M\d{4}`,

	// Telegram identifiers.
	"SID": `\d+`,
	"REG": `[A-Z0-9\-]+`,
	"TYP": `[A-Z0-9]+`,
}
