package patterns

import "strings"

// NormalizePhone canonicalizes a loosely formatted Russian phone number to
// "7XXXXXXXXXX". Accepted shapes after stripping non-digits: 11 digits
// starting with 8 (leading digit replaced by 7) or 7, 10 digits (7
// prepended), and 12 digits starting with 77 (one leading 7 dropped).
// Anything else is rejected rather than guessed. The function is pure and
// total: it never panics and returns ok=false for any input it cannot
// confidently normalize.
func NormalizePhone(raw string) (string, bool) {
	digits := digitsOf(raw)

	switch len(digits) {
	case 11:
		switch digits[0] {
		case '8':
			return "7" + digits[1:], true
		case '7':
			return digits, true
		}
	case 10:
		return "7" + digits, true
	case 12:
		if strings.HasPrefix(digits, "77") {
			return digits[1:], true
		}
	}

	return "", false
}
