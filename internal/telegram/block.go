package telegram

import (
	"regexp"
	"strings"
)

// ParsedBlock maps uppercase field keys to their values in order of
// appearance. Keys like REG or SID occasionally repeat across lines in the
// source data, so every occurrence is kept.
type ParsedBlock map[string][]string

// Get returns the first value for key, or "" when the key is absent.
func (b ParsedBlock) Get(key string) string {
	if vs := b[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether the key appeared at least once.
func (b ParsedBlock) Has(key string) bool { return len(b[key]) > 0 }

var dashLineRe = regexp.MustCompile(`(?i)^-([A-Z0-9]+)\s*(.*)$`)

// ParseBlock tokenizes one message body into key/value pairs. Two
// conventions co-exist in the corpus: lines starting with "-KEY" followed
// by free text, and "KEY/value" tokens separated by whitespace. A single
// pair of wrapping parentheses is stripped first. Values lose any trailing
// slashes; keys are uppercased.
//
// ParseBlock is a pure function of its input text.
func ParseBlock(text string) ParsedBlock {
	res := ParsedBlock{}

	t := strings.TrimSpace(text)
	if t == "" {
		return res
	}
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		t = t[1 : len(t)-1]
	}

	for _, rawLine := range strings.Split(t, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			// "-KEY value" lines keep the whole remainder as the value.
			// A "-KEY/value ..." line is really a run of slash tokens
			// behind a dash; fall through to token splitting for those.
			if m := dashLineRe.FindStringSubmatch(line); m != nil && !strings.HasPrefix(m[2], "/") {
				key := strings.ToUpper(m[1])
				res[key] = append(res[key], strings.TrimSpace(m[2]))
				continue
			}
			line = strings.TrimPrefix(line, "-")
		}

		for _, token := range strings.Fields(line) {
			k, v, ok := strings.Cut(token, "/")
			if !ok {
				continue
			}
			key := strings.ToUpper(k)
			res[key] = append(res[key], strings.TrimRight(strings.TrimSpace(v), "/"))
		}
	}

	return res
}

// CleanCellText normalizes a spreadsheet cell value before block parsing.
// Excel exports leave carriage-return artifacts (_x000D_) and escaped
// newlines inside telegram bodies.
func CleanCellText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_x000D_", "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
