// Package patterns provides shared regex patterns and helper functions for
// flight-plan telegram parsing. This file contains the grok-style pattern
// compiler.

package patterns

import (
	"regexp"
	"strings"
)

// Format represents one recognizable message shape with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and matching for an ordered set of
// formats. Order matters: Parse stops at the first matching format, so more
// specific shapes must come first.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided base patterns with the global BasePatterns,
// allowing local patterns to override global ones.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string),
		formats:      make([]Format, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		expanded := c.expand(c.formats[i].Pattern)
		re, err := regexp.Compile(expanded)
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// MustCompile is Compile for static format tables known to be valid.
func (c *Compiler) MustCompile() *Compiler {
	if err := c.Compile(); err != nil {
		panic(err)
	}
	return c
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		placeholder := "{" + name + "}"
		result = strings.ReplaceAll(result, placeholder, regex)
	}
	return result
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
}

// Parse attempts each compiled format in declaration order and returns the
// first successful match, or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}

		match := format.Compiled.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		result := &Match{
			FormatName: format.Name,
			Captures:   make(map[string]string),
		}

		for i, name := range format.Compiled.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			result.Captures[name] = match[i]
		}

		return result
	}

	return nil
}

// FindAllMatches finds all occurrences of one named format in text. Useful
// for patterns that repeat, like the vertex list of a polygon zone.
func (c *Compiler) FindAllMatches(text string, formatName string) []map[string]string {
	var results []map[string]string

	for _, format := range c.formats {
		if format.Name != formatName || format.Compiled == nil {
			continue
		}

		matches := format.Compiled.FindAllStringSubmatch(text, -1)
		for _, match := range matches {
			captures := make(map[string]string)
			for i, name := range format.Compiled.SubexpNames() {
				if i == 0 || name == "" {
					continue
				}
				captures[name] = match[i]
			}
			results = append(results, captures)
		}
		break
	}

	return results
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}
