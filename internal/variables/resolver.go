// Package variables substitutes ${name} and {{name}} placeholders from a flat variable map.
package variables

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Placeholder patterns. Names are unicode word characters so spreadsheet
// headers in any script can be referenced directly.
var (
	// ${name}
	dollarPattern = regexp.MustCompile(`\$\{([\p{L}\p{N}_]+)\}`)

	// {{name}}, optional inner padding
	bracePattern = regexp.MustCompile(`\{\{\s*([\p{L}\p{N}_]+)\s*\}\}`)

	namePattern = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
)

// Resolve replaces every ${name} and {{name}} with vars[name].
// Unknown names are left untouched and Resolve never fails.
func Resolve(text string, vars map[string]string) string {
	if text == "" || !strings.ContainsAny(text, "${") {
		return text
	}

	// Both patterns are applied to the original text in a single pass so a
	// substituted value is never itself re-expanded.
	return replaceAll(text, func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
}

type span struct {
	start, end int
	name       string
}

func replaceAll(text string, lookup func(string) (string, bool)) string {
	spans := findSpans(text)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		if v, ok := lookup(s.name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(text[s.start:s.end])
		}
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// findSpans returns non-overlapping placeholder spans ordered by position
func findSpans(text string) []span {
	var spans []span
	for _, p := range []*regexp.Regexp{dollarPattern, bracePattern} {
		for _, m := range p.FindAllStringSubmatchIndex(text, -1) {
			spans = append(spans, span{start: m[0], end: m[1], name: text[m[2]:m[3]]})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := spans[:0]
	end := -1
	for _, s := range spans {
		if s.start < end {
			continue
		}
		out = append(out, s)
		end = s.end
	}
	return out
}

// Names lists the distinct placeholder names referenced by text, in order of first use
func Names(text string) []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range findSpans(text) {
		if !seen[s.name] {
			seen[s.name] = true
			names = append(names, s.name)
		}
	}
	return names
}

// HasPlaceholder reports whether text contains any placeholder
func HasPlaceholder(text string) bool {
	return len(findSpans(text)) > 0
}

// ValidName reports whether name can be referenced by a placeholder
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Merge returns a new map holding base overlaid by each of over in turn
func Merge(base map[string]string, over ...map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, m := range over {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Clone copies a variable map
func Clone(vars map[string]string) map[string]string {
	return Merge(vars)
}

// ParseAssignments turns KEY=VALUE pairs into a map
func ParseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || !ValidName(name) {
			return nil, fmt.Errorf("invalid variable assignment %q (expected NAME=value)", p)
		}
		out[name] = value
	}
	return out, nil
}
