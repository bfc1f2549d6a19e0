package ocr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidPattern wraps regex compilation failures
var ErrInvalidPattern = errors.New("invalid regex pattern")

// Exit codes used by find-text
const (
	ExitFound    = 0
	ExitNotFound = 1
	ExitError    = 2
	ExitBadRegex = 3
)

// SearchResult is one match on a screen line. Columns are cell indexes.
type SearchResult struct {
	LineNumber int      `json:"lineNumber"`
	Line       string   `json:"line"`
	StartCol   int      `json:"startCol"`
	EndCol     int      `json:"endCol"`
	Match      string   `json:"match"`
	Groups     []string `json:"groups,omitempty"`
}

// SearchConfig controls a screen search
type SearchConfig struct {
	IgnoreCase  bool
	FirstOnly   bool // stop at the first match, scanning bottom-up
	Quiet       bool
	LineNumbers bool
}

// SearchResults holds all matches of a query
type SearchResults struct {
	Query      string         `json:"query"`
	Matches    []SearchResult `json:"matches"`
	TotalLines int            `json:"totalLines"`
	Found      bool           `json:"found"`
}

func (r *SearchResults) add(m SearchResult) {
	r.Matches = append(r.Matches, m)
	r.Found = true
}

// FindString looks for a literal string, newest output (bottom line) first
func FindString(s *Screen, query string, config SearchConfig) *SearchResults {
	pattern := regexp.QuoteMeta(query)
	res, _ := FindRegex(s, pattern, config)
	res.Query = query
	for i := range res.Matches {
		res.Matches[i].Groups = nil
	}
	return res
}

// FindRegex looks for a regular expression, newest output first
func FindRegex(s *Screen, pattern string, config SearchConfig) (*SearchResults, error) {
	expr := pattern
	if config.IgnoreCase {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	res := &SearchResults{Query: pattern, Matches: []SearchResult{}, TotalLines: len(s.Lines)}
	for i := len(s.Lines) - 1; i >= 0; i-- {
		line := s.Lines[i]
		for _, idx := range re.FindAllStringSubmatchIndex(line, -1) {
			m := SearchResult{
				LineNumber: i,
				Line:       strings.TrimRight(line, " "),
				StartCol:   utf8.RuneCountInString(line[:idx[0]]),
				EndCol:     utf8.RuneCountInString(line[:idx[1]]),
				Match:      line[idx[0]:idx[1]],
			}
			for g := 2; g+1 < len(idx); g += 2 {
				if idx[g] < 0 {
					m.Groups = append(m.Groups, "")
					continue
				}
				m.Groups = append(m.Groups, line[idx[g]:idx[g+1]])
			}
			res.add(m)
			if config.FirstOnly {
				return res, nil
			}
		}
	}
	return res, nil
}

// FormatResults renders matches for the terminal
func FormatResults(results *SearchResults, config SearchConfig) string {
	if config.Quiet || !results.Found {
		return ""
	}

	var out strings.Builder
	if !config.LineNumbers {
		for _, m := range results.Matches {
			out.WriteString(m.Line + "\n")
		}
		return out.String()
	}

	if len(results.Matches) == 1 {
		fmt.Fprintf(&out, "Found 1 match for %q:\n", results.Query)
	} else {
		fmt.Fprintf(&out, "Found %d matches for %q:\n", len(results.Matches), results.Query)
	}
	for _, m := range results.Matches {
		fmt.Fprintf(&out, "Line %d (col %d-%d): %s", m.LineNumber, m.StartCol, m.EndCol-1, m.Line)
		if len(m.Groups) > 0 {
			fmt.Fprintf(&out, " [Groups: %v]", m.Groups)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

// ExitCode maps a search outcome to the find-text exit status
func ExitCode(results *SearchResults, err error) int {
	switch {
	case errors.Is(err, ErrInvalidPattern):
		return ExitBadRegex
	case err != nil:
		return ExitError
	case results != nil && results.Found:
		return ExitFound
	default:
		return ExitNotFound
	}
}
