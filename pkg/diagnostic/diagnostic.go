// Package diagnostic turns raw match.Diff records into human-facing
// DiagnosticError values, aggregates repeated suggestions, and runs a pair
// of static analyzers over an author's expected-shape tree before any test
// ever executes.
package diagnostic

import (
	"fmt"
	"sort"

	"github.com/gridctl/mcp-aegis/pkg/match"
)

// DiagnosticError is one reportable test failure, per spec §3.
type DiagnosticError struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Path        string `json:"path"`
	Expected    any    `json:"expected,omitempty"`
	Actual      any    `json:"actual,omitempty"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion,omitempty"`
	PatternType string `json:"patternType,omitempty"`
}

// FromDiff converts one match.Diff into a DiagnosticError, filling in a
// per-type Category and a templated single-error suggestion; suggestion
// aggregation across many diffs happens in Analyze.
func FromDiff(d match.Diff) DiagnosticError {
	e := DiagnosticError{
		Type:        string(d.Type),
		Category:    categoryFor(d.Type),
		Path:        d.Path,
		Expected:    trimPreview(d.Expected),
		Actual:      trimPreview(d.Actual),
		Message:     d.Message,
		PatternType: d.PatternType,
	}
	e.Suggestion = templateSuggestion(d)
	return e
}

func categoryFor(t match.DiffType) string {
	switch t {
	case match.PatternFailed:
		return "pattern"
	case match.TypeMismatch, match.ValueMismatch:
		return "value"
	case match.MissingField, match.ExtraField:
		return "shape"
	case match.LengthMismatch:
		return "shape"
	default:
		return "other"
	}
}

// trimPreview truncates long string previews so messages stay readable,
// per spec §7 ("a trimmed preview of expected and actual").
func trimPreview(v any) any {
	s, ok := v.(string)
	if !ok || len(s) <= 80 {
		return v
	}
	return s[:77] + "..."
}

// templateSuggestion produces the per-diff suggestion text used both
// standalone and as the aggregation key (minus the path, which varies per
// occurrence and must not defeat grouping).
func templateSuggestion(d match.Diff) string {
	switch d.Type {
	case match.PatternFailed:
		if d.PatternType == "unknown" {
			if alt, score := NearestOperator(fmt.Sprintf("%v", d.Expected)); alt != "" {
				return fmt.Sprintf("unknown pattern operator; did you mean %q? (similarity %.2f)", alt, score)
			}
			return "unknown pattern operator; check the known-operators list"
		}
		return fmt.Sprintf("pattern %q did not match the actual value", d.PatternType)
	case match.MissingField:
		return "add the missing field to the server response, or remove it from the expectation"
	case match.ExtraField:
		return "wrap the expectation in match:partial to allow extra fields, or add the field explicitly"
	case match.LengthMismatch:
		return "check the array length the server actually returned"
	case match.TypeMismatch:
		return "the actual value's runtime type does not match what was expected"
	case match.ValueMismatch:
		return "the actual value differs from the literal expected"
	default:
		return "review the expected shape against the actual response"
	}
}

// Analysis summarizes a batch of diagnostics for human/JSON reporting.
type Analysis struct {
	TotalErrors     int                `json:"totalErrors"`
	ErrorsByType    map[string]int     `json:"errorsByType"`
	ErrorsByCategory map[string]int    `json:"errorsByCategory"`
	Summary         string             `json:"summary"`
	Suggestions     []string           `json:"suggestions"`
	Errors          []DiagnosticError  `json:"errors"`
}

// Analyze classifies a list of diffs, aggregates repeated suggestions, and
// returns the top three aggregated groups by size (spec §4.8).
func Analyze(diffs []match.Diff) Analysis {
	errs := make([]DiagnosticError, len(diffs))
	for i, d := range diffs {
		errs[i] = FromDiff(d)
	}

	byType := map[string]int{}
	byCategory := map[string]int{}
	for _, e := range errs {
		byType[e.Type]++
		byCategory[e.Category]++
	}

	type group struct {
		key      string
		category string
		template string
		count    int
	}
	groups := map[string]*group{}
	var order []string
	for _, e := range errs {
		key := e.Category + "|" + e.Suggestion
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, category: e.Category, template: e.Suggestion}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
	}

	var sortedGroups []*group
	for _, k := range order {
		sortedGroups = append(sortedGroups, groups[k])
	}
	sort.SliceStable(sortedGroups, func(i, j int) bool {
		return sortedGroups[i].count > sortedGroups[j].count
	})

	var suggestions []string
	for i, g := range sortedGroups {
		if i >= 3 {
			break
		}
		if g.count >= 2 {
			suggestions = append(suggestions, fmt.Sprintf("%s (%d similar issues found)", g.template, g.count))
		} else {
			suggestions = append(suggestions, g.template)
		}
	}

	summary := fmt.Sprintf("%d error(s) found", len(errs))
	if len(errs) == 0 {
		summary = "no errors"
	}

	return Analysis{
		TotalErrors:      len(errs),
		ErrorsByType:     byType,
		ErrorsByCategory: byCategory,
		Summary:          summary,
		Suggestions:      suggestions,
		Errors:           errs,
	}
}
