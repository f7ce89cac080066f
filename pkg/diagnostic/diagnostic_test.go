package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridctl/mcp-aegis/pkg/match"
)

func TestAnalyzeAggregatesIdenticalSuggestions(t *testing.T) {
	diffs := []match.Diff{
		{Type: match.MissingField, Path: "$.a", Message: "missing field"},
		{Type: match.MissingField, Path: "$.b", Message: "missing field"},
		{Type: match.MissingField, Path: "$.c", Message: "missing field"},
	}

	a := Analyze(diffs)
	assert.Equal(t, 3, a.TotalErrors)
	assert.Equal(t, 3, a.ErrorsByType["missing_field"])
	assert.Len(t, a.Suggestions, 1)
	assert.Contains(t, a.Suggestions[0], "(3 similar issues found)")
}

func TestAnalyzeTopThreeGroupsOnly(t *testing.T) {
	var diffs []match.Diff
	for i := 0; i < 2; i++ {
		diffs = append(diffs, match.Diff{Type: match.MissingField, Path: "$.a"})
	}
	for i := 0; i < 2; i++ {
		diffs = append(diffs, match.Diff{Type: match.ExtraField, Path: "$.b"})
	}
	for i := 0; i < 2; i++ {
		diffs = append(diffs, match.Diff{Type: match.LengthMismatch, Path: "$.c"})
	}
	for i := 0; i < 2; i++ {
		diffs = append(diffs, match.Diff{Type: match.TypeMismatch, Path: "$.d"})
	}

	a := Analyze(diffs)
	assert.Equal(t, 8, a.TotalErrors)
	assert.Len(t, a.Suggestions, 3, "only the top three groups are returned")
}

func TestAnalyzeNoErrors(t *testing.T) {
	a := Analyze(nil)
	assert.Equal(t, 0, a.TotalErrors)
	assert.Equal(t, "no errors", a.Summary)
	assert.Empty(t, a.Suggestions)
}

func TestFromDiffUnknownPatternSuggestsCorrection(t *testing.T) {
	d := match.Diff{Type: match.PatternFailed, PatternType: "unknown", Expected: "contian:foo", Path: "$.x"}
	e := FromDiff(d)
	assert.Equal(t, "pattern_failed", e.Type)
	assert.Contains(t, e.Suggestion, "contains")
}

func TestDetectAntiPatternsSingularArrayElement(t *testing.T) {
	raw := map[string]any{
		"match:arrayElement": map[string]any{"type": "match:type:string"},
	}
	warnings := DetectAntiPatterns(raw)
	found := false
	for _, w := range warnings {
		if w.Message == `"match:arrayElement" looks like a typo of "match:arrayElements"` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectAntiPatternsMissingPrefix(t *testing.T) {
	raw := map[string]any{"name": "contains:foo"}
	warnings := DetectAntiPatterns(raw)
	assert.NotEmpty(t, warnings)
}

func TestDetectAntiPatternsMisspelling(t *testing.T) {
	raw := map[string]any{"name": "match:aproximately:5:0.1"}
	warnings := DetectAntiPatterns(raw)
	found := false
	for _, w := range warnings {
		if w.Message == `"aproximately" looks like a misspelling of "approximately"` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectAntiPatternsCapitalizedType(t *testing.T) {
	raw := map[string]any{"name": "match:type:String"}
	warnings := DetectAntiPatterns(raw)
	assert.NotEmpty(t, warnings)
}

func TestDetectAntiPatternsBareComparisonToken(t *testing.T) {
	raw := map[string]any{"op": ">"}
	warnings := DetectAntiPatterns(raw)
	assert.NotEmpty(t, warnings)
}

func TestNearestOperatorAlias(t *testing.T) {
	name, score := NearestOperator("gt:5")
	assert.Equal(t, "greaterThan", name)
	assert.Equal(t, 1.0, score)
}

func TestNearestOperatorFuzzy(t *testing.T) {
	name, score := NearestOperator("contian:foo")
	assert.Equal(t, "contains", name)
	assert.Greater(t, score, 0.4)
}

func TestNearestOperatorNoMatch(t *testing.T) {
	name, _ := NearestOperator("zzzzzzzzzzzzzzzzzzzz")
	assert.Equal(t, "", name)
}
