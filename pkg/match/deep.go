package match

import (
	"fmt"
	"reflect"
)

// Kind tags one node of a compiled Expected tree.
type Kind int

const (
	KindLiteral Kind = iota
	KindPattern
	KindObject
	KindArray
	KindArrayElements
	KindExtractField
	KindCrossField
)

// Expected is the compiled form of one YAML-decoded expectation node. The
// tagged-tree shape (rather than re-walking the raw any at match time) is
// the representation spec §9 calls for: reserved keys are resolved once,
// during Compile, so Match never has to re-detect them.
type Expected struct {
	Kind Kind

	Literal any    // KindLiteral
	Pattern string // KindPattern, with the "match:" prefix already stripped

	Fields  map[string]Expected // KindObject
	Partial bool                // KindObject/KindArray: match:partial is in effect for this subtree

	Elements []Expected // KindArray: positional

	ElementExpected *Expected // KindArrayElements: applied to every element

	ExtractFieldPath  string    // KindExtractField
	ExtractFieldValue *Expected // KindExtractField, optional "value:" companion

	CrossFieldExpr   string              // KindCrossField
	CrossFieldFields map[string]Expected // KindCrossField: sibling key/value pairs matched normally (spec §4.7 rule 3)
}

// Compile turns a YAML-decoded value (map[string]any / []any / scalar, the
// shape gopkg.in/yaml.v3 produces) into an Expected tree, resolving the
// reserved match:* object keys from spec §4.7 along the way.
func Compile(raw any) Expected {
	return compile(raw, false)
}

// compile is Compile plus an inherited partial flag: once a match:partial
// object is entered, every nested object and array compiled underneath it
// (that doesn't start its own stricter match:partial scope, which is a
// no-op since partial never turns back off) also matches in partial mode,
// per spec §4.7 rule 3 ("partial-match" propagates into nested objects and
// array elements).
func compile(raw any, partial bool) Expected {
	switch v := raw.(type) {
	case map[string]any:
		return compileObject(v, partial)
	case map[any]any:
		// yaml.v3 can hand back map[string]interface{} consistently when
		// decoding into interface{}, but be defensive about older decode
		// paths that produce map[any]any.
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprintf("%v", k)] = val
		}
		return compileObject(m, partial)
	case []any:
		elems := make([]Expected, len(v))
		for i, el := range v {
			elems[i] = compile(el, partial)
		}
		return Expected{Kind: KindArray, Elements: elems, Partial: partial}
	case string:
		if rest, ok := stripMatchPrefix(v); ok {
			return Expected{Kind: KindPattern, Pattern: rest}
		}
		return Expected{Kind: KindLiteral, Literal: v}
	default:
		return Expected{Kind: KindLiteral, Literal: v}
	}
}

func stripMatchPrefix(s string) (string, bool) {
	const prefix = "match:"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// compileObject compiles one object level. inheritPartial carries the
// partial flag down from an enclosing match:partial block so that nested
// objects and arrays also match in partial mode (spec §4.7 rule 3).
func compileObject(v map[string]any, inheritPartial bool) Expected {
	partial := inheritPartial
	if _, ok := v["match:partial"]; ok {
		partial = true
	}

	if _, ok := v["match:partial"]; ok {
		fields := make(map[string]Expected, len(v)-1)
		for k, val := range v {
			if k == "match:partial" {
				continue
			}
			fields[k] = compile(val, partial)
		}
		return Expected{Kind: KindObject, Fields: fields, Partial: true}
	}

	if av, ok := v["match:arrayElements"]; ok {
		elem := compile(av, partial)
		return Expected{Kind: KindArrayElements, ElementExpected: &elem}
	}

	if fp, ok := v["match:extractField"]; ok {
		path, _ := fp.(string)
		e := Expected{Kind: KindExtractField, ExtractFieldPath: path}
		if valRaw, hasVal := v["value"]; hasVal {
			ve := compile(valRaw, partial)
			e.ExtractFieldValue = &ve
		}
		return e
	}

	if cf, ok := v["match:crossField"]; ok {
		expr, _ := cf.(string)
		fields := make(map[string]Expected, len(v)-1)
		for k, val := range v {
			if k == "match:crossField" {
				continue
			}
			fields[k] = compile(val, partial)
		}
		return Expected{Kind: KindCrossField, CrossFieldExpr: expr, CrossFieldFields: fields}
	}

	fields := make(map[string]Expected, len(v))
	for k, val := range v {
		fields[k] = compile(val, partial)
	}
	return Expected{Kind: KindObject, Fields: fields, Partial: partial}
}

// DiffType classifies one mismatch, mirroring spec §3's DiagnosticError
// `type` enum so pkg/diagnostic can build DiagnosticError values directly
// from a Diff without re-deriving the kind from a message string.
type DiffType string

const (
	ValueMismatch  DiffType = "value_mismatch"
	TypeMismatch   DiffType = "type_mismatch"
	LengthMismatch DiffType = "length_mismatch"
	MissingField   DiffType = "missing_field"
	ExtraField     DiffType = "extra_field"
	PatternFailed  DiffType = "pattern_failed"
)

// Diff is one mismatch found while matching actual against an Expected
// tree, carrying everything pkg/diagnostic needs to build a DiagnosticError
// without re-parsing a message string.
type Diff struct {
	Type        DiffType
	Path        string
	Expected    any
	Actual      any
	Message     string
	PatternType string // set only when Type == PatternFailed
}

// IsMatch is the entry point: it reports whether actual satisfies exp, and
// every diff found (empty on a pass).
func IsMatch(actual any, exp Expected) (bool, []Diff) {
	diffs := matchValue(actual, exp, "$")
	return len(diffs) == 0, diffs
}

// Match returns only the diffs, for callers that already know whether the
// outcome matters and just want the detail.
func Match(actual any, exp Expected) []Diff {
	return matchValue(actual, exp, "$")
}

// MatchRooted behaves like Match but labels the root path with root instead
// of "$" — pkg/runner uses this to report diagnostic paths rooted at
// "response", per spec §4.9.
func MatchRooted(actual any, exp Expected, root string) []Diff {
	return matchValue(actual, exp, root)
}

func matchValue(actual any, exp Expected, path string) []Diff {
	switch exp.Kind {
	case KindLiteral:
		if !deepEqualValue(actual, exp.Literal) {
			if runtimeType(actual) != runtimeType(exp.Literal) {
				return []Diff{{Type: TypeMismatch, Path: path, Expected: exp.Literal, Actual: actual,
					Message: fmt.Sprintf("expected type %s, got %s", runtimeType(exp.Literal), runtimeType(actual))}}
			}
			return []Diff{{Type: ValueMismatch, Path: path, Expected: exp.Literal, Actual: actual,
				Message: fmt.Sprintf("expected %#v, got %#v", exp.Literal, actual)}}
		}
		return nil

	case KindPattern:
		res := Evaluate(exp.Pattern, actual)
		if !res.Pass {
			return []Diff{{Type: PatternFailed, Path: path, Expected: exp.Pattern, Actual: actual, PatternType: res.PatternType,
				Message: fmt.Sprintf("pattern %q (%s) failed against %#v", exp.Pattern, res.PatternType, actual)}}
		}
		return nil

	case KindObject:
		return matchObject(actual, exp, path)

	case KindArray:
		arr, ok := actual.([]any)
		if !ok {
			return []Diff{{Type: TypeMismatch, Path: path, Expected: "array", Actual: actual,
				Message: fmt.Sprintf("expected array, got %s", runtimeType(actual))}}
		}
		if exp.Partial {
			if len(arr) < len(exp.Elements) {
				return []Diff{{Type: LengthMismatch, Path: path, Expected: len(exp.Elements), Actual: len(arr),
					Message: fmt.Sprintf("expected array of at least length %d, got %d", len(exp.Elements), len(arr))}}
			}
		} else if len(arr) != len(exp.Elements) {
			return []Diff{{Type: LengthMismatch, Path: path, Expected: len(exp.Elements), Actual: len(arr),
				Message: fmt.Sprintf("expected array of length %d, got %d", len(exp.Elements), len(arr))}}
		}
		var diffs []Diff
		for i, ee := range exp.Elements {
			diffs = append(diffs, matchValue(arr[i], ee, fmt.Sprintf("%s[%d]", path, i))...)
		}
		return diffs

	case KindArrayElements:
		arr, ok := actual.([]any)
		if !ok {
			return []Diff{{Type: TypeMismatch, Path: path, Expected: "array", Actual: actual,
				Message: fmt.Sprintf("expected array, got %s", runtimeType(actual))}}
		}
		var diffs []Diff
		for i, el := range arr {
			diffs = append(diffs, matchValue(el, *exp.ElementExpected, fmt.Sprintf("%s[%d]", path, i))...)
		}
		return diffs

	case KindExtractField:
		v, ok := ExtractField(actual, exp.ExtractFieldPath)
		if !ok {
			return []Diff{{Type: MissingField, Path: path, Expected: exp.ExtractFieldPath, Actual: nil,
				Message: fmt.Sprintf("field %q not found for extractField", exp.ExtractFieldPath)}}
		}
		if exp.ExtractFieldValue != nil {
			return matchValue(v, *exp.ExtractFieldValue, fmt.Sprintf("%s.match:extractField(%s)", path, exp.ExtractFieldPath))
		}
		return nil

	case KindCrossField:
		var diffs []Diff
		ok, err := EvaluateCrossField(exp.CrossFieldExpr, actual)
		if err != nil {
			diffs = append(diffs, Diff{Type: PatternFailed, Path: path, Expected: exp.CrossFieldExpr, PatternType: "crossField",
				Message: err.Error()})
		} else if !ok {
			diffs = append(diffs, Diff{Type: PatternFailed, Path: path, Expected: exp.CrossFieldExpr, PatternType: "crossField",
				Message: fmt.Sprintf("cross-field expression %q failed", exp.CrossFieldExpr)})
		}
		if len(exp.CrossFieldFields) > 0 {
			diffs = append(diffs, matchObject(actual, Expected{Kind: KindObject, Fields: exp.CrossFieldFields}, path)...)
		}
		return diffs
	}
	return nil
}

// matchObject enforces strict extra-key failure unless match:partial was
// set at this level (spec Open Question #1: the source rejects unlisted
// actual keys by default).
func matchObject(actual any, exp Expected, path string) []Diff {
	m, ok := actual.(map[string]any)
	if !ok {
		return []Diff{{Type: TypeMismatch, Path: path, Expected: "object", Actual: actual,
			Message: fmt.Sprintf("expected object, got %s", runtimeType(actual))}}
	}

	var diffs []Diff
	for k, fe := range exp.Fields {
		av, exists := m[k]
		if !exists {
			diffs = append(diffs, Diff{Type: MissingField, Path: joinPath(path, k), Expected: fe.describe(),
				Message: "missing field"})
			continue
		}
		diffs = append(diffs, matchValue(av, fe, joinPath(path, k))...)
	}

	if !exp.Partial {
		for k, av := range m {
			if _, ok := exp.Fields[k]; !ok {
				diffs = append(diffs, Diff{Type: ExtraField, Path: joinPath(path, k), Actual: av,
					Message: "unexpected field (use match:partial to allow extra keys)"})
			}
		}
	}
	return diffs
}

// describe gives a short human label for an Expected node, used only when
// reporting a missing field (there is no actual value to show).
func (e Expected) describe() string {
	switch e.Kind {
	case KindPattern:
		return "match:" + e.Pattern
	case KindLiteral:
		return fmt.Sprintf("%v", e.Literal)
	case KindArray, KindArrayElements:
		return "array"
	default:
		return "object"
	}
}

func joinPath(base, key string) string {
	if base == "" || base == "$" {
		return "$." + key
	}
	return base + "." + key
}

func isNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// deepEqualValue compares two decoded values for structural equality,
// normalizing numeric types so a YAML int literal compares equal to a JSON
// float64 actual.
func deepEqualValue(a, b any) bool {
	if an, aok := isNumeric(a); aok {
		if bn, bok := isNumeric(b); bok {
			return an == bn
		}
	}

	switch bv := b.(type) {
	case map[string]any:
		av, ok := a.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range bv {
			av2, ok := av[k]
			if !ok || !deepEqualValue(av2, v) {
				return false
			}
		}
		return true
	case []any:
		av, ok := a.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range bv {
			if !deepEqualValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}
