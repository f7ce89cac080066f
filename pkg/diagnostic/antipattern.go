package diagnostic

import (
	"regexp"
	"strings"

	"github.com/gridctl/mcp-aegis/pkg/match"
)

// Warning is one authoring-mistake finding from a static analyzer, raised
// before any test ever runs.
type Warning struct {
	Path    string
	Message string
}

var misspellings = map[string]string{
	"lenght":       "length",
	"aproximately": "approximately",
	"startWith":    "startsWith",
	"endWith":      "endsWith",
}

var bareOperatorTokens = map[string]bool{
	"=": true, "==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
}

var capitalizedTypes = map[string]string{
	"String": "string", "Number": "number", "Boolean": "boolean",
	"Array": "array", "Object": "object", "Undefined": "undefined",
	"Function": "function", "Symbol": "symbol", "BigInt": "bigint",
}

var (
	doubleEscapedRe = regexp.MustCompile(`\\\\[dDwWsS]`)
	quotedRe        = regexp.MustCompile(`^".*"$|^'.*'$`)
	knownOperatorSet = func() map[string]bool {
		m := map[string]bool{}
		for _, n := range match.KnownOperatorNames() {
			m[n] = true
		}
		return m
	}()
)

// DetectAntiPatterns walks a YAML-decoded expected-shape tree (the raw
// any, before match.Compile) and flags authoring mistakes that would
// otherwise silently produce confusing pattern_failed / unknown results.
func DetectAntiPatterns(raw any) []Warning {
	var warnings []Warning
	walkAntiPatterns(raw, "$", &warnings)
	return warnings
}

func walkAntiPatterns(v any, path string, out *[]Warning) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			checkReservedKeyTypo(k, path, out)
			childPath := path + "." + k
			if k == "match:arrayContains" {
				if s, ok := sub.(string); ok && strings.TrimSpace(s) == "" {
					*out = append(*out, Warning{Path: childPath, Message: "match:arrayContains has no value"})
				}
			}
			if k == "match:extractField" {
				if s, ok := sub.(string); ok && !strings.Contains(s, ".") && !strings.Contains(s, "[") {
					*out = append(*out, Warning{Path: childPath, Message: "match:extractField path has no dot notation; did you mean a nested field?"})
				}
			}
			walkAntiPatterns(sub, childPath, out)
		}
	case []any:
		for i, el := range val {
			walkAntiPatterns(el, pathIndex(path, i), out)
		}
	case string:
		checkStringAntiPatterns(val, path, out)
	}
}

func pathIndex(path string, i int) string {
	return path + "[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// checkReservedKeyTypo flags singular/misspelled reserved-key names, e.g.
// "match:arrayElement" instead of "match:arrayElements".
func checkReservedKeyTypo(key, path string, out *[]Warning) {
	if key == "match:arrayElement" {
		*out = append(*out, Warning{Path: path, Message: `"match:arrayElement" looks like a typo of "match:arrayElements"`})
	}
	if key == "match:partials" {
		*out = append(*out, Warning{Path: path, Message: `"match:partials" looks like a typo of "match:partial"`})
	}
}

func checkStringAntiPatterns(s, path string, out *[]Warning) {
	if bareOperatorTokens[strings.TrimSpace(s)] {
		*out = append(*out, Warning{Path: path, Message: "bare comparison token used as an operator; use crossField or a numeric operator instead"})
		return
	}

	if !strings.HasPrefix(s, "match:") {
		// Might still be a valid operator token missing its "match:" prefix.
		if name, _, ok := splitKnownOperator(s); ok {
			*out = append(*out, Warning{Path: path, Message: "looks like operator \"" + name + "\" but is missing the \"match:\" prefix"})
		}
		return
	}

	body := strings.TrimPrefix(s, "match:")
	body = strings.TrimPrefix(body, "not:")

	if quotedRe.MatchString(body) {
		*out = append(*out, Warning{Path: path, Message: "pattern argument looks quoted; remove the surrounding quotes"})
	}
	if doubleEscapedRe.MatchString(body) {
		*out = append(*out, Warning{Path: path, Message: "regex looks double-escaped (\\\\d instead of \\d)"})
	}
	if strings.Contains(body, ",") && !strings.Contains(body, ":") {
		*out = append(*out, Warning{Path: path, Message: "found a comma where a colon-separated argument was expected"})
	}

	for wrong, right := range misspellings {
		if strings.Contains(body, wrong) {
			*out = append(*out, Warning{Path: path, Message: `"` + wrong + `" looks like a misspelling of "` + right + `"`})
		}
	}

	if idx := strings.Index(body, "type:"); idx == 0 || strings.HasPrefix(body, "type:") {
		typeArg := strings.TrimPrefix(body, "type:")
		if right, known := capitalizedTypes[typeArg]; known {
			*out = append(*out, Warning{Path: path, Message: `type name should be lowercase: "` + typeArg + `" -> "` + right + `"`})
		}
	}

	name, args, ok := splitKnownOperator(body)
	if ok && args == "" && requiresArgs(name) {
		*out = append(*out, Warning{Path: path, Message: `operator "` + name + `" is missing its trailing ":<args>"`})
	}
}

// splitKnownOperator reports whether body begins with a recognized
// operator token, mirroring match's longest-prefix dispatch but operating
// on the known-names catalog only (no evaluation side effects).
func splitKnownOperator(body string) (name, args string, ok bool) {
	names := match.KnownOperatorNames()
	best := ""
	for _, n := range names {
		if strings.HasPrefix(body, n) && len(n) > len(best) {
			rest := body[len(n):]
			if rest == "" || rest[0] == ':' {
				best = n
			}
		}
	}
	if best == "" {
		return "", "", false
	}
	rest := body[len(best):]
	if len(rest) > 0 && rest[0] == ':' {
		rest = rest[1:]
	}
	return best, rest, true
}

var noArgOperators = map[string]bool{
	"stringEmpty": true, "stringNotEmpty": true, "exists": true, "dateValid": true,
}

func requiresArgs(name string) bool {
	return !noArgOperators[name]
}
