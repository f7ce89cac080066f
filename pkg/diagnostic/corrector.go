package diagnostic

import (
	"strings"

	"github.com/gridctl/mcp-aegis/pkg/match"
)

// aliases maps common shorthand/alternate spellings straight to a known
// operator (or, for "negate", to the "not:" prefix), per spec §4.8.
var aliases = map[string]string{
	"gt":         "greaterThan",
	"substr":     "contains",
	"beginsWith": "startsWith",
	"size":       "arrayLength",
	"newer":      "dateAfter",
	"pluck":      "extractField",
	"negate":     "not",
	"today":      "dateAge:1d",
	"recent":     "dateAge:7d",
}

// NearestOperator suggests the closest known operator name (or alias
// target) for an unrecognized token, with a similarity score in [0,1].
// Returns ("", 0) when nothing is close enough to be useful.
func NearestOperator(token string) (string, float64) {
	base := strings.TrimPrefix(token, "match:")
	base = strings.TrimPrefix(base, "not:")
	if idx := strings.IndexByte(base, ':'); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "", 0
	}

	if target, ok := aliases[base]; ok {
		return target, 1.0
	}

	best := ""
	bestScore := 0.0
	for _, name := range match.KnownOperatorNames() {
		score := similarity(base, name)
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	if bestScore < 0.4 {
		return "", 0
	}
	return best, bestScore
}

// similarity converts Levenshtein edit distance into a [0,1] score,
// normalized by the longer string's length.
func similarity(a, b string) float64 {
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minInt(minInt(del, ins), sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
