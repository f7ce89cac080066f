// Package runner drives a loaded TestSuite against a live Session,
// recording pass/fail results per spec §4.9, and implements QueryMode, the
// ad-hoc single-tool-call path that shares the same Session code path.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gridctl/mcp-aegis/pkg/match"
	"github.com/gridctl/mcp-aegis/pkg/mcpwire"
	"github.com/gridctl/mcp-aegis/pkg/session"
	"github.com/gridctl/mcp-aegis/pkg/suite"
)

// Filter selects suites/tests by description or "it" text, either as a
// plain substring or a "/regex/flags" pattern (spec §6: "--filter
// STRING|/regex/[flags]").
type Filter struct {
	raw string
	re  *regexp.Regexp
}

// ParseFilter compiles s into a Filter. An empty string means "no filter".
func ParseFilter(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "/") {
		lastSlash := strings.LastIndex(s, "/")
		if lastSlash <= 0 {
			return nil, fmt.Errorf("invalid regex filter %q: missing closing slash", s)
		}
		pattern := s[1:lastSlash]
		flags := s[lastSlash+1:]
		if strings.Contains(flags, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex filter: %w", err)
		}
		return &Filter{raw: s, re: re}, nil
	}
	return &Filter{raw: s}, nil
}

// Match reports whether the filter selects a test by its suite description
// or its own "it" text.
func (f *Filter) Match(description, it string) bool {
	if f == nil {
		return true
	}
	if f.re != nil {
		return f.re.MatchString(description) || f.re.MatchString(it)
	}
	return strings.Contains(description, f.raw) || strings.Contains(it, f.raw)
}

// TestResult is the outcome of one executed test.
type TestResult struct {
	Index    int
	It       string
	Passed   bool
	Skipped  bool
	Duration time.Duration

	ResponseDiffs []match.Diff
	StderrDiffs   []match.Diff

	// RuntimeErr is set for timeouts, parse failures, or unexpected exits —
	// these count as test failures, not crashes (spec §7).
	RuntimeErr error
}

// SuiteResult is the outcome of running every (filtered) test in one suite.
type SuiteResult struct {
	Suite       *suite.TestSuite
	Results     []TestResult
	Aborted     bool
	AbortReason string
}

// Passed reports whether every non-skipped test in the suite passed.
func (r SuiteResult) Passed() bool {
	if r.Aborted {
		return false
	}
	for _, t := range r.Results {
		if !t.Skipped && !t.Passed {
			return false
		}
	}
	return true
}

// Runner executes suites against one already-connected Session.
type Runner struct {
	sess *session.Session
}

// New builds a Runner bound to sess. Connect must already have been called.
func New(sess *session.Session) *Runner {
	return &Runner{sess: sess}
}

// RunSuite executes every test in s that the filter selects, in file order.
// The process is never restarted mid-suite (spec §4.9).
func (r *Runner) RunSuite(ctx context.Context, s *suite.TestSuite, filter *Filter) SuiteResult {
	result := SuiteResult{Suite: s}
	for _, tc := range s.Tests {
		if !filter.Match(s.Description, tc.It) {
			result.Results = append(result.Results, TestResult{Index: tc.Index, It: tc.It, Skipped: true})
			continue
		}
		result.Results = append(result.Results, r.runTest(ctx, tc))
	}
	return result
}

func (r *Runner) runTest(ctx context.Context, tc suite.TestCase) TestResult {
	start := time.Now()
	tr := TestResult{Index: tc.Index, It: tc.It}

	r.sess.ClearStderr()

	resp, err := r.sess.Call(ctx, tc.RequestMethod, tc.RequestParams)
	if err != nil {
		tr.RuntimeErr = err
		tr.Duration = time.Since(start)
		return tr
	}

	actual := responseEnvelope(resp)
	tr.ResponseDiffs = match.MatchRooted(actual, tc.ExpectResponse, "response")

	if tc.ExpectStderr != nil {
		tr.StderrDiffs = matchStderr(tc.ExpectStderr, r.sess.GetStderr())
	}

	tr.Passed = len(tr.ResponseDiffs) == 0 && len(tr.StderrDiffs) == 0
	tr.Duration = time.Since(start)
	return tr
}

// responseEnvelope decodes a Response's result/error into the plain-any
// shape match.Compile trees are written against.
func responseEnvelope(resp *mcpwire.Response) any {
	out := map[string]any{}
	if len(resp.Result) > 0 {
		var v any
		if err := json.Unmarshal(resp.Result, &v); err == nil {
			out["result"] = v
		}
	}
	if resp.Error != nil {
		out["error"] = map[string]any{
			"code":    float64(resp.Error.Code),
			"message": resp.Error.Message,
		}
	}
	return out
}

func matchStderr(exp *suite.StderrExpectation, stderr string) []match.Diff {
	if exp.Empty {
		if strings.TrimSpace(stderr) != "" { // spec Open Question: trimmed, per source
			return []match.Diff{{
				Type:    match.ValueMismatch,
				Path:    "response.stderr",
				Actual:  stderr,
				Message: "expected stderr to be empty",
			}}
		}
		return nil
	}

	res := match.Evaluate(exp.Pattern, stderr)
	if !res.Pass {
		return []match.Diff{{
			Type:        match.PatternFailed,
			Path:        "response.stderr",
			Expected:    exp.Pattern,
			Actual:      stderr,
			PatternType: res.PatternType,
			Message:     fmt.Sprintf("stderr pattern %q failed", exp.Pattern),
		}}
	}
	return nil
}
