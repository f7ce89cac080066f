// Package suite loads and validates YAML test files (spec §6) and compiles
// their free-form expectation trees into pkg/match.Expected values ready
// for pkg/runner to execute against a live session.
package suite

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridctl/mcp-aegis/pkg/match"
)

// StderrExpectation is the compiled form of a test's optional expect.stderr
// field.
type StderrExpectation struct {
	Empty   bool   // "toBeEmpty": accumulated stderr must be empty after trim
	Pattern string // otherwise: a match.Evaluate pattern (without "match:" prefix)
}

// TestCase is one compiled test within a TestSuite.
type TestCase struct {
	Index          int
	It             string
	RequestMethod  string
	RequestParams  json.RawMessage
	ExpectResponse match.Expected
	ExpectStderr   *StderrExpectation

	// RawExpectResponse is retained for the static anti-pattern analyzers,
	// which operate on the tree before compilation.
	RawExpectResponse any
}

// TestSuite is one loaded and validated YAML file.
type TestSuite struct {
	Description string
	FilePath    string
	Tests       []TestCase
}

type rawFile struct {
	Description string    `yaml:"description"`
	Tests       []rawTest `yaml:"tests"`
}

type rawTest struct {
	It      string         `yaml:"it"`
	Request map[string]any `yaml:"request"`
	Expect  rawExpect      `yaml:"expect"`
}

type rawExpect struct {
	Response any `yaml:"response"`
	Stderr   any `yaml:"stderr"`
}

// Load reads and validates path, naming the missing/invalid field and test
// index on any error (spec §6.2).
func Load(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test file: %w", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML in %s: %w", path, err)
	}

	if raw.Description == "" {
		return nil, fmt.Errorf("%s: missing required field \"description\"", path)
	}

	suite := &TestSuite{Description: raw.Description, FilePath: path}
	for i, rt := range raw.Tests {
		tc, err := compileTest(i, rt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		suite.Tests = append(suite.Tests, tc)
	}
	return suite, nil
}

func compileTest(index int, rt rawTest) (TestCase, error) {
	if rt.It == "" {
		return TestCase{}, fmt.Errorf("test %d: missing required field \"it\"", index)
	}
	if rt.Request == nil {
		return TestCase{}, fmt.Errorf("test %d (%q): missing required field \"request\"", index, rt.It)
	}

	jsonrpcVal, _ := rt.Request["jsonrpc"].(string)
	if jsonrpcVal != "2.0" {
		return TestCase{}, fmt.Errorf("test %d (%q): request.jsonrpc must equal \"2.0\"", index, rt.It)
	}

	method, _ := rt.Request["method"].(string)
	if method == "" {
		return TestCase{}, fmt.Errorf("test %d (%q): missing required field \"request.method\"", index, rt.It)
	}

	if rt.Expect.Response == nil {
		return TestCase{}, fmt.Errorf("test %d (%q): missing required field \"expect.response\"", index, rt.It)
	}

	var paramsRaw json.RawMessage
	if p, ok := rt.Request["params"]; ok && p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return TestCase{}, fmt.Errorf("test %d (%q): encoding request.params: %w", index, rt.It, err)
		}
		paramsRaw = b
	}

	tc := TestCase{
		Index:             index,
		It:                rt.It,
		RequestMethod:     method,
		RequestParams:     paramsRaw,
		ExpectResponse:    match.Compile(rt.Expect.Response),
		RawExpectResponse: rt.Expect.Response,
	}

	if rt.Expect.Stderr != nil {
		se, err := compileStderr(rt.Expect.Stderr)
		if err != nil {
			return TestCase{}, fmt.Errorf("test %d (%q): %w", index, rt.It, err)
		}
		tc.ExpectStderr = se
	}

	return tc, nil
}

func compileStderr(raw any) (*StderrExpectation, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expect.stderr must be a string")
	}
	if s == "toBeEmpty" {
		return &StderrExpectation{Empty: true}, nil
	}
	pattern := s
	const prefix = "match:"
	if len(pattern) > len(prefix) && pattern[:len(prefix)] == prefix {
		pattern = pattern[len(prefix):]
	}
	return &StderrExpectation{Pattern: pattern}, nil
}
