package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gridctl/mcp-aegis/pkg/aegisconfig"
	"github.com/gridctl/mcp-aegis/pkg/diagnostic"
	"github.com/gridctl/mcp-aegis/pkg/logging"
	"github.com/gridctl/mcp-aegis/pkg/match"
	"github.com/gridctl/mcp-aegis/pkg/output"
	"github.com/gridctl/mcp-aegis/pkg/runner"
	"github.com/gridctl/mcp-aegis/pkg/session"
	"github.com/gridctl/mcp-aegis/pkg/suite"
	"github.com/gridctl/mcp-aegis/pkg/watch"
)

var (
	runConfigPath string
	runFilter     string
	runWatch      bool
	runJSON       bool
	runLogFile    string
)

var runCmd = &cobra.Command{
	Use:   "run [globs...]",
	Short: "Run one or more test suites against an MCP server",
	Long: `Run loads the server config, expands the given glob patterns into
YAML test-suite files, spawns the server once, and runs every selected
test against it in file order.

Globs default to "*.test.yaml" in the current directory when none are
given. Each glob is expanded with filepath.Glob, so recursive "**"
patterns are not expanded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(args)
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to the server config file (defaults to aegis.config.json / conductor.config.json in cwd)")
	runCmd.Flags().StringVar(&runFilter, "filter", "", "select suites/tests: plain substring, or /regex/flags")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "re-run the selected suites whenever a test file changes")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print machine-readable JSON instead of tables")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "write structured logs to this file (rotated via lumberjack) instead of stderr")
}

func runRun(globs []string) error {
	if len(globs) == 0 {
		globs = []string{"*.test.yaml"}
	}

	printer := output.New()
	logger := buildLogger(runLogFile)

	cfgPath := runConfigPath
	if cfgPath == "" {
		resolved, err := aegisconfig.ResolveDefaultPath(".")
		if err != nil {
			return err
		}
		cfgPath = resolved
	}
	cfg, err := aegisconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	filter, err := runner.ParseFilter(runFilter)
	if err != nil {
		return err
	}

	files, err := expandGlobs(globs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		printer.Warn("no test files matched", "globs", globs)
		return nil
	}

	execute := func() (bool, error) {
		runLogger := logging.WithTraceID(logger, uuid.NewString())
		return executeSuites(cfg, files, filter, printer, runLogger)
	}

	if !runWatch {
		allPassed, err := execute()
		if err != nil {
			return err
		}
		if !allPassed {
			os.Exit(1)
		}
		return nil
	}

	w := watch.NewWatcher(files, func() error {
		_, err := execute()
		return err
	})
	w.SetLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return w.Watch(ctx)
}

func expandGlobs(globs []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", g, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// executeSuites connects once, runs every loaded suite against the same
// session, and reports results. The first return value is false if any
// non-skipped test failed or a suite aborted.
func executeSuites(cfg *aegisconfig.ServerConfig, files []string, filter *runner.Filter, printer *output.Printer, logger *slog.Logger) (bool, error) {
	sess, err := session.New(cfg, logger)
	if err != nil {
		return false, fmt.Errorf("building session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeoutDuration()+30*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, cfg.StartupTimeoutDuration()); err != nil {
		printer.Error("server failed to start", "error", err)
		return false, nil
	}
	defer sess.Disconnect()

	r := runner.New(sess)

	var suiteRows []output.SuiteRow
	allPassed := true

	for _, path := range files {
		s, err := suite.Load(path)
		if err != nil {
			printer.Error("failed to load suite", "file", path, "error", err)
			allPassed = false
			continue
		}

		start := time.Now()
		result := r.RunSuite(ctx, s, filter)
		elapsed := time.Since(start)

		if !result.Passed() {
			allPassed = false
		}

		printer.Section(s.Description)
		printSuiteResult(printer, result, runJSON)

		passed, failed, skipped := tally(result)
		suiteRows = append(suiteRows, output.SuiteRow{
			Description: s.Description,
			Passed:      passed,
			Failed:      failed,
			Skipped:     skipped,
			Duration:    elapsed.Round(time.Millisecond).String(),
		})
	}

	printer.Summary(suiteRows)
	return allPassed, nil
}

func tally(result runner.SuiteResult) (passed, failed, skipped int) {
	for _, tr := range result.Results {
		switch {
		case tr.Skipped:
			skipped++
		case tr.Passed:
			passed++
		default:
			failed++
		}
	}
	return
}

func printSuiteResult(printer *output.Printer, result runner.SuiteResult, asJSON bool) {
	if asJSON {
		printJSONResult(printer, result)
		return
	}

	var rows []output.TestRow
	for _, tr := range result.Results {
		status := "PASS"
		detail := ""
		switch {
		case tr.Skipped:
			status = "SKIP"
		case tr.RuntimeErr != nil:
			status = "FAIL"
			detail = tr.RuntimeErr.Error()
		case !tr.Passed:
			status = "FAIL"
			diffs := append(asDiagnostic(tr.ResponseDiffs), asDiagnostic(tr.StderrDiffs)...)
			if len(diffs) > 0 {
				detail = diffs[0].Message
			}
		}
		rows = append(rows, output.TestRow{
			It:       tr.It,
			Status:   status,
			Duration: tr.Duration.Round(time.Microsecond).String(),
			Detail:   detail,
		})
	}
	printer.Tests(rows)
}

func asDiagnostic(diffs []match.Diff) []diagnostic.DiagnosticError {
	out := make([]diagnostic.DiagnosticError, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, diagnostic.FromDiff(d))
	}
	return out
}

func printJSONResult(printer *output.Printer, result runner.SuiteResult) {
	type jsonTest struct {
		It       string                    `json:"it"`
		Status   string                    `json:"status"`
		Duration string                    `json:"duration"`
		Errors   []diagnostic.DiagnosticError `json:"errors,omitempty"`
	}
	var out []jsonTest
	for _, tr := range result.Results {
		status := "pass"
		switch {
		case tr.Skipped:
			status = "skip"
		case !tr.Passed:
			status = "fail"
		}
		jt := jsonTest{It: tr.It, Status: status, Duration: tr.Duration.String()}
		jt.Errors = append(jt.Errors, asDiagnostic(tr.ResponseDiffs)...)
		jt.Errors = append(jt.Errors, asDiagnostic(tr.StderrDiffs)...)
		out = append(out, jt)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		printer.Error("failed to marshal JSON result", "error", err)
		return
	}
	printer.Println(string(b))
}

func buildLogger(logFile string) *slog.Logger {
	cfg := logging.DefaultConfig()
	if logFile != "" {
		cfg.Output = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
	}
	return logging.NewStructuredLogger(cfg)
}
