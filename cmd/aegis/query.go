package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gridctl/mcp-aegis/pkg/aegisconfig"
	"github.com/gridctl/mcp-aegis/pkg/logging"
	"github.com/gridctl/mcp-aegis/pkg/output"
	"github.com/gridctl/mcp-aegis/pkg/runner"
	"github.com/gridctl/mcp-aegis/pkg/session"
)

var (
	queryConfigPath string
	queryJSON       bool
	queryQuiet      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [tool-name] [json-args]",
	Short: "List tools or call one tool ad-hoc, without a test suite",
	Long: `Query spawns the configured server, performs the handshake, and either
lists its tools (when called with no arguments) or calls a single named
tool with JSON-encoded arguments and prints the result.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var toolName, argsJSON string
		if len(args) > 0 {
			toolName = args[0]
		}
		if len(args) > 1 {
			argsJSON = args[1]
		}
		return runQuery(toolName, argsJSON)
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryConfigPath, "config", "", "path to the server config file (defaults to aegis.config.json / conductor.config.json in cwd)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the raw result as JSON")
	queryCmd.Flags().BoolVar(&queryQuiet, "quiet", false, "suppress status logging")
}

func runQuery(toolName, argsJSON string) error {
	printer := output.New()
	logger := logging.WithTraceID(buildLogger(""), uuid.NewString())

	cfgPath := queryConfigPath
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

	sess, err := session.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("building session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeoutDuration()+30*time.Second)
	defer cancel()

	if !queryQuiet {
		printer.Info("connecting to server", "name", cfg.Name)
	}

	if err := sess.Connect(ctx, cfg.StartupTimeoutDuration()); err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer sess.Disconnect()

	result, err := runner.Query(ctx, sess, toolName, argsJSON)
	if err != nil {
		return err
	}

	return printQueryResult(printer, result)
}

func printQueryResult(printer *output.Printer, result *runner.QueryResult) error {
	if queryJSON {
		var payload any
		if result.Tools != nil {
			payload = result.Tools
		} else {
			payload = result.Call
		}
		b, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		printer.Println(string(b))
		return nil
	}

	if result.Tools != nil {
		printer.Section("TOOLS")
		for _, tool := range result.Tools {
			printer.Println(fmt.Sprintf("  %s - %s", tool.Name, tool.Description))
		}
		return nil
	}

	for _, c := range result.Call.Content {
		printer.Println(c.Text)
	}
	if result.Call.IsError {
		printer.Warn("tool call returned isError=true")
	}
	return nil
}
