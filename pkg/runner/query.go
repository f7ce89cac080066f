package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridctl/mcp-aegis/pkg/mcpwire"
	"github.com/gridctl/mcp-aegis/pkg/session"
)

// QueryResult is the outcome of one ad-hoc tool invocation issued by
// QueryMode (spec §6: "query [tool-name] [json-args]").
type QueryResult struct {
	Tools  []mcpwire.Tool       // populated when no tool name was given
	Call   *mcpwire.ToolCallResult // populated when a tool was called
}

// Query runs QueryMode against an already-connected session: with an empty
// toolName it lists tools, otherwise it calls toolName with the given
// (possibly nil) JSON-encoded arguments.
func Query(ctx context.Context, sess *session.Session, toolName string, argsJSON string) (*QueryResult, error) {
	if toolName == "" {
		tools, err := sess.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		return &QueryResult{Tools: tools}, nil
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("parsing tool arguments as JSON: %w", err)
		}
	}

	result, err := sess.CallTool(ctx, toolName, args)
	if err != nil {
		return nil, fmt.Errorf("calling tool %q: %w", toolName, err)
	}
	return &QueryResult{Call: result}, nil
}
