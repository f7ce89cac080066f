// Package session orchestrates a single MCP server child process: the
// handshake, id-paired request/response exchange, and per-test stderr
// isolation sitting on top of pkg/stdio's transport primitives.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gridctl/mcp-aegis/pkg/aegisconfig"
	"github.com/gridctl/mcp-aegis/pkg/logging"
	"github.com/gridctl/mcp-aegis/pkg/mcpwire"
	"github.com/gridctl/mcp-aegis/pkg/stdio"
)

// tracer reports spans for the handshake and every request/response
// exchange. It uses the global TracerProvider (installed in cmd/aegis via
// the otel SDK); with no provider installed it is the otel no-op tracer,
// so a Session never needs to know whether tracing is actually wired up.
var tracer = otel.Tracer("github.com/gridctl/mcp-aegis/pkg/session")

// startSpan begins a span and returns the derived context alongside it.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err (if any) on span and closes it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// acceptedProtocolRange is the range of MCP protocolVersion strings this
// tester treats as compatible during the handshake, expressed as a semver
// constraint over the date-coded version reinterpreted as YYYY.MM.DD; this
// accepts older and newer 2024-11-05-style servers without requiring an
// exact string match, which a byte-for-byte comparison would demand.
const acceptedProtocolRange = ">= 2024.1.1"

// Session owns one child MCP server process for its whole lifetime: it is
// not reconnected between tests in the same suite.
type Session struct {
	name string

	stream  *stdio.StreamBuffer
	proc    *stdio.ProcessManager
	handler *stdio.MessageHandler

	logger *slog.Logger

	requestTimeout time.Duration
	nextID         atomic.Int64

	mu          sync.Mutex
	connected   bool
	initialized bool
	serverInfo  mcpwire.ServerInfo
	tools       []mcpwire.Tool
}

// New creates a Session for the given server config. Nothing is spawned
// until Connect is called.
func New(cfg *aegisconfig.ServerConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	stream, err := stdio.NewStreamBuffer(cfg.ReadyPattern)
	if err != nil {
		return nil, fmt.Errorf("building stream buffer: %w", err)
	}

	env := stdio.MergeEnv(cfg.Env)
	proc := stdio.NewProcessManager(cfg.CommandLine(), cfg.Cwd, env, stream, logger)
	handler := stdio.NewMessageHandler(proc, stream)

	timeout := mcpwire.DefaultRequestTimeout

	return &Session{
		name:           cfg.Name,
		stream:         stream,
		proc:           proc,
		handler:        handler,
		logger:         logger,
		requestTimeout: timeout,
	}, nil
}

// Connect starts the child process, waits for readiness, and performs the
// MCP initialize/notifications-initialized handshake.
func (s *Session) Connect(ctx context.Context, startupTimeout time.Duration) (err error) {
	ctx, span := startSpan(ctx, "session.Connect", attribute.String("server.name", s.name))
	defer func() { endSpan(span, err) }()

	if startupTimeout <= 0 {
		startupTimeout = mcpwire.DefaultStartupTimeout
	}

	deadline := time.Now().Add(startupTimeout)
	connectCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err = s.proc.Start(connectCtx); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	if err = s.awaitReady(connectCtx); err != nil {
		return err
	}

	if err = s.handshake(connectCtx); err != nil {
		return err
	}

	return nil
}

func (s *Session) awaitReady(ctx context.Context) error {
	if s.stream.GetReadyStatus() {
		return nil
	}
	ticker := time.NewTicker(mcpwire.DefaultReadyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server startup timed out")
		case <-s.proc.Exited():
			return fmt.Errorf("server process exited before becoming ready")
		case <-ticker.C:
			if s.stream.GetReadyStatus() {
				return nil
			}
		}
	}
}

func (s *Session) handshake(ctx context.Context) error {
	params := mcpwire.InitializeParams{
		ProtocolVersion: mcpwire.ProtocolVersion,
		ClientInfo:      mcpwire.ClientInfo{Name: "mcp-aegis", Version: "0.1.0"},
		Capabilities:    mcpwire.Capabilities{},
	}

	var result mcpwire.InitializeResult
	if err := s.request(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	if !compatibleProtocolVersion(result.ProtocolVersion) {
		s.logger.Warn("server reports unexpected protocol version", "version", result.ProtocolVersion)
	}

	s.mu.Lock()
	s.serverInfo = result.ServerInfo
	s.mu.Unlock()

	notif, err := mcpwire.NewNotification("notifications/initialized", nil)
	if err != nil {
		return err
	}
	if err := s.handler.SendMessage(notif); err != nil {
		return fmt.Errorf("sending initialized notification: %w", err)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// compatibleProtocolVersion accepts any protocolVersion string that parses
// as a date-coded version within acceptedProtocolRange; unparseable
// versions are tolerated (servers are not required to use the date-coded
// scheme) and reported as compatible. The caller only logs an incompatible
// version, never treating it as a hard failure — the spec's
// handshake failure modes are about transport/timeout errors, not about
// version skew.
func compatibleProtocolVersion(v string) bool {
	normalized := normalizeDateVersion(v)
	if normalized == "" {
		return true
	}
	sv, err := semver.NewVersion(normalized)
	if err != nil {
		return true
	}
	constraint, err := semver.NewConstraint(acceptedProtocolRange)
	if err != nil {
		return true
	}
	return constraint.Check(sv)
}

func normalizeDateVersion(v string) string {
	// "2024-11-05" -> "2024.11.5"
	var y, m, d int
	if n, err := fmt.Sscanf(v, "%d-%d-%d", &y, &m, &d); err != nil || n != 3 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", y, m, d)
}

// request sends a JSON-RPC request, reads exactly one response, asserts id
// equality, and decodes the result into out (if non-nil).
func (s *Session) request(ctx context.Context, method string, params any, out any) (err error) {
	ctx, span := startSpan(ctx, "session.request", attribute.String("mcp.method", method))
	defer func() { endSpan(span, err) }()

	id := s.nextID.Add(1)
	idBytes, _ := json.Marshal(id)

	req, err := mcpwire.NewRequest(idBytes, method, params)
	if err != nil {
		return err
	}
	if err = s.handler.SendMessage(req); err != nil {
		return err
	}

	raw, err := s.handler.ReadMessage(ctx, s.requestTimeout)
	if err != nil {
		return err
	}

	var resp mcpwire.Response
	if err = json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	var gotID int64
	if len(resp.ID) > 0 {
		_ = json.Unmarshal(resp.ID, &gotID)
	}
	if gotID != id {
		err = fmt.Errorf("response id mismatch: want %d, got %d", id, gotID)
		return err
	}

	if resp.Error != nil {
		err = fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		return err
	}

	if out != nil && len(resp.Result) > 0 {
		if err = json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

// Request sends an arbitrary JSON-RPC method and returns the raw result
// bytes (or the error). Unlike request, it does not compare the response id
// with the request id.
func (s *Session) Request(ctx context.Context, method string, params any) (result json.RawMessage, err error) {
	ctx, span := startSpan(ctx, "session.Request", attribute.String("mcp.method", method))
	defer func() { endSpan(span, err) }()

	id := s.nextID.Add(1)
	idBytes, _ := json.Marshal(id)

	req, err := mcpwire.NewRequest(idBytes, method, params)
	if err != nil {
		return nil, err
	}
	if err = s.handler.SendMessage(req); err != nil {
		return nil, err
	}

	raw, err := s.handler.ReadMessage(ctx, s.requestTimeout)
	if err != nil {
		return nil, err
	}

	var resp mcpwire.Response
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		err = fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		return nil, err
	}
	return resp.Result, nil
}

// ListTools calls tools/list and caches the result.
func (s *Session) ListTools(ctx context.Context) ([]mcpwire.Tool, error) {
	var result mcpwire.ToolsListResult
	if err := s.request(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tools = result.Tools
	s.mu.Unlock()
	return result.Tools, nil
}

// CallTool calls tools/call with the given name and arguments.
func (s *Session) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcpwire.ToolCallResult, error) {
	params := mcpwire.ToolCallParams{Name: name, Arguments: arguments}
	var result mcpwire.ToolCallResult
	if err := s.request(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Call sends a request with the given method and raw JSON params and
// returns the decoded response envelope — used by TestRunner, which needs
// the raw Response (including error) to deep-match against expectations.
func (s *Session) Call(ctx context.Context, method string, params json.RawMessage) (resp *mcpwire.Response, err error) {
	ctx, span := startSpan(ctx, "session.Call", attribute.String("mcp.method", method))
	defer func() { endSpan(span, err) }()

	id := s.nextID.Add(1)
	idBytes, _ := json.Marshal(id)

	req := mcpwire.Request{JSONRPC: "2.0", ID: idBytes, Method: method, Params: params}
	if err = s.handler.SendMessage(req); err != nil {
		return nil, err
	}

	raw, err := s.handler.ReadMessage(ctx, s.requestTimeout)
	if err != nil {
		return nil, err
	}

	var result mcpwire.Response
	if err = json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// GetStderr returns the stderr accumulated since the last ClearStderr.
func (s *Session) GetStderr() string { return s.stream.GetStderr() }

// ClearStderr resets the per-test stderr accumulator.
func (s *Session) ClearStderr() { s.stream.ClearStderr() }

// ServerInfo returns the server info recorded during the handshake.
func (s *Session) ServerInfo() mcpwire.ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Name returns the configured server name this session was created for.
func (s *Session) Name() string { return s.name }

// Disconnect cancels all pending reads, closes stdin, and stops the child
// process. Safe to call multiple times.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	s.handler.CancelAllReads()
	if !wasConnected {
		return nil
	}
	return s.proc.Stop()
}
