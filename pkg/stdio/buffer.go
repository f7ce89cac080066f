// Package stdio implements the child-process transport for an MCP server:
// line-delimited JSON-RPC framing over stdin/stdout, stderr accumulation
// with ready-pattern detection, process lifecycle, and a race-safe FIFO of
// pending reads.
package stdio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

// ParseError is emitted when a line of stdout could not be parsed as JSON.
// Snippet carries a trimmed preview of the offending line for diagnostics.
type ParseError struct {
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON message: %v (near %q)", e.Cause, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// StreamBuffer accumulates raw byte chunks from a child process's stdout and
// stderr, extracting complete JSON-RPC lines from stdout and watching
// stderr for an optional ready pattern.
//
// Stdout bytes that do not yet contain a trailing newline are retained
// across calls — a single logical message may arrive split across many
// chunks, and residual bytes must survive until the rest of the line shows
// up. The stdout buffer is reset only by consuming complete lines; it is
// never truncated mid-session.
type StreamBuffer struct {
	mu sync.Mutex

	stdout bytes.Buffer
	stderr bytes.Buffer

	readyPattern *regexp.Regexp
	ready        bool

	onMessage    func(json.RawMessage)
	onParseError func(*ParseError)
	onReady      func()
}

// NewStreamBuffer creates a StreamBuffer. readyPattern may be empty, in
// which case GetReadyStatus always reports true (no pattern configured).
func NewStreamBuffer(readyPattern string) (*StreamBuffer, error) {
	sb := &StreamBuffer{ready: readyPattern == ""}
	if readyPattern != "" {
		re, err := regexp.Compile(readyPattern)
		if err != nil {
			return nil, fmt.Errorf("compiling ready pattern: %w", err)
		}
		sb.readyPattern = re
	}
	return sb, nil
}

// OnMessage registers the callback invoked for each successfully parsed
// stdout line. Must be set before ProcessStdout is ever called from another
// goroutine, and is expected to be race-safe with respect to the handler's
// own locking (pkg/session.Session installs this once, at construction).
func (sb *StreamBuffer) OnMessage(f func(json.RawMessage)) { sb.onMessage = f }

// OnParseError registers the callback invoked when a stdout line fails to
// parse as JSON.
func (sb *StreamBuffer) OnParseError(f func(*ParseError)) { sb.onParseError = f }

// OnReady registers the callback invoked exactly once, the first time the
// ready pattern matches accumulated stderr.
func (sb *StreamBuffer) OnReady(f func()) { sb.onReady = f }

// ProcessStdout appends a raw chunk to the stdout buffer and extracts every
// complete line it now contains, emitting message/parseError per line.
func (sb *StreamBuffer) ProcessStdout(chunk []byte) {
	sb.mu.Lock()
	sb.stdout.Write(chunk)

	var lines [][]byte
	for {
		buffered := sb.stdout.Bytes()
		idx := bytes.IndexByte(buffered, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, buffered[:idx])
		lines = append(lines, line)
		sb.stdout.Next(idx + 1)
	}
	sb.mu.Unlock()

	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if !json.Valid(trimmed) {
			if sb.onParseError != nil {
				sb.onParseError(&ParseError{Snippet: snippet(trimmed), Cause: fmt.Errorf("invalid JSON")})
			}
			continue
		}
		if sb.onMessage != nil {
			sb.onMessage(json.RawMessage(append([]byte(nil), trimmed...)))
		}
	}
}

// ProcessStderr appends a raw chunk to the stderr buffer and, if a ready
// pattern is configured and not yet matched, tests it against the
// cumulative buffer.
func (sb *StreamBuffer) ProcessStderr(chunk []byte) {
	sb.mu.Lock()
	sb.stderr.Write(chunk)
	fireReady := false
	if sb.readyPattern != nil && !sb.ready {
		if sb.readyPattern.Match(sb.stderr.Bytes()) {
			sb.ready = true
			fireReady = true
		}
	}
	sb.mu.Unlock()

	if fireReady && sb.onReady != nil {
		sb.onReady()
	}
}

// GetStderr returns the accumulated stderr text.
func (sb *StreamBuffer) GetStderr() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.stderr.String()
}

// ClearStderr empties the stderr buffer. Called between tests; the stdout
// buffer is never cleared this way, only by consuming complete lines.
func (sb *StreamBuffer) ClearStderr() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.stderr.Reset()
}

// GetReadyStatus reports whether the server is considered ready: true
// immediately if no ready pattern was configured, otherwise true only once
// the pattern has matched.
func (sb *StreamBuffer) GetReadyStatus() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.ready
}

// ResetState clears both buffers and the ready flag. Not used in normal
// per-test operation (only stderr is cleared there); provided for tests and
// for a future re-connect path.
func (sb *StreamBuffer) ResetState() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.stdout.Reset()
	sb.stderr.Reset()
	sb.ready = sb.readyPattern == nil
}

func snippet(b []byte) string {
	const max = 120
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
