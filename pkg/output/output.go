// Package output provides terminal reporting for test runs: structured
// logging plus pass/fail tables, themed green for pass and red for fail.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// Printer handles terminal output for a test run.
type Printer struct {
	out    io.Writer
	logger *log.Logger
	isTTY  bool
}

// New creates a Printer writing to stdout.
func New() *Printer {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Printer with a custom writer.
func NewWithWriter(w io.Writer) *Printer {
	isTTY := isTerminal(w)

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly, // HH:MM:SS
	})

	if isTTY {
		logger.SetStyles(resultStyles())
	}

	return &Printer{
		out:    w,
		logger: logger,
		isTTY:  isTTY,
	}
}

// isTerminal checks if the writer is a TTY (for color support).
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Info logs an info message with optional key-value pairs.
func (p *Printer) Info(msg string, keyvals ...any) {
	p.logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func (p *Printer) Warn(msg string, keyvals ...any) {
	p.logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func (p *Printer) Error(msg string, keyvals ...any) {
	p.logger.Error(msg, keyvals...)
}

// Debug logs a debug message with optional key-value pairs.
func (p *Printer) Debug(msg string, keyvals ...any) {
	p.logger.Debug(msg, keyvals...)
}

// SetDebug enables debug-level logging.
func (p *Printer) SetDebug(enabled bool) {
	if enabled {
		p.logger.SetLevel(log.DebugLevel)
	} else {
		p.logger.SetLevel(log.InfoLevel)
	}
}

// Banner prints the ASCII logo with version information.
func (p *Printer) Banner(ver string) {
	if !p.isTTY {
		fmt.Fprintf(p.out, "aegis %s\n\n", ver)
		return
	}

	green := lipgloss.NewStyle().Foreground(ColorGreen)
	white := lipgloss.NewStyle().Foreground(ColorWhite)
	muted := lipgloss.NewStyle().Foreground(ColorMuted)

	logo := []string{
		` _____          _____ `,
		`|  _  |___ ___ |   __|___ ___`,
		`|     | -_| . ||  |  |_ -|_ -|`,
		`|__|__|___|_  ||_____|___|___|`,
		`          |___|`,
	}

	for _, line := range logo {
		fmt.Fprintln(p.out, green.Render(line))
	}

	fmt.Fprintf(p.out, "\n  %s %s\n\n", muted.Render("version"), white.Render(ver))
}

// ResultLine prints a single "✓ PASS" / "✗ FAIL" line for one test.
func (p *Printer) ResultLine(it string, passed bool) {
	if !p.isTTY {
		mark := "PASS"
		if !passed {
			mark = "FAIL"
		}
		fmt.Fprintf(p.out, "[%s] %s\n", mark, it)
		return
	}

	if passed {
		style := lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
		fmt.Fprintf(p.out, "%s %s\n", style.Render("✓ PASS"), it)
		return
	}
	style := lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	fmt.Fprintf(p.out, "%s %s\n", style.Render("✗ FAIL"), it)
}

// Print writes a message directly to output without formatting.
func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes a message with newline directly to output.
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}
