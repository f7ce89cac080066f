package output

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TestRow is one rendered row of the per-test result table.
type TestRow struct {
	It       string
	Status   string // PASS, FAIL, SKIP
	Duration string // human-readable, e.g. "12ms"
	Detail   string // first diagnostic message on failure, empty otherwise
}

// SuiteRow is one rendered row of the final multi-suite summary table.
type SuiteRow struct {
	Description string
	Passed      int
	Failed      int
	Skipped     int
	Duration    string
}

// Tests prints the per-test result table for one suite.
func (p *Printer) Tests(rows []TestRow) {
	if len(rows) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(p.tableStyle())

	t.AppendHeader(table.Row{"", "Test", "Duration", "Detail"})

	for _, r := range rows {
		status := r.Status
		if p.isTTY {
			status = colorStatus(r.Status)
		}
		t.AppendRow(table.Row{status, r.It, r.Duration, r.Detail})
	}

	t.Render()
	p.Println()
}

// colorStatus applies pass/fail/skip coloring to a status marker.
func colorStatus(status string) string {
	var style lipgloss.Style
	switch status {
	case "PASS":
		style = lipgloss.NewStyle().Foreground(ColorGreen)
	case "FAIL":
		style = lipgloss.NewStyle().Foreground(ColorRed)
	case "SKIP":
		style = lipgloss.NewStyle().Foreground(ColorMuted)
	default:
		style = lipgloss.NewStyle().Foreground(ColorGray)
	}
	return style.Render(status)
}

// Summary prints the final per-suite summary table.
func (p *Printer) Summary(suites []SuiteRow) {
	if len(suites) == 0 {
		return
	}

	p.Section("SUMMARY")

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(p.tableStyle())

	t.AppendHeader(table.Row{"Suite", "Passed", "Failed", "Skipped", "Duration"})

	for _, s := range suites {
		failed := strconv.Itoa(s.Failed)
		if p.isTTY && s.Failed > 0 {
			failed = lipgloss.NewStyle().Foreground(ColorRed).Render(failed)
		}
		t.AppendRow(table.Row{s.Description, s.Passed, failed, s.Skipped, s.Duration})
	}

	t.Render()
	p.Println()
}

// tableStyle returns the standard green/red-themed table style.
func (p *Printer) tableStyle() table.Style {
	style := table.StyleRounded
	if p.isTTY {
		style.Color.Header = text.Colors{text.FgHiGreen, text.Bold}
		style.Color.Border = text.Colors{text.FgHiBlack}
	}
	style.Options.SeparateRows = false
	return style
}

// Section prints a section header.
func (p *Printer) Section(title string) {
	if p.isTTY {
		style := lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
		p.Println(style.Render(title))
	} else {
		p.Println(title)
	}
}
