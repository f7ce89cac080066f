package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Pass/fail color theme: green for passing tests, red for failing ones.
var (
	ColorGreen = lipgloss.Color("#10b981") // PASS
	ColorRed   = lipgloss.Color("#f43f5e") // FAIL
	ColorWhite = lipgloss.Color("#fafaf9")
	ColorMuted = lipgloss.Color("#78716c") // SKIP / secondary text
	ColorGray  = lipgloss.Color("#a8a29e")
)

// resultStyles returns charmbracelet/log styles themed around pass/fail.
func resultStyles() *log.Styles {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(ColorGreen).
		Bold(true)

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Foreground(lipgloss.Color("#eab308")).
		Bold(true)

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(ColorRed).
		Bold(true)

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(ColorMuted)

	styles.Timestamp = lipgloss.NewStyle().
		Foreground(ColorMuted)

	styles.Key = lipgloss.NewStyle().
		Foreground(ColorGreen)

	styles.Value = lipgloss.NewStyle().
		Foreground(ColorGray)

	return styles
}
