package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette.
//
//nolint:gochecknoglobals // Shared style palette.
var (
	ColorHeader   = lipgloss.Color("12")
	ColorLabel    = lipgloss.Color("245")
	ColorValue    = lipgloss.Color("255")
	ColorMuted    = lipgloss.Color("241")
	ColorOK       = lipgloss.Color("10")
	ColorWarning  = lipgloss.Color("11")
	ColorCritical = lipgloss.Color("9")
	ColorSpinner  = lipgloss.Color("205")
	ColorBorder   = lipgloss.Color("238")
)

// Shared text styles.
//
//nolint:gochecknoglobals // Shared style palette.
var (
	HeaderStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	LabelStyle    = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle    = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	SubtleStyle   = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	OKStyle       = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	CriticalStyle = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
)

// BoxStyle frames the final report.
//
//nolint:gochecknoglobals // Shared style palette.
var BoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

const (
	defaultWidth  = 80
	borderPadding = 2
)

// IsTTY reports whether stdout is an interactive terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TableHeaderStyle styles table headers.
//
//nolint:gochecknoglobals // Shared style palette.
var TableHeaderStyle = lipgloss.NewStyle().
	Foreground(ColorHeader).
	Bold(true).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(ColorBorder).
	BorderBottom(true)
