package ui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorAccent   = "39"  // headers, active job
	ColorGreen    = "42"  // completed
	ColorYellow   = "220" // queued, warnings
	ColorRed      = "196" // failed, errors
	ColorGray     = "245" // labels
	ColorDarkGray = "238" // borders
)

// Styles holds all UI styles.
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Active  lipgloss.Style
	Panel   lipgloss.Style
	Border  lipgloss.Style

	// TableBorder frames run and file tables.
	TableBorder lipgloss.Border
}

// DefaultStyles returns styles for interactive terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Border:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		TableBorder: lipgloss.RoundedBorder(),
	}
}

// NoColorStyles returns unstyled components with ASCII table borders.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Active:  lipgloss.NewStyle(),
		Panel:   lipgloss.NewStyle(),
		Border:      lipgloss.NewStyle(),
		TableBorder: lipgloss.ASCIIBorder(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
