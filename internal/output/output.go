// Package output writes short, marked status lines for CLI commands.
package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Marks prefixed to status lines.
const (
	MarkSuccess = "✓"
	MarkWarning = "!"
	MarkError   = "✗"
	MarkInfo    = "•"
)

// Writer provides formatted status output for the CLI.
type Writer struct {
	out     io.Writer
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	key     lipgloss.Style
}

// New creates a Writer. With noColor the marks are printed unstyled.
func New(out io.Writer, noColor bool) *Writer {
	w := &Writer{
		out:     out,
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		failure: lipgloss.NewStyle(),
		key:     lipgloss.NewStyle(),
	}
	if !noColor {
		w.success = w.success.Foreground(lipgloss.Color("#22C55E"))
		w.warning = w.warning.Foreground(lipgloss.Color("#EAB308"))
		w.failure = w.failure.Foreground(lipgloss.Color("#EF4444"))
		w.key = w.key.Foreground(lipgloss.Color("#6B7280"))
	}
	return w
}

// Status prints msg after mark. An empty mark indents the line instead.
// Errors from writing are ignored for console output.
func (w *Writer) Status(mark, msg string) {
	if mark != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", mark, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status(w.success.Render(MarkSuccess), msg)
}

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(w.warning.Render(MarkWarning), msg)
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(w.failure.Render(MarkError), msg)
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Info prints a neutral line.
func (w *Writer) Info(msg string) {
	w.Status(MarkInfo, msg)
}

// Infof prints a formatted neutral line.
func (w *Writer) Infof(format string, args ...any) {
	w.Info(fmt.Sprintf(format, args...))
}

// KeyValue prints an indented "key: value" line.
func (w *Writer) KeyValue(key, value string) {
	w.Status("", w.key.Render(key+":")+" "+value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
