package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/fsaudit/internal/async"
)

// maxPathWidth truncates the current path in job output.
const maxPathWidth = 60

// JobRenderer displays successive snapshots of one scan job.
type JobRenderer interface {
	// Update shows a snapshot taken while polling.
	Update(job async.Job)
	// Finish shows the terminal snapshot.
	Finish(job async.Job)
}

// NewJobRenderer returns a panel renderer for terminals and a line renderer otherwise.
func NewJobRenderer(cfg Config) JobRenderer {
	if cfg.Plain() {
		return NewPlainJobRenderer(cfg)
	}
	return NewPanelJobRenderer(cfg)
}

// PlainJobRenderer prints one line per changed snapshot.
type PlainJobRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewPlainJobRenderer creates a line renderer.
func NewPlainJobRenderer(cfg Config) *PlainJobRenderer {
	return &PlainJobRenderer{out: cfg.Output}
}

// Update implements JobRenderer. Identical consecutive lines are suppressed.
func (r *PlainJobRenderer) Update(job async.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := FormatJobLine(job)
	if line == r.last {
		return
	}
	r.last = line
	_, _ = fmt.Fprintln(r.out, line)
}

// Finish implements JobRenderer.
func (r *PlainJobRenderer) Finish(job async.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, FormatJobSummary(job))
}

// FormatJobLine renders a snapshot as
// "[running] Indexed 1,234 files | 2 errors | docs/report.pdf".
func FormatJobLine(job async.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | %s", job.Status, job.Message, plural(job.ErrorCount, "error"))
	if job.Status.IsActive() && job.CurrentPath != "" {
		b.WriteString(" | ")
		b.WriteString(truncatePath(job.CurrentPath, maxPathWidth))
	}
	return b.String()
}

// FormatJobSummary renders the final line of a job.
func FormatJobSummary(job async.Job) string {
	switch job.Status {
	case async.JobCompleted:
		return fmt.Sprintf("Scan complete: %s, %s in %s (run %d)",
			plural(job.ProcessedFiles, "file"),
			plural(job.ErrorCount, "error"),
			formatSeconds(job.DurationSeconds),
			job.RunID)
	case async.JobFailed:
		return fmt.Sprintf("%s (%s indexed, run %d)",
			job.Message, plural(job.ProcessedFiles, "file"), job.RunID)
	default:
		return FormatJobLine(job)
	}
}

// PanelJobRenderer redraws a bordered status panel in place.
type PanelJobRenderer struct {
	mu         sync.Mutex
	out        io.Writer
	styles     Styles
	clock      func() time.Time
	lastHeight int
}

// NewPanelJobRenderer creates a panel renderer.
func NewPanelJobRenderer(cfg Config) *PanelJobRenderer {
	return &PanelJobRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor),
		clock:  cfg.now,
	}
}

// Update implements JobRenderer.
func (r *PanelJobRenderer) Update(job async.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(r.renderPanel(job))
}

// Finish implements JobRenderer.
func (r *PanelJobRenderer) Finish(job async.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(r.renderPanel(job))
	r.lastHeight = 0
	_, _ = fmt.Fprintln(r.out, r.statusStyle(job.Status).Render(FormatJobSummary(job)))
}

// draw erases the previous panel and prints panel.
func (r *PanelJobRenderer) draw(panel string) {
	if r.lastHeight > 0 {
		// Cursor up, then clear to end of screen.
		_, _ = fmt.Fprintf(r.out, "\x1b[%dA\x1b[J", r.lastHeight)
	}
	_, _ = fmt.Fprintln(r.out, panel)
	r.lastHeight = lipgloss.Height(panel)
}

func (r *PanelJobRenderer) renderPanel(job async.Job) string {
	label := func(s string) string { return r.styles.Label.Render(fmt.Sprintf("%-8s", s)) }

	lines := []string{
		r.styles.Header.Render("fsaudit scan") + "  " + job.RootPath,
		label("Status") + r.statusStyle(job.Status).Render(strings.ToUpper(string(job.Status))),
		label("Files") + humanize.Comma(int64(job.ProcessedFiles)),
		label("Errors") + r.errorStyle(job.ErrorCount).Render(humanize.Comma(int64(job.ErrorCount))),
		label("Elapsed") + job.Duration(r.clock()).Round(time.Second).String(),
	}
	if job.Status.IsActive() && job.CurrentPath != "" {
		lines = append(lines, label("Current")+r.styles.Dim.Render(truncatePath(job.CurrentPath, maxPathWidth)))
	}
	if job.Status == async.JobFailed {
		lines = append(lines, r.styles.Error.Render(job.Message))
	}
	return r.styles.Panel.Render(strings.Join(lines, "\n"))
}

func (r *PanelJobRenderer) statusStyle(s async.JobStatus) lipgloss.Style {
	switch s {
	case async.JobCompleted:
		return r.styles.Success
	case async.JobFailed:
		return r.styles.Error
	case async.JobRunning:
		return r.styles.Active
	default:
		return r.styles.Warning
	}
}

func (r *PanelJobRenderer) errorStyle(n int) lipgloss.Style {
	if n > 0 {
		return r.styles.Warning
	}
	return r.styles.Label
}

// truncatePath keeps the tail of p within width runes.
func truncatePath(p string, width int) string {
	runes := []rune(p)
	if len(runes) <= width {
		return p
	}
	return "..." + string(runes[len(runes)-(width-3):])
}

// plural renders "1 file" / "1,234 files".
func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func formatSeconds(secs *float64) string {
	if secs == nil {
		return "-"
	}
	return time.Duration(*secs * float64(time.Second)).Round(10 * time.Millisecond).String()
}
