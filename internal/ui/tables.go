package ui

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/fsaudit/internal/store"
)

// absent marks a value that was unavailable at crawl time.
const absent = "-"

// timestampLayout is used for file timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// TableRenderer renders runs, file pages and extension lists.
type TableRenderer struct {
	out    io.Writer
	styles Styles
	clock  func() time.Time
}

// NewTableRenderer creates a table renderer.
func NewTableRenderer(cfg Config) *TableRenderer {
	return &TableRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.Plain()),
		clock:  cfg.now,
	}
}

func (r *TableRenderer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(r.styles.TableBorder).
		BorderStyle(r.styles.Border).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// Runs renders the run list, most relevant first as ordered by the store.
func (r *TableRenderer) Runs(runs []store.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(r.out, "No scans yet. Start one with 'fsaudit scan <path>'.")
		return
	}

	now := r.clock()
	t := r.newTable("ID", "STATUS", "ROOT", "FILES", "ERRORS", "DURATION", "LAST ACTIVITY")
	for _, run := range runs {
		t.Row(
			strconv.FormatInt(run.ID, 10),
			string(run.Status),
			run.RootPath,
			humanize.Comma(int64(run.TotalFiles)),
			humanize.Comma(int64(run.TotalErrors)),
			formatSeconds(run.DurationSeconds),
			relativeTime(run.LastActivity(), now),
		)
	}
	_, _ = fmt.Fprintln(r.out, t.Render())

	for _, run := range runs {
		if run.ErrorMessage != nil && *run.ErrorMessage != "" {
			_, _ = fmt.Fprintf(r.out, "%s run %d: %s\n", r.styles.Error.Render("failed"), run.ID, *run.ErrorMessage)
		}
	}
}

// Run renders a single run as labelled lines.
func (r *TableRenderer) Run(run store.Run) {
	label := func(s string) string { return r.styles.Label.Render(fmt.Sprintf("%-10s", s)) }
	lines := []string{
		label("Run") + strconv.FormatInt(run.ID, 10),
		label("Root") + run.RootPath,
		label("Status") + string(run.Status),
		label("Files") + humanize.Comma(int64(run.TotalFiles)),
		label("Errors") + humanize.Comma(int64(run.TotalErrors)),
		label("Queued") + formatTimestamp(run.QueuedAt),
		label("Started") + formatTimestamp(run.StartedAt),
		label("Completed") + formatTimestamp(run.CompletedAt),
		label("Duration") + formatSeconds(run.DurationSeconds),
	}
	if run.ErrorMessage != nil {
		lines = append(lines, label("Error")+r.styles.Error.Render(*run.ErrorMessage))
	}
	for _, l := range lines {
		_, _ = fmt.Fprintln(r.out, l)
	}
}

// FilesPage renders one page of files followed by a paging footer.
func (r *TableRenderer) FilesPage(page store.Page, pageIndex, pageSize int) {
	pageCount := store.PageCount(page.Total, pageSize)
	if len(page.Rows) > 0 {
		t := r.newTable("FILE", "SUBFOLDER", "EXT", "CREATED", "MODIFIED", "MODIFIED BY")
		for _, f := range page.Rows {
			t.Row(
				f.FileName,
				f.Subfolder,
				orAbsent(f.Extension),
				formatTimestamp(f.CreatedAt),
				formatTimestamp(f.ModifiedAt),
				formatOwner(f.Owner),
			)
		}
		_, _ = fmt.Fprintln(r.out, t.Render())
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Label.Render(PageFooter(page.Total, pageIndex, pageCount)))
}

// PageFooter renders "Page 2 of 5 (101 files)"; pages are shown one-based.
func PageFooter(total, pageIndex, pageCount int) string {
	if total == 0 {
		return "No matching files."
	}
	return fmt.Sprintf("Page %d of %d (%s)", pageIndex+1, pageCount, plural(total, "file"))
}

// Extensions lists extensions one per line; the empty extension is shown as "(none)".
func (r *TableRenderer) Extensions(exts []string) {
	if len(exts) == 0 {
		_, _ = fmt.Fprintln(r.out, "No files indexed.")
		return
	}
	for _, e := range exts {
		_, _ = fmt.Fprintln(r.out, orNone(e))
	}
}

func orAbsent(s string) string {
	if s == "" {
		return absent
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func formatOwner(owner *string) string {
	if owner == nil {
		return absent
	}
	return *owner
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return absent
	}
	return t.UTC().Format(timestampLayout)
}

// relativeTime renders t relative to now, e.g. "3 minutes ago".
func relativeTime(t *time.Time, now time.Time) string {
	if t == nil {
		return absent
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}
