package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxLineBytes bounds a single log line read by the viewer.
const maxLineBytes = 1024 * 1024

// followInterval is how often Follow polls files for appended lines.
const followInterval = 100 * time.Millisecond

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time    time.Time
	Level   string
	Msg     string
	Source  string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig configures filtering and formatting.
type ViewerConfig struct {
	Level      string         // minimum level
	Pattern    *regexp.Regexp // match against the raw line
	NoColor    bool
	ShowSource bool
}

// Viewer tails, follows and formats log files written by Setup.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	styles viewerStyles
}

type viewerStyles struct {
	levels map[string]lipgloss.Style
	source lipgloss.Style
	time   lipgloss.Style
}

// NewViewer creates a viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{config: cfg, out: out}
	v.styles = viewerStyles{
		levels: map[string]lipgloss.Style{
			"debug": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			"info":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			"warn":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"error": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
		source: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		time:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
	return v
}

// Tail returns the last n matching entries across paths, merged by time.
// Unreadable files are skipped when more than one path is given.
func (v *Viewer) Tail(paths []string, n int) ([]LogEntry, error) {
	var all []LogEntry
	for _, path := range paths {
		lines, err := lastLines(path, n)
		if err != nil {
			if len(paths) == 1 {
				return nil, err
			}
			continue
		}
		source := sourceFromPath(path)
		for _, line := range lines {
			entry := v.parseLine(line, source)
			if v.matches(entry) {
				all = append(all, entry)
			}
		}
	}

	if len(paths) > 1 {
		sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// lastLines reads path and returns at most n trailing lines (all when n <= 0).
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > 2*n {
			lines = slices.Clone(lines[len(lines)-n:])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Follow sends entries appended to any of paths until ctx is done.
func (v *Viewer) Follow(ctx context.Context, paths []string, entries chan<- LogEntry) error {
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", p, err)
		}
		files = append(files, f)
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("failed to seek in %s: %w", p, err)
		}
	}

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(f *os.File, source string) {
			defer wg.Done()
			v.follow(ctx, f, source, entries)
		}(f, sourceFromPath(paths[i]))
	}
	wg.Wait()
	return nil
}

func (v *Viewer) follow(ctx context.Context, f *os.File, source string, entries chan<- LogEntry) {
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			chunk, err := reader.ReadString('\n')
			if err != nil {
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}
			entry := v.parseLine(line, source)
			if !v.matches(entry) {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Print writes formatted entries, one per line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}

// FormatEntry renders an entry as "15:04:05.000 LEVEL [source] msg k=v ...".
// Lines that are not JSON are returned unchanged.
func (v *Viewer) FormatEntry(e LogEntry) string {
	if !e.IsValid {
		return e.Raw
	}

	var b strings.Builder
	b.WriteString(v.paint(v.styles.time, e.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(e.Level))
	b.WriteByte(' ')
	if v.config.ShowSource && e.Source != "" {
		b.WriteString(v.paint(v.styles.source, "["+e.Source+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(e.Msg)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	label = fmt.Sprintf("%-5s", label)

	key := strings.ToLower(level)
	if key == "warning" {
		key = "warn"
	}
	style, ok := v.styles.levels[key]
	if !ok {
		return label
	}
	return v.paint(style, label)
}

func (v *Viewer) paint(style lipgloss.Style, s string) string {
	if v.config.NoColor {
		return s
	}
	return style.Render(s)
}

// parseLine decodes a slog JSON line. Invalid lines keep only Raw.
func (v *Viewer) parseLine(line, source string) LogEntry {
	entry := LogEntry{Raw: line, Source: source}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)

	entry.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matches(e LogEntry) bool {
	if v.config.Level != "" && e.IsValid {
		if LevelFromString(e.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}
