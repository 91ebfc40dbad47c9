// Package ui renders fsaudit job snapshots, run lists and file pages for the
// terminal. Styled output is used for interactive terminals and plain text
// for pipes, CI and NO_COLOR.
package ui

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Config configures rendering.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Clock supplies "now" for elapsed times and relative timestamps.
	Clock func() time.Time
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) ConfigOption {
	return func(c *Config) {
		c.Clock = clock
	}
}

// NewConfig creates a Config for output. NO_COLOR is honored.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:  output,
		NoColor: DetectNoColor(),
		Clock:   time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Plain reports whether output should be unstyled.
func (c Config) Plain() bool {
	return c.ForcePlain || c.NoColor || !IsTTY(c.Output) || DetectCI()
}

func (c Config) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
