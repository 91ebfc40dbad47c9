package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/output"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status as its lowercase name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText decodes a lowercase status name.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	for _, candidate := range []CheckStatus{StatusPass, StatusWarn, StatusFail} {
		if strings.EqualFold(string(text), candidate.String()) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown check status %q", text)
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	dataDir     string
	storePath   string
	storeDriver string
	configErr   error
	verbose     bool
	noColor     bool
	output      io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithStore sets the metadata store to open. Without it the store check is skipped.
func WithStore(path, driver string) Option {
	return func(c *Checker) {
		c.storePath = path
		c.storeDriver = driver
	}
}

// WithConfigError records a configuration load failure to report.
func WithConfigError(err error) Option {
	return func(c *Checker) {
		c.configErr = err
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer, noColor bool) Option {
	return func(c *Checker) {
		c.output = w
		c.noColor = noColor
	}
}

// New creates a Checker for the given data directory.
func New(dataDir string, opts ...Option) *Checker {
	c := &Checker{
		dataDir: dataDir,
		output:  os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	results := []CheckResult{
		c.CheckConfig(),
		c.CheckWritePermissions(c.dataDir),
		c.CheckDiskSpace(c.dataDir),
		c.CheckFileDescriptors(),
	}
	if c.storePath != "" {
		results = append(results, c.CheckStore(ctx))
	}
	results = append(results, c.CheckInterruptedScan())
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints one marked line per check and the overall status.
func (c *Checker) PrintResults(results []CheckResult) {
	out := output.New(c.output, c.noColor)

	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			out.Status("", r.Details)
		}
	}

	out.Newline()
	out.Infof("Status: %s", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckConfig reports whether the configuration loaded.
func (c *Checker) CheckConfig() CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}
	if c.configErr != nil {
		result.Status = StatusFail
		result.Message = c.configErr.Error()
		result.Details = "Fix the file, or reset it with 'fsaudit config init --force'"
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckWritePermissions checks that dir exists, or can be created, and is writable.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	f, err := os.CreateTemp(dir, ".fsaudit-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckStore opens the metadata store and counts its runs.
func (c *Checker) CheckStore(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "store",
		Required: true,
	}

	s, err := store.NewSQLiteStore(c.storePath, store.Options{Driver: c.storeDriver})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open %s: %v", c.storePath, err)
		if c.storeDriver == store.DriverMattn {
			result.Details = "The sqlite3 driver needs a CGO build; set store.driver to sqlite"
		}
		return result
	}
	defer func() { _ = s.Close() }()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", c.storePath, err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d run(s) via %s", len(runs), c.storeDriver)
	result.Details = filepath.Clean(c.storePath)
	return result
}

// CheckInterruptedScan warns when a crawl lock was left behind.
func (c *Checker) CheckInterruptedScan() CheckResult {
	result := CheckResult{
		Name:     "interrupted_scan",
		Required: false,
	}
	if async.HasIncompleteLock(c.dataDir) {
		result.Status = StatusWarn
		result.Message = "a previous scan stopped before finishing"
		result.Details = "Rescan the same root to replace its partial results"
		return result
	}
	result.Status = StatusPass
	result.Message = "none"
	return result
}
