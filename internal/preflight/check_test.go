package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsaudit/internal/store"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusIsName(t *testing.T) {
	// When: encoding a result
	data, err := json.Marshal(CheckResult{Name: "store", Status: StatusWarn})
	require.NoError(t, err)

	// Then: the status is a lowercase name
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New("/data",
		WithVerbose(true),
		WithOutput(buf, true),
		WithStore("/data/audit.db", store.DriverModernc),
	)

	// Then: options are applied
	assert.Equal(t, "/data", checker.dataDir)
	assert.True(t, checker.verbose)
	assert.True(t, checker.noColor)
	assert.Equal(t, buf, checker.output)
	assert.Equal(t, "/data/audit.db", checker.storePath)
	assert.Equal(t, store.DriverModernc, checker.storeDriver)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New(t.TempDir())

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{"no results", []CheckResult{}, false},
		{"all pass", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusPass, Required: true}}, false},
		{"warning only", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusWarn}}, false},
		{"optional failure", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusFail}}, false},
		{"required failure", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusFail, Required: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New(t.TempDir())

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warning", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
		{"critical failure", []CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

func TestChecker_CheckConfig(t *testing.T) {
	// Given: a checker without a config error
	ok := New(t.TempDir()).CheckConfig()

	// Then: it passes
	assert.Equal(t, StatusPass, ok.Status)

	// Given: a checker with a config error
	failed := New(t.TempDir(), WithConfigError(errors.New("yaml: line 2: bad"))).CheckConfig()

	// Then: it is a critical failure naming the cause
	assert.True(t, failed.IsCritical())
	assert.Contains(t, failed.Message, "line 2")
	assert.Contains(t, failed.Details, "config init --force")
}

func TestChecker_CheckWritePermissions_CreatesMissingDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "nested", ".fsaudit")

	// When: checking write permissions
	result := New(dir).CheckWritePermissions(dir)

	// Then: the directory is created and nothing is left behind
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "data_dir", result.Name)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0555))
	defer func() { _ = os.Chmod(readOnlyDir, 0755) }()

	// When: checking write permissions
	result := New(readOnlyDir).CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckStore(t *testing.T) {
	// Given: a store with one run
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.PrepareRun(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// When: checking the store
	result := New(dir, WithStore(path, store.DriverModernc)).CheckStore(context.Background())

	// Then: the run is counted
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "1 run(s) via sqlite", result.Message)
}

func TestChecker_CheckStore_UnknownDriver(t *testing.T) {
	// When: the configured driver is not registered
	dir := t.TempDir()
	result := New(dir, WithStore(filepath.Join(dir, "audit.db"), "postgres")).CheckStore(context.Background())

	// Then: it is a critical failure
	assert.True(t, result.IsCritical())
	assert.Contains(t, result.Message, "cannot open")
}

func TestChecker_CheckInterruptedScan(t *testing.T) {
	dir := t.TempDir()

	// Given: no lock file
	assert.Equal(t, StatusPass, New(dir).CheckInterruptedScan().Status)

	// Given: a lock file left by a crawl
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.lock"), []byte("123"), 0644))

	// Then: it warns without failing
	result := New(dir).CheckInterruptedScan()
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	// Given: a writable data directory and a store
	dir := t.TempDir()
	checker := New(dir, WithStore(filepath.Join(dir, "audit.db"), store.DriverModernc))

	// When: running all checks
	results := checker.RunAll(context.Background())

	// Then: every check is present
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"config", "data_dir", "disk_space", "file_descriptors", "store", "interrupted_scan"}, names)
	assert.False(t, checker.HasCriticalFailures(results))
}

func TestChecker_RunAll_WithoutStoreSkipsStoreCheck(t *testing.T) {
	results := New(t.TempDir()).RunAll(context.Background())

	for _, r := range results {
		assert.NotEqual(t, "store", r.Name)
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GiB free"},
		{Name: "interrupted_scan", Status: StatusWarn, Message: "a previous scan stopped", Details: "Rescan"},
		{Name: "store", Status: StatusFail, Message: "cannot open", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(t.TempDir(), WithOutput(buf, true))

	// When: printing results
	checker.PrintResults(results)

	// Then: each line carries its mark and the summary is last
	out := buf.String()
	assert.Contains(t, out, "✓ disk_space: 50 GiB free")
	assert.Contains(t, out, "! interrupted_scan: a previous scan stopped")
	assert.Contains(t, out, "  Rescan")
	assert.Contains(t, out, "✗ store: cannot open")
	assert.Contains(t, out, "Status: FAILED")
}
