package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsaudit/internal/async"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

func TestScanCmd_InProcess_PrintsSummary(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: scanning without a daemon
	stdout, _, err := execute(t, "scan", root, "--no-daemon", "--interval", "10ms")

	// Then: the plain renderer ends with the completion summary
	require.NoError(t, err)
	assert.Contains(t, stdout, "[queued]")
	assert.Contains(t, stdout, "Scan complete: 6 files, 0 errors in")
	assert.Contains(t, stdout, "(run 1)")
}

func TestScanCmd_JSON_ReportsFinalJob(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: scanning with --json
	stdout, _, err := execute(t, "scan", root, "--no-daemon", "--json", "--interval", "10ms")
	require.NoError(t, err)

	// Then: stdout is the final job snapshot
	var job async.Job
	require.NoError(t, json.Unmarshal([]byte(stdout), &job))
	assert.Equal(t, async.JobCompleted, job.Status)
	assert.Equal(t, 6, job.ProcessedFiles)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, canonical(t, root), job.RootPath)
	assert.NotNil(t, job.DurationSeconds)
}

func TestScanCmd_RelativePath_StoredAbsolute(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	// When: scanning "docs" relative to the working directory
	stdout, _, err := execute(t, "scan", "docs", "--no-daemon", "--json", "--interval", "10ms")
	require.NoError(t, err)

	// Then: the run root is absolute
	var job async.Job
	require.NoError(t, json.Unmarshal([]byte(stdout), &job))
	abs, err := filepath.Abs("docs")
	require.NoError(t, err)
	assert.Equal(t, canonical(t, abs), job.RootPath)
	assert.Equal(t, 1, job.ProcessedFiles)
}

func TestScanCmd_Rescan_ReplacesRun(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// Given: a completed scan
	_, _, err := execute(t, "scan", root, "--no-daemon", "--interval", "10ms")
	require.NoError(t, err)

	// And: one file removed
	require.NoError(t, os.Remove(filepath.Join(root, "notes.txt")))

	// When: scanning the same root again
	_, _, err = execute(t, "scan", root, "--no-daemon", "--interval", "10ms")
	require.NoError(t, err)

	// Then: there is still one run, with the new total
	stdout, _, err := execute(t, "runs", "--json", "--no-daemon")
	require.NoError(t, err)
	var runs []store.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, canonical(t, root), runs[0].RootPath)
	assert.Equal(t, 5, runs[0].TotalFiles)
	assert.Equal(t, store.RunStatusCompleted, runs[0].Status)
}

func TestScanCmd_MissingPath_InvalidPath(t *testing.T) {
	isolate(t)

	// When: scanning a path that does not exist
	_, _, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"), "--no-daemon")

	// Then: it is rejected before a run is created
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeInvalidPath, fserrors.GetCode(err))

	stdout, _, err := execute(t, "runs", "--json", "--no-daemon")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", stdout)
}

func TestScanCmd_FilePath_NotADirectory(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: scanning a regular file
	_, _, err := execute(t, "scan", filepath.Join(root, "README"), "--no-daemon")

	// Then: it is rejected
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeNotADirectory, fserrors.GetCode(err))
}

func TestScanCmd_DetachWithoutDaemon_Rejected(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: asking to detach with no daemon running
	_, _, err := execute(t, "scan", root, "--detach")

	// Then: the request is invalid
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(err))
}

func TestScanCmd_NegativeBatchSize_Rejected(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: passing a negative batch size
	_, _, err := execute(t, "scan", root, "--no-daemon", "--batch-size", "-5")

	// Then: it is rejected
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(err))
}

func TestScanCmd_SmallBatchSize_IndexesEverything(t *testing.T) {
	isolate(t)
	root := makeTree(t)

	// When: scanning with a batch size smaller than the tree
	stdout, _, err := execute(t, "scan", root, "--no-daemon", "--json", "--batch-size", "2", "--interval", "10ms")
	require.NoError(t, err)

	// Then: every file is indexed
	var job async.Job
	require.NoError(t, json.Unmarshal([]byte(stdout), &job))
	assert.Equal(t, 6, job.ProcessedFiles)
}

func TestScanCmd_InterruptedLock_Warns(t *testing.T) {
	home := isolate(t)
	root := makeTree(t)

	// Given: a lock file left by a crashed scan
	dataDir := filepath.Join(home, ".fsaudit")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "scan.lock"), []byte("stale"), 0644))

	// When: scanning again
	_, stderr, err := execute(t, "scan", root, "--no-daemon", "--interval", "10ms")

	// Then: the user is warned and the scan still completes
	require.NoError(t, err)
	assert.Contains(t, stderr, "previous scan was interrupted")
	assert.False(t, async.HasIncompleteLock(dataDir))
}
