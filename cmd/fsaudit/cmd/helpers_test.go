package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsaudit/internal/store"
)

// isolate points HOME and the config directory at a temp dir, clears
// FSAUDIT_* overrides and gives the daemon a short socket path.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	t.Setenv("NO_COLOR", "1")
	for _, k := range []string{
		"FSAUDIT_DB_PATH", "FSAUDIT_DB_DRIVER", "FSAUDIT_BATCH_SIZE",
		"FSAUDIT_PAGE_SIZE", "FSAUDIT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	// t.TempDir can exceed the Unix socket path limit on macOS.
	sock := filepath.Join(os.TempDir(), fmt.Sprintf("fsaudit-cmd-%d.sock", time.Now().UnixNano()))
	t.Setenv("FSAUDIT_SOCKET", sock)
	t.Cleanup(func() { _ = os.Remove(sock) })
	return home
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	_ = a.teardown()
	return stdout.String(), stderr.String(), err
}

// makeTree creates a small directory tree with six files:
//
//	README            (no extension)
//	report.pdf
//	notes.txt
//	docs/plan.docx
//	finance/budget.csv
//	finance/q1.PDF
func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"README",
		"report.pdf",
		"notes.txt",
		"docs/plan.docx",
		"finance/budget.csv",
		"finance/q1.PDF",
	}
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
	return root
}

// scanTree indexes a fresh tree in-process and returns its root.
func scanTree(t *testing.T) string {
	t.Helper()
	root := makeTree(t)
	_, _, err := execute(t, "scan", root, "--no-daemon", "--interval", "10ms")
	require.NoError(t, err)
	return root
}

// canonical returns root as the store records it.
func canonical(t *testing.T, root string) string {
	t.Helper()
	c, err := store.CanonicalRoot(root)
	require.NoError(t, err)
	return c
}
