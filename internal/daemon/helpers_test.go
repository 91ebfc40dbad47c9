package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// testSocketPath returns a short unique socket path; t.TempDir can exceed
// the Unix socket path limit on macOS.
func testSocketPath(t *testing.T) string {
	t.Helper()
	p := filepath.Join(os.TempDir(), fmt.Sprintf("fsaudit-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(p) })
	return p
}

// startServer runs a server for h until the test ends.
func startServer(t *testing.T, h RequestHandler) string {
	t.Helper()
	path := testSocketPath(t)
	srv := NewServer(path, h)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return path
}

func testClient(socketPath string) *Client {
	return NewClient(Config{SocketPath: socketPath, Timeout: 2 * time.Second})
}

// fakeHandler records calls and returns canned results.
type fakeHandler struct {
	mu        sync.Mutex
	job       *async.Job
	startErr  error
	runs      []store.Run
	run       *store.Run
	exts      []string
	page      *PageResult
	err       error
	lastRoot  string
	lastQuery store.PageQuery
	lastRunID int64
}

func (h *fakeHandler) StartScan(_ context.Context, root string) (async.Job, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRoot = root
	if h.startErr != nil {
		return async.Job{}, h.startErr
	}
	job := async.Job{ID: "job-1", RunID: 1, RootPath: root, Status: async.JobQueued, Message: "Queued"}
	h.job = &job
	return job, nil
}

func (h *fakeHandler) CurrentJob() (async.Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.job == nil {
		return async.Job{}, false
	}
	return *h.job, true
}

func (h *fakeHandler) ListRuns(context.Context) ([]store.Run, error) {
	return h.runs, h.err
}

func (h *fakeHandler) GetRun(_ context.Context, runID int64) (*store.Run, error) {
	h.mu.Lock()
	h.lastRunID = runID
	h.mu.Unlock()
	return h.run, h.err
}

func (h *fakeHandler) RunByRoot(_ context.Context, root string) (*store.Run, error) {
	h.mu.Lock()
	h.lastRoot = root
	h.mu.Unlock()
	return h.run, h.err
}

func (h *fakeHandler) Extensions(_ context.Context, runID int64) ([]string, error) {
	h.mu.Lock()
	h.lastRunID = runID
	h.mu.Unlock()
	return h.exts, h.err
}

func (h *fakeHandler) FilesPage(_ context.Context, q store.PageQuery) (*PageResult, error) {
	h.mu.Lock()
	h.lastQuery = q
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return h.page, nil
}

func (h *fakeHandler) StorePath() string { return "/data/audit.db" }
