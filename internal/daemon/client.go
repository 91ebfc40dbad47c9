package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/fsaudit/internal/async"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// Client connects to the daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeDaemonUnavailable, "failed to connect to daemon", err).
			WithSuggestion("Start the daemon with 'fsaudit serve'")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	return c.call(ctx, MethodPing, nil, &result)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartScan asks the daemon to index root.
func (c *Client) StartScan(ctx context.Context, root string) (*async.Job, error) {
	params := ScanParams{RootPath: root}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var result JobResult
	if err := c.call(ctx, MethodScanStart, params, &result); err != nil {
		return nil, err
	}
	return result.Job, nil
}

// JobStatus returns the daemon's current job, or nil before the first scan.
func (c *Client) JobStatus(ctx context.Context) (*async.Job, error) {
	var result JobResult
	if err := c.call(ctx, MethodJobStatus, nil, &result); err != nil {
		return nil, err
	}
	return result.Job, nil
}

// ListRuns lists every run.
func (c *Client) ListRuns(ctx context.Context) ([]store.Run, error) {
	var runs []store.Run
	if err := c.call(ctx, MethodRunsList, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run.
func (c *Client) GetRun(ctx context.Context, runID int64) (*store.Run, error) {
	var run store.Run
	if err := c.call(ctx, MethodRunsGet, RunParams{RunID: runID}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RunByRoot returns the run of a root path.
func (c *Client) RunByRoot(ctx context.Context, root string) (*store.Run, error) {
	var run store.Run
	if err := c.call(ctx, MethodRunsByRoot, RootParams{RootPath: root}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Extensions returns the distinct extensions of a run.
func (c *Client) Extensions(ctx context.Context, runID int64) ([]string, error) {
	var exts []string
	if err := c.call(ctx, MethodRunsExtensions, RunParams{RunID: runID}, &exts); err != nil {
		return nil, err
	}
	return exts, nil
}

// FilesPage fetches one page of files.
func (c *Client) FilesPage(ctx context.Context, q store.PageQuery) (*PageResult, error) {
	var page PageResult
	if err := c.call(ctx, MethodFilesPage, PageParams{PageQuery: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// call performs one request/response exchange on a fresh connection.
// RPC failures are returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		ID:      c.nextID(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = raw
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fserrors.New(fserrors.ErrCodeDaemonProtocol, "failed to receive response", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fserrors.New(fserrors.ErrCodeDaemonProtocol, "failed to decode "+method+" result", err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
