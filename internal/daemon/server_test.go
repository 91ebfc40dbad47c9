package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// rawCall writes line to the server and decodes one response.
func rawCall(t *testing.T, socketPath, line string) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_ListenAndServe_RemovesSocketOnShutdown(t *testing.T) {
	path := testSocketPath(t)
	srv := NewServer(path, &fakeHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestServer_ReplacesStaleSocketFile(t *testing.T) {
	path := testSocketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	srv := NewServer(path, &fakeHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ProtocolErrors(t *testing.T) {
	path := startServer(t, &fakeHandler{})

	tests := []struct {
		name string
		line string
		code int
	}{
		{"malformed json", `{not json`, ErrCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"ping","id":"1"}`, ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"search","id":"1"}`, ErrCodeMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","method":"scan.start","id":"1"}`, ErrCodeInvalidParams},
		{"wrong param type", `{"jsonrpc":"2.0","method":"runs.get","params":{"run_id":"x"},"id":"1"}`, ErrCodeInvalidParams},
		{"invalid param value", `{"jsonrpc":"2.0","method":"runs.extensions","params":{"run_id":0},"id":"1"}`, ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rawCall(t, path, tt.line)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServer_NoHandler(t *testing.T) {
	path := testSocketPath(t)
	srv := NewServer(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// ping works without a handler, everything else is an internal error
	assert.Nil(t, rawCall(t, path, `{"jsonrpc":"2.0","method":"ping","id":"1"}`).Error)
	resp := rawCall(t, path, `{"jsonrpc":"2.0","method":"runs.list","id":"2"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestServer_Status(t *testing.T) {
	h := &fakeHandler{}
	path := startServer(t, h)
	c := testClient(path)

	// Given: no job yet
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "/data/audit.db", status.StorePath)
	assert.Nil(t, status.Job)

	// When: a scan has been started
	_, err = c.StartScan(context.Background(), "/data/share")
	require.NoError(t, err)

	// Then: status carries the job
	status, err = c.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.Job)
	assert.Equal(t, "/data/share", status.Job.RootPath)
}

func TestServer_FilesPage_PassesQueryThrough(t *testing.T) {
	h := &fakeHandler{page: &PageResult{Page: store.Page{Total: 0}, PageSize: 10}}
	path := startServer(t, h)

	q := store.PageQuery{
		RunID:             4,
		PageIndex:         1,
		PageSize:          10,
		Sort:              []store.SortInstruction{{Column: store.SortModifiedAt, Direction: store.SortDesc}},
		Extensions:        []string{"pdf", "docx"},
		SubfolderContains: "finance",
	}
	_, err := testClient(path).FilesPage(context.Background(), q)

	require.NoError(t, err)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, q, h.lastQuery)
}

func TestServer_EmptyListsEncodeAsArrays(t *testing.T) {
	path := startServer(t, &fakeHandler{})

	resp := rawCall(t, path, `{"jsonrpc":"2.0","method":"runs.list","id":"1"}`)
	assert.JSONEq(t, `[]`, string(resp.Result))

	resp = rawCall(t, path, `{"jsonrpc":"2.0","method":"runs.extensions","params":{"run_id":1},"id":"2"}`)
	assert.JSONEq(t, `[]`, string(resp.Result))
}

func TestToRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"contention", fserrors.ContentionError("busy"), ErrCodeJobAlreadyRunning},
		{"invalid path", fserrors.New(fserrors.ErrCodeInvalidPath, "bad", nil), ErrCodeInvalidPath},
		{"not a directory", fserrors.New(fserrors.ErrCodeNotADirectory, "file", nil), ErrCodeInvalidPath},
		{"store", fserrors.StoreError("fetch", errors.New("disk I/O error")), ErrCodeStoreFailed},
		{"validation", fserrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"plain", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, toRPCError(tt.err).Code)
		})
	}

	t.Run("message drops code prefix", func(t *testing.T) {
		e := toRPCError(fserrors.ContentionError("a crawl is already in progress"))
		assert.Equal(t, "a crawl is already in progress", e.Message)
		assert.Equal(t, map[string]string{"code": fserrors.ErrCodeJobAlreadyRunning}, e.Data)
	})
}
