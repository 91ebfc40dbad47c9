package daemon

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing           = "ping"
	MethodStatus         = "status"
	MethodScanStart      = "scan.start"
	MethodJobStatus      = "job.status"
	MethodRunsList       = "runs.list"
	MethodRunsGet        = "runs.get"
	MethodRunsByRoot     = "runs.by_root"
	MethodRunsExtensions = "runs.extensions"
	MethodFilesPage      = "files.page"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for fsaudit errors.
const (
	ErrCodeJobAlreadyRunning = -32001
	ErrCodeInvalidPath       = -32002
	ErrCodeStoreFailed       = -32003
	ErrCodeRunNotFound       = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements error so clients can return RPC failures directly.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{
		JSONRPC: "2.0",
		Result:  data,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// ScanParams are the parameters for scan.start.
type ScanParams struct {
	// RootPath is the directory to index (required).
	RootPath string `json:"root_path"`
}

// Validate checks that required fields are present.
func (p *ScanParams) Validate() error {
	if strings.TrimSpace(p.RootPath) == "" {
		return fmt.Errorf("root_path is required")
	}
	return nil
}

// RunParams identify a run for runs.get and runs.extensions.
type RunParams struct {
	RunID int64 `json:"run_id"`
}

// Validate checks that required fields are present.
func (p *RunParams) Validate() error {
	if p.RunID <= 0 {
		return fmt.Errorf("run_id must be positive")
	}
	return nil
}

// RootParams identify a run by its root path for runs.by_root.
type RootParams struct {
	RootPath string `json:"root_path"`
}

// Validate checks that required fields are present.
func (p *RootParams) Validate() error {
	if strings.TrimSpace(p.RootPath) == "" {
		return fmt.Errorf("root_path is required")
	}
	return nil
}

// PageParams are the parameters for files.page.
type PageParams struct {
	store.PageQuery
}

// Validate checks required fields and applies the default page size.
func (p *PageParams) Validate() error {
	if p.RunID <= 0 {
		return fmt.Errorf("run_id must be positive")
	}
	if p.PageSize <= 0 {
		p.PageSize = store.DefaultPageSize
	}
	if p.PageIndex < 0 {
		p.PageIndex = 0
	}
	return nil
}

// PageResult is one page of files plus paging totals.
type PageResult struct {
	store.Page
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
	PageCount int `json:"page_count"`
}

// JobResult wraps the scheduler's current job. Job is nil before the first scan.
type JobResult struct {
	Job *async.Job `json:"job,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running   bool       `json:"running"`
	PID       int        `json:"pid"`
	Uptime    string     `json:"uptime"`
	StorePath string     `json:"store_path"`
	Job       *async.Job `json:"job,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
