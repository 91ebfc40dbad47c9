package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/fsaudit/internal/async"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// connectionDeadline bounds a single request/response exchange.
const connectionDeadline = 30 * time.Second

// RequestHandler serves the core operations behind the RPC methods.
type RequestHandler interface {
	StartScan(ctx context.Context, root string) (async.Job, error)
	CurrentJob() (async.Job, bool)
	ListRuns(ctx context.Context) ([]store.Run, error)
	GetRun(ctx context.Context, runID int64) (*store.Run, error)
	RunByRoot(ctx context.Context, root string) (*store.Run, error)
	Extensions(ctx context.Context, runID int64) ([]string, error)
	FilesPage(ctx context.Context, q store.PageQuery) (*PageResult, error)
	StorePath() string
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath dispatching to h.
func NewServer(socketPath string, h RequestHandler) *Server {
	return &Server{
		socketPath: socketPath,
		handler:    h,
	}
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Stale socket from a crashed daemon; the instance lock guarantees it is not live.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isShutdown() {
				break
			}
			slog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// handleConnection reads one request and writes one response.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connectionDeadline)); err != nil {
		slog.Warn("set_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	level := slog.LevelDebug
	if resp.Error != nil {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "rpc_handled",
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", resp.Error == nil))

	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	switch req.Method {
	case MethodScanStart:
		var params ScanParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		job, err := s.handler.StartScan(ctx, params.RootPath)
		if err != nil {
			return s.failure(req, err)
		}
		return NewSuccessResponse(req.ID, JobResult{Job: &job})

	case MethodJobStatus:
		var result JobResult
		if job, ok := s.handler.CurrentJob(); ok {
			result.Job = &job
		}
		return NewSuccessResponse(req.ID, result)

	case MethodRunsList:
		runs, err := s.handler.ListRuns(ctx)
		if err != nil {
			return s.failure(req, err)
		}
		if runs == nil {
			runs = []store.Run{}
		}
		return NewSuccessResponse(req.ID, runs)

	case MethodRunsGet:
		var params RunParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		run, err := s.handler.GetRun(ctx, params.RunID)
		if err != nil {
			return s.failure(req, err)
		}
		if run == nil {
			return NewErrorResponse(req.ID, ErrCodeRunNotFound, fmt.Sprintf("run %d not found", params.RunID))
		}
		return NewSuccessResponse(req.ID, run)

	case MethodRunsByRoot:
		var params RootParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		run, err := s.handler.RunByRoot(ctx, params.RootPath)
		if err != nil {
			return s.failure(req, err)
		}
		if run == nil {
			return NewErrorResponse(req.ID, ErrCodeRunNotFound, "no run for "+params.RootPath)
		}
		return NewSuccessResponse(req.ID, run)

	case MethodRunsExtensions:
		var params RunParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		exts, err := s.handler.Extensions(ctx, params.RunID)
		if err != nil {
			return s.failure(req, err)
		}
		if exts == nil {
			exts = []string{}
		}
		return NewSuccessResponse(req.ID, exts)

	case MethodFilesPage:
		var params PageParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return errorResponse(req.ID, rpcErr)
		}
		page, err := s.handler.FilesPage(ctx, params.PageQuery)
		if err != nil {
			return s.failure(req, err)
		}
		return NewSuccessResponse(req.ID, page)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// validator is implemented by every params type.
type validator interface {
	Validate() error
}

func decodeParams(raw json.RawMessage, params validator) *Error {
	if len(raw) == 0 {
		return &Error{Code: ErrCodeInvalidParams, Message: "params are required"}
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return &Error{Code: ErrCodeInvalidParams, Message: "failed to decode params"}
	}
	if err := params.Validate(); err != nil {
		return &Error{Code: ErrCodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func errorResponse(id string, e *Error) Response {
	return Response{JSONRPC: "2.0", Error: e, ID: id}
}

func (s *Server) failure(req Request, err error) Response {
	slog.Warn("request_failed", slog.String("method", req.Method), fserrors.LogAttr(err))
	return errorResponse(req.ID, toRPCError(err))
}

// toRPCError maps a coded error to its JSON-RPC error code.
func toRPCError(err error) *Error {
	e := &Error{Code: ErrCodeInternalError, Message: fserrors.Message(err)}
	switch fserrors.GetCode(err) {
	case fserrors.ErrCodeJobAlreadyRunning:
		e.Code = ErrCodeJobAlreadyRunning
	case fserrors.ErrCodeInvalidPath, fserrors.ErrCodeNotADirectory,
		fserrors.ErrCodeFileNotFound, fserrors.ErrCodeFilePermission:
		e.Code = ErrCodeInvalidPath
	case fserrors.ErrCodeStoreFailed:
		e.Code = ErrCodeStoreFailed
	case fserrors.ErrCodeInvalidInput:
		e.Code = ErrCodeInvalidParams
	}
	if code := fserrors.GetCode(err); code != "" {
		e.Data = map[string]string{"code": code}
	}
	return e
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
	}
	if s.handler != nil {
		status.StorePath = s.handler.StorePath()
		if job, ok := s.handler.CurrentJob(); ok {
			status.Job = &job
		}
	}
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
