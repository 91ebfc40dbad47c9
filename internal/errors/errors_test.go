package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with AuditError
	auditErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, auditErr)
	assert.Equal(t, originalErr, errors.Unwrap(auditErr))
	assert.True(t, errors.Is(auditErr, originalErr))
}

func TestAuditError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "file error",
			code:     ErrCodeFileNotFound,
			message:  "root not found",
			expected: "[ERR_201_FILE_NOT_FOUND] root not found",
		},
		{
			name:     "contention error",
			code:     ErrCodeJobAlreadyRunning,
			message:  "a crawl is already in progress",
			expected: "[ERR_408_JOB_ALREADY_RUNNING] a crawl is already in progress",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAuditError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, New(ErrCodeConfigNotFound, "config", nil)))
}

func TestAuditError_Is_MatchesSentinelThroughWrapping(t *testing.T) {
	// Given: a contention error wrapped by fmt.Errorf
	wrapped := fmt.Errorf("start: %w", ContentionError("busy"))

	// Then: errors.Is finds the sentinel
	assert.True(t, errors.Is(wrapped, ErrJobAlreadyRunning))
	assert.False(t, errors.Is(wrapped, ErrStore))
	assert.Equal(t, ErrCodeJobAlreadyRunning, GetCode(wrapped))
}

func TestAuditError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil).
		WithDetail("path", "/foo/bar.txt").
		WithDetail("run_id", "3")

	assert.Equal(t, "/foo/bar.txt", err.Details["path"])
	assert.Equal(t, "3", err.Details["run_id"])
}

func TestAuditError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeStoreFailed, CategoryIO},
		{ErrCodeDaemonUnavailable, CategoryTransport},
		{ErrCodeInvalidPath, CategoryValidation},
		{ErrCodeJobAlreadyRunning, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeScanFailed, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestAuditError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptStore, SeverityFatal},
		{ErrCodeScanFailed, SeverityFatal},
		{ErrCodeFileUnreadable, SeverityWarning},
		{ErrCodeDaemonTimeout, SeverityWarning},
		{ErrCodeStoreFailed, SeverityError},
		{ErrCodeFileNotFound, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestStoreError_IsNotRetryable(t *testing.T) {
	// Given: an engine failure
	cause := errors.New("disk I/O error")

	// When: wrapped as a store error
	err := StoreError("insert_file_batch", cause)

	// Then: it carries the op and is never retryable
	assert.Equal(t, ErrCodeStoreFailed, err.Code)
	assert.Equal(t, "insert_file_batch", err.Details["op"])
	assert.Contains(t, err.Message, "disk I/O error")
	assert.False(t, IsRetryable(err))
	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, cause))
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	assert.True(t, IsRetryable(ContentionError("busy")))
	assert.True(t, IsRetryable(New(ErrCodeDaemonUnavailable, "no socket", nil)))
	assert.False(t, IsRetryable(ValidationError("bad", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeScanFailed, "walk aborted", nil)))
	assert.False(t, IsFatal(IOError("missing", nil)))
	assert.False(t, IsFatal(nil))
}

func TestMessage_StripsCode(t *testing.T) {
	assert.Equal(t, "root missing", Message(IOError("root missing", nil)))
	assert.Equal(t, "plain failure", Message(errors.New("plain failure")))
	assert.Equal(t, "", Message(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
