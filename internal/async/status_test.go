package async

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

func TestJobStatus_IsActive(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobQueued, true},
		{JobRunning, true},
		{JobCompleted, false},
		{JobFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsActive())
		})
	}
}

func TestIndexedMessage(t *testing.T) {
	assert.Equal(t, "Indexed 0 files", indexedMessage(0))
	assert.Equal(t, "Indexed 999 files", indexedMessage(999))
	assert.Equal(t, "Indexed 1,234 files", indexedMessage(1234))
	assert.Equal(t, "Indexed 1,000,000 files", indexedMessage(1000000))
}

func TestFailedMessage(t *testing.T) {
	// Given: a coded error, the message omits the code
	err := fserrors.StoreError("insert_file_batch", errors.New("disk full"))
	assert.Equal(t, "Scan failed: store insert_file_batch failed: disk full", failedMessage(err))

	// Given: a plain error
	assert.Equal(t, "Scan failed: boom", failedMessage(errors.New("boom")))
}

func TestJob_Duration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	started := now.Add(-4 * time.Second)
	recorded := 2.5

	// Not started
	assert.Zero(t, Job{}.Duration(now))

	// Running: elapsed since start
	assert.Equal(t, 4*time.Second, Job{StartedAt: &started}.Duration(now))

	// Finished: recorded duration wins
	assert.Equal(t, 2500*time.Millisecond, Job{StartedAt: &started, DurationSeconds: &recorded}.Duration(now))
}

func TestJob_CloneSharesNoPointers(t *testing.T) {
	started := time.Now()
	want := started
	d := 1.0
	orig := Job{ID: "x", StartedAt: &started, FinishedAt: &started, DurationSeconds: &d}

	c := orig.clone()
	*orig.StartedAt = started.Add(time.Hour)
	*orig.DurationSeconds = 9

	assert.True(t, c.StartedAt.Equal(want))
	assert.True(t, c.FinishedAt.Equal(want))
	assert.Equal(t, 1.0, *c.DurationSeconds)
	assert.NotSame(t, orig.FinishedAt, c.FinishedAt)
}
