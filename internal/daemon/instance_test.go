package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) (*Instance, string) {
	t.Helper()
	pidPath := filepath.Join(t.TempDir(), "nested", "d.pid")
	return NewInstance(pidPath, pidPath+".lock"), pidPath
}

func TestInstance_AcquireOwnerRelease(t *testing.T) {
	inst, pidPath := newTestInstance(t)

	// When: acquired
	ok, err := inst.Acquire()
	require.NoError(t, err)
	require.True(t, ok)

	// Then: a separate handle sees this process as owner
	pid, err := NewInstance(pidPath, pidPath+".lock").Owner()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// When: released
	require.NoError(t, inst.Release())

	// Then: the PID file is gone and nobody owns the instance
	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
	_, err = inst.Owner()
	assert.ErrorIs(t, err, ErrNotRunning)

	// Releasing twice is fine.
	assert.NoError(t, inst.Release())
}

func TestInstance_ExcludesSecondHolder(t *testing.T) {
	first, pidPath := newTestInstance(t)
	second := NewInstance(pidPath, pidPath+".lock")

	// Given: the first holder has the instance
	ok, err := first.Acquire()
	require.NoError(t, err)
	require.True(t, ok)

	// Then: a second handle cannot take it
	ok, err = second.Acquire()
	require.NoError(t, err)
	assert.False(t, ok)

	// When: the first releases it
	require.NoError(t, first.Release())

	// Then: the second can
	ok, err = second.Acquire()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release())
	assert.Equal(t, pidPath+".lock", second.LockPath())
}

func TestInstance_StalePIDFileIsRemoved(t *testing.T) {
	// Given: a PID file left by a daemon that died, with its lock free
	inst, pidPath := newTestInstance(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(pidPath), 0755))
	require.NoError(t, os.WriteFile(pidPath, []byte(" 4242\n"), 0644))

	// When: asking for the owner
	_, err := inst.Owner()

	// Then: nobody runs and the stale file is cleaned up
	assert.ErrorIs(t, err, ErrNotRunning)
	_, statErr := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstance_Owner_InvalidContent(t *testing.T) {
	// Given: a held instance whose PID file was overwritten
	inst, pidPath := newTestInstance(t)
	ok, err := inst.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = inst.Release() }()
	require.NoError(t, os.WriteFile(pidPath, []byte("not-a-pid"), 0644))

	// When: reading the owner
	_, err = NewInstance(pidPath, pidPath+".lock").Owner()

	// Then: it is an error, not "not running"
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestInstance_Signal(t *testing.T) {
	inst, pidPath := newTestInstance(t)

	// Given: no owner
	assert.ErrorIs(t, inst.Signal(syscall.Signal(0)), ErrNotRunning)

	// Given: this process owns the instance
	ok, err := inst.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = inst.Release() }()

	// Then: signal 0 probes it
	assert.NoError(t, NewInstance(pidPath, pidPath+".lock").Signal(syscall.Signal(0)))
}
