package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// daemonTestConfig returns a config with unique short paths.
func daemonTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SocketPath = testSocketPath(t)
	cfg.PIDPath = filepath.Join(t.TempDir(), fmt.Sprintf("d-%d.pid", time.Now().UnixNano()))
	cfg.Timeout = 2 * time.Second
	cfg.ShutdownGracePeriod = 2 * time.Second
	return cfg
}

// slowDrainer blocks Wait until released.
type slowDrainer struct {
	release chan struct{}
	waited  atomic.Bool
}

func (d *slowDrainer) Wait() {
	d.waited.Store(true)
	<-d.release
}

func runDaemon(t *testing.T, d *Daemon) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	return cancel, errCh
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	cfg := daemonTestConfig(t)
	cfg.Timeout = 0

	_, err := NewDaemon(cfg, &fakeHandler{}, nil)

	assert.Error(t, err)
}

func TestDaemon_Run_ServesAndCleansUp(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg, &fakeHandler{}, nil)
	require.NoError(t, err)

	cancel, errCh := runDaemon(t, d)
	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	// Then: the PID file names this process
	pid, err := NewInstance(cfg.PIDPath, cfg.LockPath()).Owner()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// When: shut down
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// Then: socket and PID file are gone
	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.PIDPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDaemon_Run_SecondInstanceRefused(t *testing.T) {
	cfg := daemonTestConfig(t)
	first, err := NewDaemon(cfg, &fakeHandler{}, nil)
	require.NoError(t, err)
	cancel, errCh := runDaemon(t, first)
	defer func() {
		cancel()
		<-errCh
	}()
	require.Eventually(t, NewClient(cfg).IsRunning, 2*time.Second, 10*time.Millisecond)

	// When: a second daemon uses the same PID path
	second, err := NewDaemon(cfg, &fakeHandler{}, nil)
	require.NoError(t, err)
	err = second.Run(context.Background())

	// Then: it refuses without disturbing the first
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another daemon is already running")
	assert.True(t, NewClient(cfg).IsRunning())
}

func TestDaemon_Run_DrainsActiveWork(t *testing.T) {
	cfg := daemonTestConfig(t)
	drainer := &slowDrainer{release: make(chan struct{})}
	d, err := NewDaemon(cfg, &fakeHandler{}, drainer)
	require.NoError(t, err)

	cancel, errCh := runDaemon(t, d)
	require.Eventually(t, NewClient(cfg).IsRunning, 2*time.Second, 10*time.Millisecond)

	// When: shutdown starts while work is in flight
	cancel()
	require.Eventually(t, drainer.waited.Load, 2*time.Second, 5*time.Millisecond)
	select {
	case <-errCh:
		t.Fatal("daemon stopped before work drained")
	case <-time.After(50 * time.Millisecond):
	}

	// Then: it stops once the work finishes
	close(drainer.release)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_Run_GracePeriodBoundsDrain(t *testing.T) {
	cfg := daemonTestConfig(t)
	cfg.ShutdownGracePeriod = 50 * time.Millisecond
	drainer := &slowDrainer{release: make(chan struct{})}
	defer close(drainer.release)
	d, err := NewDaemon(cfg, &fakeHandler{}, drainer)
	require.NoError(t, err)

	cancel, errCh := runDaemon(t, d)
	require.Eventually(t, NewClient(cfg).IsRunning, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("grace period did not bound shutdown")
	}
}
