package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrNotRunning is returned when no daemon holds the instance.
var ErrNotRunning = errors.New("daemon is not running")

// Instance is a daemon's exclusive claim on its PID path. The advisory lock
// is held for the daemon's lifetime and the PID file names the holder. A PID
// file whose lock is free was left by a daemon that died without cleanup.
type Instance struct {
	pidPath  string
	lockPath string
	lock     *flock.Flock // non-nil while this Instance holds the claim
}

// NewInstance returns the instance for the given PID and lock file paths.
func NewInstance(pidPath, lockPath string) *Instance {
	return &Instance{pidPath: pidPath, lockPath: lockPath}
}

// Acquire takes the lock without blocking and records this process's PID.
// It returns false when another daemon holds the instance.
func (i *Instance) Acquire() (bool, error) {
	if i.lock != nil {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(i.lockPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(i.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := writePID(i.pidPath); err != nil {
		_ = lock.Unlock()
		return false, err
	}
	i.lock = lock
	return true, nil
}

func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file, then drops the lock. Safe to call when not held.
func (i *Instance) Release() error {
	if i.lock == nil {
		return nil
	}
	var errs []error
	if err := os.Remove(i.pidPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove PID file: %w", err))
	}
	if err := i.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
	}
	i.lock = nil
	return errors.Join(errs...)
}

// Owner returns the PID of the daemon holding the instance. When no daemon
// holds it, Owner removes any stale PID file and returns ErrNotRunning.
func (i *Instance) Owner() (int, error) {
	data, err := os.ReadFile(i.pidPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	if i.lock == nil {
		probe := flock.New(i.lockPath)
		free, err := probe.TryLock()
		if err != nil {
			return 0, fmt.Errorf("failed to probe lock: %w", err)
		}
		if free {
			// Removed under the lock so a starting daemon cannot lose its file.
			_ = os.Remove(i.pidPath)
			_ = probe.Unlock()
			slog.Debug("stale_pid_file_removed", slog.String("path", i.pidPath))
			return 0, ErrNotRunning
		}
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", i.pidPath, err)
	}
	return pid, nil
}

// Signal sends sig to the daemon holding the instance.
func (i *Instance) Signal(sig syscall.Signal) error {
	pid, err := i.Owner()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

// LockPath returns the lock file path.
func (i *Instance) LockPath() string {
	return i.lockPath
}
