// Package daemon serves the indexer core over a Unix-socket JSON-RPC 2.0
// API so that UI clients can start scans, poll job status and page through
// indexed files without owning the scheduler themselves.
package daemon

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.fsaudit/fsaudit.sock
	SocketPath string

	// PIDPath stores the daemon's process ID. The instance lock lives beside it.
	// Default: ~/.fsaudit/fsaudit.pid
	PIDPath string

	// Timeout is the maximum duration of one client request.
	// Default: 5s
	Timeout time.Duration

	// ShutdownGracePeriod bounds how long serve waits for an active scan on shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".fsaudit")

	return Config{
		SocketPath:          filepath.Join(dir, "fsaudit.sock"),
		PIDPath:             filepath.Join(dir, "fsaudit.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate reports every missing or non-positive setting.
func (c Config) Validate() error {
	var errs []error
	if c.SocketPath == "" {
		errs = append(errs, stderrors.New("socket path cannot be empty"))
	}
	if c.PIDPath == "" {
		errs = append(errs, stderrors.New("PID path cannot be empty"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.ShutdownGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("shutdown grace period must be positive, got %s", c.ShutdownGracePeriod))
	}
	return stderrors.Join(errs...)
}

// LockPath returns the single-instance lock file path.
func (c Config) LockPath() string {
	return c.PIDPath + ".lock"
}

// EnsureDir creates the directories holding the socket and the PID file.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fserrors.IOError("failed to create daemon directory "+dir, err).
				WithDetail("dir", dir)
		}
	}
	return nil
}
