package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.fsaudit/logs, or a temp-dir equivalent when the
// home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fsaudit", "logs")
	}
	return filepath.Join(home, ".fsaudit", "logs")
}

// CLILogPath is where --debug CLI runs log.
func CLILogPath() string {
	return filepath.Join(DefaultLogDir(), "fsaudit.log")
}

// DaemonLogPath is where `fsaudit serve` logs.
func DaemonLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}

// LogSource selects which log files to view.
type LogSource string

const (
	LogSourceCLI    LogSource = "cli"
	LogSourceDaemon LogSource = "daemon"
	LogSourceAll    LogSource = "all"
)

// ParseLogSource parses a source name; anything unrecognised means all.
func ParseLogSource(s string) LogSource {
	switch LogSource(s) {
	case LogSourceCLI, LogSourceDaemon:
		return LogSource(s)
	default:
		return LogSourceAll
	}
}

// FindLogFiles returns the existing log files for source. An explicit path
// takes precedence and must exist.
func FindLogFiles(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("log file not found: %s", explicit)
		}
		return []string{explicit}, nil
	}

	var candidates []string
	switch source {
	case LogSourceCLI:
		candidates = []string{CLILogPath()}
	case LogSourceDaemon:
		candidates = []string{DaemonLogPath()}
	case LogSourceAll:
		candidates = []string{CLILogPath(), DaemonLogPath()}
	default:
		return nil, fmt.Errorf("unknown log source: %s (use: cli, daemon, all)", source)
	}

	var found []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no log files found for source %q (checked %v)\n"+
			"Run `fsaudit --debug <command>` or `fsaudit serve` to produce logs", source, candidates)
	}
	return found, nil
}

// sourceFromPath labels entries by the file they came from.
func sourceFromPath(path string) string {
	switch filepath.Base(path) {
	case filepath.Base(DaemonLogPath()):
		return string(LogSourceDaemon)
	case filepath.Base(CLILogPath()):
		return string(LogSourceCLI)
	default:
		return "file"
	}
}
