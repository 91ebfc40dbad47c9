// Package logging configures structured slog output for fsaudit.
//
// Normal CLI runs log warnings and errors to stderr only. With --debug, and
// always for the daemon, JSON logs are written to size-rotated files under
// ~/.fsaudit/logs/ where `fsaudit logs` can tail and follow them.
package logging
