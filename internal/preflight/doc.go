// Package preflight checks that fsaudit can run on this machine before a
// scan is started.
//
// The package validates:
//   - the configuration file parses
//   - the data directory is writable and has free space (minimum 100 MiB)
//   - the open-file limit (minimum 1024, advisory)
//   - the metadata store opens with the configured driver
//   - no previous scan was interrupted mid-crawl
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg.DataDir(), preflight.WithStore(path, driver))
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
