// Package logging provides structured logging for benyctl.
//
// This package wraps zap with a process-wide logger for the CLI and server,
// and hands out named child loggers for injection into the charger client,
// decoder and poller. Library packages never reach for the global logger
// themselves; they take a *zap.Logger option and default to zap.NewNop().
//
// # Log Levels
//
//   - Debug: Frames sent and received, dropped frames and checksum mismatches
//   - Info: Commands sent, server start and stop, poll interval changes
//   - Warn: Commands skipped by the unplugged guard, failed polls
//   - Error: Failed fetches
//
// # Configuration
//
// Logging is silent unless a level is given with --log-level or the
// BENY_LOG_LEVEL environment variable:
//
//	if err := logging.InitializeWithFile(level, logging.FileOptions{Path: file}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Console output goes to stderr so that --format json output on stdout stays
// machine readable. When a log file is configured (--log-file or
// BENY_LOG_FILE) entries are also written as JSON to a file rotated by
// lumberjack.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
