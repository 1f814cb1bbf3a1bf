// Package logging provides structured logging for swell runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. It is
// designed to help troubleshoot scheduling runs by providing structured,
// filterable logs that can be read alongside the run artifacts.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, wave index, item ID, component)
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. Child
// loggers created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
// Create a logger for a run directory:
//
//	logger, err := logging.NewLogger("/path/to/run", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("wave verified", "wave", 2, "verdict", "pass")
//	logger.Warn("worker slow", "item", "item-3")
//	logger.Error("dispatch failed", "error", err.Error())
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	runLogger := logger.WithRun("run-a1b2c3d4")
//	waveLogger := runLogger.WithWave(2)
//	itemLogger := waveLogger.WithItem("item-3")
//
//	// All logs from itemLogger include run_id, wave, and item_id
//	itemLogger.Info("worker finished", "files_touched", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"worker finished","run_id":"run-a1b2c3d4","wave":2,"item_id":"item-3","files_touched":3}
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
package logging
