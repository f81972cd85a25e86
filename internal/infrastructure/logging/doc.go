// Package logging provides the diagnostic logger for townylog.
//
// This package wraps Go's standard log/slog package. The diagnostic logger
// is distinct from the log channels (main, money, debug): it records the
// subsystem's own lifecycle and is the fallback target when a channel
// sink fails to write.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("channels committed", "active", 2)
//	logger.Error("sink write failed", "sink", "money.csv", "error", err)
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys.
package logging
