// Package logging provides structured logging for the KNXnet/IP client.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the session, transports and bridge.
//
// # Features
//
//   - JSON output for collectors, text output for terminals
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional size-rotated log file (lumberjack)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/knxip.log"
//	    max_size: 50     # megabytes
//	    max_backups: 3
//	    max_age: 28      # days
//
// When file.path is set and output is stdout or stderr, records go to both.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	defer logger.Close()
//	logger.Warn("decode failed", "raw_hex", knx.ToHex(raw), "error", err)
package logging
