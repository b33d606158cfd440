// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"indicator": "debug",
//			"cloud":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("awss")
//	logger.Info("Provisioning started", "running", true)
//
// Levels can be changed at runtime (config reload) with SetLevels. Loggers
// already handed out pick up the new level because each module owns a
// slog.LevelVar.
//
// # Viewing Logs
//
//	journalctl -t smartlight -f
//	journalctl -t smartlight MODULE=indicator
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	indicator = "debug"
//	cloud = "warn"
package logging
