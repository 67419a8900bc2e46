// Package logging provides structured logging for the gateway.
//
// It wraps log/slog so that every entry carries the service name and
// version, and so that connectors and the hub can be handed a child
// logger tagged with their component name.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("hub").Info("started", "pairs", 1)
//
// Never log broker passwords, cloud tokens or JWT secrets.
package logging
