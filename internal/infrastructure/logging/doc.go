// Package logging provides structured logging for the AC bridge.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same format and default fields (service, version).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge started", "namespace", "ac")
//	logger.With("component", "mqtt").Warn("disconnected", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
