// Package logging provides structured logging for scanctl.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields (service, version).
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a small Logger interface (Debug/Info/Warn/Error) with a
// no-op default, which *Logger satisfies:
//
//	logger := logging.New(cfg.Logging, version)
//	engine := dispatch.NewEngine(tx, opts, logger.With("component", "dispatch"))
//
// Never log secrets such as the JWT secret or broker passwords.
package logging
