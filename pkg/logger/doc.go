// Package logger provides a thin factory around Go's slog package adding
// functional options for configuration and helper attribute constructors.
//
// The package standardises structured logging across the auth core by
// exposing a single factory - New - that creates a *slog.Logger configured by
// a set of Option functions:
//
//   - Select an output format (text or json)
//   - Set the minimum log level
//   - Supply default slog.Attr values applied to every record
//
// Helper constructors such as Error, UserID, and Component live in attr.go
// and return commonly-used slog.Attr instances to keep attribute naming
// consistent across the codebase.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithProduction("authcore"),
//	    logger.WithAttr(slog.String("version", "1.0.0")),
//	)
//	log.Info("started", logger.Component("secrets"))
package logger
