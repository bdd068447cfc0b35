// Package logger provides structured logging helpers built on log/slog.
//
// New builds a logger from functional options:
//
//	log := logger.New(
//		logger.WithProduction("relay"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
// Attribute helpers return an empty slog.Attr for empty input, which slog
// drops, so callers can pass them unconditionally:
//
//	log.Error("connection closed", logger.ConnID(id), logger.Error(err))
//
// Components in this module take a *slog.Logger through a WithLogger option
// and default to Nop.
package logger
