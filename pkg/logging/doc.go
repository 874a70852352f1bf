// Package logging provides structured logging configuration for serialmock.
//
// This package wraps log/slog so the daemon, the transports and the repeater
// share one logger configuration.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("unknown ask", logging.Frame("rx", frame))
//
// Frames are logged as space-separated hex so a line from the log can be
// pasted straight into a repeat file.
//
// Components accept a *slog.Logger through an option. If none is provided,
// they use logging.Nop().
package logging
