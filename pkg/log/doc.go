// Package log provides the logging abstraction shared by holoship components.
//
// Components never import a logging library directly. They receive a
// Logger and attach structured fields with the helpers in this package:
//
//	logger.Info("session transition",
//	    log.String("from", prev.String()),
//	    log.String("to", next.String()),
//	)
//
// NewZerologAdapter wraps github.com/rs/zerolog for production use and
// NewNoopLogger discards everything, which is what tests use.
//
// Child loggers created with With carry their fields on every message,
// so a component can tag its output once:
//
//	cams := logger.With(log.String("component", "cameras"))
package log
